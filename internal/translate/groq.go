package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGroqBaseURL = "https://api.groq.com/openai/v1/chat/completions"
	groqModel          = "llama-3.3-70b-versatile"
)

// Groq is the fallback provider: translation via an LLM chat completion.
type Groq struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewGroq(apiKey string) *Groq {
	return &Groq{
		apiKey:     apiKey,
		baseURL:    defaultGroqBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewGroqWithBaseURL is used by tests to point at a fake endpoint.
func NewGroqWithBaseURL(apiKey, baseURL string) *Groq {
	p := NewGroq(apiKey)
	p.baseURL = baseURL
	return p
}

func (p *Groq) Name() string { return "groq" }

type groqRequest struct {
	Messages []groqMessage `json:"messages"`
	Model    string        `json:"model"`
	Temp     float64       `json:"temperature"`
	MaxTok   int           `json:"max_completion_tokens"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *Groq) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if p.apiKey == "" {
		return "", ErrNotConfigured
	}
	body, err := json.Marshal(groqRequest{
		Messages: []groqMessage{{Role: "user", Content: prompt}},
		Model:    groqModel,
		Temp:     0.1,
		MaxTok:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("groq: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("groq: status %d", resp.StatusCode)
	}
	var out groqResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("groq decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("groq: empty response")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (p *Groq) Translate(ctx context.Context, text, targetLang string) (Result, error) {
	prompt := fmt.Sprintf("Translate the following text to %s. Only return the translation, nothing else: %q", targetLang, text)
	translated, err := p.complete(ctx, prompt, 1024)
	if err != nil {
		return Result{}, err
	}
	if translated == "" {
		translated = text
	}
	return Result{
		Text:       translated,
		SourceLang: "auto",
		TargetLang: strings.ToLower(targetLang),
		Confidence: 0.90,
		Provider:   p.Name(),
	}, nil
}

func (p *Groq) Detect(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf("Detect the language of this text and return only the ISO 639-1 language code (like 'en', 'es', 'fr', etc.): %q", text)
	code, err := p.complete(ctx, prompt, 10)
	if err != nil {
		return "", err
	}
	code = strings.ToLower(code)
	if len(code) != 2 {
		return "en", nil
	}
	return code, nil
}
