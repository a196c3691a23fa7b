package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultDeepLBaseURL = "https://api-free.deepl.com/v2"

// DeepL is the primary translation provider.
type DeepL struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewDeepL(apiKey string) *DeepL {
	return &DeepL{
		apiKey:     apiKey,
		baseURL:    defaultDeepLBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewDeepLWithBaseURL is used by tests to point at a fake endpoint.
func NewDeepLWithBaseURL(apiKey, baseURL string) *DeepL {
	p := NewDeepL(apiKey)
	p.baseURL = strings.TrimSuffix(baseURL, "/")
	return p
}

func (p *DeepL) Name() string { return "deepl" }

type deeplResponse struct {
	Translations []struct {
		Text                   string `json:"text"`
		DetectedSourceLanguage string `json:"detected_source_language"`
	} `json:"translations"`
}

func (p *DeepL) Translate(ctx context.Context, text, targetLang string) (Result, error) {
	if p.apiKey == "" {
		return Result{}, ErrNotConfigured
	}
	form := url.Values{}
	form.Set("auth_key", p.apiKey)
	form.Set("text", text)
	form.Set("target_lang", strings.ToUpper(targetLang))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("deepl translate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("deepl translate: status %d", resp.StatusCode)
	}

	var out deeplResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("deepl decode: %w", err)
	}
	if len(out.Translations) == 0 {
		return Result{}, fmt.Errorf("deepl translate: empty response")
	}
	t := out.Translations[0]
	return Result{
		Text:       t.Text,
		SourceLang: strings.ToLower(t.DetectedSourceLanguage),
		TargetLang: strings.ToLower(targetLang),
		Confidence: 0.95,
		Provider:   p.Name(),
	}, nil
}

// Detect has no dedicated DeepL endpoint; the translate response carries
// the detected source language.
func (p *DeepL) Detect(ctx context.Context, text string) (string, error) {
	res, err := p.Translate(ctx, text, "en")
	if err != nil {
		return "", err
	}
	if res.SourceLang == "" {
		return "en", nil
	}
	return res.SourceLang, nil
}

// Usage reports DeepL character-quota usage (raw API response).
func (p *DeepL) Usage(ctx context.Context) (map[string]any, error) {
	if p.apiKey == "" {
		return nil, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/usage?auth_key="+url.QueryEscape(p.apiKey), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepl usage: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepl usage: status %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("deepl usage decode: %w", err)
	}
	return out, nil
}
