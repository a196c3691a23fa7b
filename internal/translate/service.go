// Package translate calls third-party machine-translation providers.
// DeepL is the primary and a Groq-hosted LLM the fallback; results are
// cached. Translation is best-effort everywhere: callers on the message
// path must treat any error as "use the original text".
package translate

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/jisero/internal/logger"
	"github.com/jisero/internal/storage"
)

// ErrNotConfigured is returned by a provider missing its API key.
var ErrNotConfigured = errors.New("translation provider not configured")

// Result is a completed translation.
type Result struct {
	Text       string  `json:"text"`
	SourceLang string  `json:"source_lang"`
	TargetLang string  `json:"target_lang"`
	Confidence float64 `json:"confidence"`
	Provider   string  `json:"provider"`
}

// Provider is a single translation backend.
type Provider interface {
	Name() string
	Translate(ctx context.Context, text, targetLang string) (Result, error)
	Detect(ctx context.Context, text string) (string, error)
}

// Service fronts a primary and a secondary provider with caching and a
// bounded per-call timeout.
type Service struct {
	primary   Provider
	secondary Provider
	cache     storage.Store
	timeout   time.Duration
}

func NewService(primary, secondary Provider, cache storage.Store, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{primary: primary, secondary: secondary, cache: cache, timeout: timeout}
}

// Translate returns text in targetLang. The secondary provider is tried
// when the primary fails; an error means both failed.
func (s *Service) Translate(ctx context.Context, text, targetLang string) (Result, error) {
	targetLang = normalizeLang(targetLang)
	key := cacheKey(text, targetLang)
	if s.cache != nil {
		if cached, ok, err := s.cache.GetTranslation(ctx, key); err == nil && ok {
			return Result{Text: cached, TargetLang: targetLang, Provider: "cache"}, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.primary.Translate(ctx, text, targetLang)
	if err != nil {
		logger.Errorf("translate: %s failed, trying %s: %v", s.primary.Name(), s.secondary.Name(), err)
		res, err = s.secondary.Translate(ctx, text, targetLang)
		if err != nil {
			return Result{}, err
		}
	}
	if s.cache != nil {
		if err := s.cache.SetTranslation(ctx, key, res.Text); err != nil {
			logger.Errorf("translate: cache set: %v", err)
		}
	}
	return res, nil
}

// Detect returns the ISO 639-1 code of the text's language, best-effort:
// any failure on both providers defaults to "en".
func (s *Service) Detect(ctx context.Context, text string) string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lang, err := s.primary.Detect(ctx, text)
	if err == nil && lang != "" {
		return normalizeLang(lang)
	}
	lang, err = s.secondary.Detect(ctx, text)
	if err == nil && lang != "" {
		return normalizeLang(lang)
	}
	return "en"
}

func cacheKey(text, targetLang string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:]) + ":" + targetLang
}

func normalizeLang(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) > 2 {
		code = code[:2]
	}
	if code == "" {
		return "en"
	}
	return code
}
