package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jisero/internal/storage/memory"
)

func fakeDeepLServer(t *testing.T, translated, detectedLang string, status int) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		resp := deeplResponse{}
		resp.Translations = append(resp.Translations, struct {
			Text                   string `json:"text"`
			DetectedSourceLanguage string `json:"detected_source_language"`
		}{Text: translated, DetectedSourceLanguage: detectedLang})
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func fakeGroqServer(t *testing.T, content string, status int) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		resp := groqResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}{})
		resp.Choices[0].Message.Content = content
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestTranslatePrimarySuccess(t *testing.T) {
	deeplSrv, deeplHits := fakeDeepLServer(t, "hola", "EN", http.StatusOK)
	groqSrv, groqHits := fakeGroqServer(t, "should not be used", http.StatusOK)

	svc := NewService(
		NewDeepLWithBaseURL("key", deeplSrv.URL),
		NewGroqWithBaseURL("key", groqSrv.URL),
		nil, 5*time.Second,
	)

	res, err := svc.Translate(context.Background(), "hello", "ES")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if res.Text != "hola" || res.Provider != "deepl" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.SourceLang != "en" || res.TargetLang != "es" {
		t.Fatalf("language codes not normalized: %+v", res)
	}
	if deeplHits.Load() != 1 || groqHits.Load() != 0 {
		t.Fatalf("wrong provider hit counts: deepl=%d groq=%d", deeplHits.Load(), groqHits.Load())
	}
}

func TestTranslateFallsBackToSecondary(t *testing.T) {
	deeplSrv, _ := fakeDeepLServer(t, "", "", http.StatusTooManyRequests)
	groqSrv, groqHits := fakeGroqServer(t, "hola", http.StatusOK)

	svc := NewService(
		NewDeepLWithBaseURL("key", deeplSrv.URL),
		NewGroqWithBaseURL("key", groqSrv.URL),
		nil, 5*time.Second,
	)

	res, err := svc.Translate(context.Background(), "hello", "es")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if res.Text != "hola" || res.Provider != "groq" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if groqHits.Load() != 1 {
		t.Fatalf("groq hit %d times, want 1", groqHits.Load())
	}
}

func TestTranslateBothProvidersFail(t *testing.T) {
	deeplSrv, _ := fakeDeepLServer(t, "", "", http.StatusInternalServerError)
	groqSrv, _ := fakeGroqServer(t, "", http.StatusInternalServerError)

	svc := NewService(
		NewDeepLWithBaseURL("key", deeplSrv.URL),
		NewGroqWithBaseURL("key", groqSrv.URL),
		nil, 5*time.Second,
	)

	if _, err := svc.Translate(context.Background(), "hello", "es"); err == nil {
		t.Fatalf("expected an error when both providers fail")
	}
}

func TestTranslateUsesCache(t *testing.T) {
	deeplSrv, deeplHits := fakeDeepLServer(t, "hola", "EN", http.StatusOK)
	groqSrv, _ := fakeGroqServer(t, "", http.StatusInternalServerError)
	cache := memory.New(time.Minute)

	svc := NewService(
		NewDeepLWithBaseURL("key", deeplSrv.URL),
		NewGroqWithBaseURL("key", groqSrv.URL),
		cache, 5*time.Second,
	)

	if _, err := svc.Translate(context.Background(), "hello", "es"); err != nil {
		t.Fatalf("first translate: %v", err)
	}
	res, err := svc.Translate(context.Background(), "hello", "es")
	if err != nil {
		t.Fatalf("cached translate: %v", err)
	}
	if res.Text != "hola" || res.Provider != "cache" {
		t.Fatalf("expected cache hit, got %+v", res)
	}
	if deeplHits.Load() != 1 {
		t.Fatalf("provider hit %d times, want 1 (second call cached)", deeplHits.Load())
	}
}

func TestTranslateUnconfiguredPrimaryUsesSecondary(t *testing.T) {
	groqSrv, _ := fakeGroqServer(t, "hallo", http.StatusOK)

	svc := NewService(
		NewDeepL(""), // no API key
		NewGroqWithBaseURL("key", groqSrv.URL),
		nil, 5*time.Second,
	)

	res, err := svc.Translate(context.Background(), "hello", "de")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if res.Text != "hallo" || res.Provider != "groq" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestDetect(t *testing.T) {
	deeplSrv, _ := fakeDeepLServer(t, "hello", "ES", http.StatusOK)
	groqSrv, _ := fakeGroqServer(t, "", http.StatusInternalServerError)

	svc := NewService(
		NewDeepLWithBaseURL("key", deeplSrv.URL),
		NewGroqWithBaseURL("key", groqSrv.URL),
		nil, 5*time.Second,
	)
	if lang := svc.Detect(context.Background(), "hola"); lang != "es" {
		t.Fatalf("detect = %q, want es", lang)
	}
}

func TestDetectDefaultsToEnglish(t *testing.T) {
	deeplSrv, _ := fakeDeepLServer(t, "", "", http.StatusInternalServerError)
	groqSrv, _ := fakeGroqServer(t, "", http.StatusInternalServerError)

	svc := NewService(
		NewDeepLWithBaseURL("key", deeplSrv.URL),
		NewGroqWithBaseURL("key", groqSrv.URL),
		nil, 5*time.Second,
	)
	if lang := svc.Detect(context.Background(), "hola"); lang != "en" {
		t.Fatalf("detect fallback = %q, want en", lang)
	}
}

func TestGroqDetectRejectsNonISOCodes(t *testing.T) {
	groqSrv, _ := fakeGroqServer(t, "I think this is Spanish", http.StatusOK)
	p := NewGroqWithBaseURL("key", groqSrv.URL)
	lang, err := p.Detect(context.Background(), "hola")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if lang != "en" {
		t.Fatalf("chatty LLM answer must fall back to en, got %q", lang)
	}
}

func TestNormalizeLang(t *testing.T) {
	cases := map[string]string{
		"EN": "en", " es ": "es", "en-US": "en", "": "en", "DE": "de",
	}
	for in, want := range cases {
		if got := normalizeLang(in); got != want {
			t.Errorf("normalizeLang(%q) = %q, want %q", in, got, want)
		}
	}
}
