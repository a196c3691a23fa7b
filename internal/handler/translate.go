package handler

import (
	"net/http"
	"strings"

	"github.com/jisero/internal/translate"
)

type TranslateHandler struct {
	svc   *translate.Service
	deepl *translate.DeepL
}

func NewTranslateHandler(svc *translate.Service, deepl *translate.DeepL) *TranslateHandler {
	return &TranslateHandler{svc: svc, deepl: deepl}
}

type translateRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
}

// Translate translates arbitrary text on demand, same provider chain as the
// message path.
func (h *TranslateHandler) Translate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" || req.TargetLang == "" {
		writeError(w, http.StatusBadRequest, "text and target_lang required")
		return
	}
	res, err := h.svc.Translate(r.Context(), req.Text, req.TargetLang)
	if err != nil {
		// All providers failed; the client keeps the original text.
		writeJSON(w, http.StatusOK, translate.Result{
			Text:       req.Text,
			SourceLang: "unknown",
			TargetLang: req.TargetLang,
			Provider:   "none",
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type detectRequest struct {
	Text string `json:"text"`
}

type detectResponse struct {
	Language string `json:"language"`
}

// Detect returns the ISO 639-1 code of the text's language.
func (h *TranslateHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text required")
		return
	}
	writeJSON(w, http.StatusOK, detectResponse{Language: h.svc.Detect(r.Context(), req.Text)})
}

// Usage proxies the primary provider's quota report.
func (h *TranslateHandler) Usage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.deepl.Usage(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "usage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, usage)
}
