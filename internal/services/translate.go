package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// LibreTranslate talks to a LibreTranslate-compatible /translate endpoint.
type LibreTranslate struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewLibreTranslate(baseURL, apiKey string, timeout time.Duration) *LibreTranslate {
	return &LibreTranslate{
		baseURL: trimBase(baseURL),
		apiKey:  strings.TrimSpace(apiKey),
		client:  newHTTPClient(timeout),
	}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

func (l *LibreTranslate) Translate(ctx context.Context, text, target string) (string, error) {
	if l.baseURL == "" {
		return "", ErrNotConfigured
	}
	payload, err := json.Marshal(translateRequest{
		Q:      text,
		Source: "auto",
		Target: target,
		Format: "text",
		APIKey: l.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("translate marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("translate create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := do(l.client, "translate", req)
	if err != nil {
		return "", err
	}
	var out struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("translate decode response: %w", err)
	}
	return out.TranslatedText, nil
}
