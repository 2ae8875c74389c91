package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultWolframURL = "https://api.wolframalpha.com"

// Wolfram answers computation queries through the short answers API.
type Wolfram struct {
	appID   string
	baseURL string
	client  *http.Client
}

func NewWolfram(appID, baseURL string, timeout time.Duration) *Wolfram {
	if trimBase(baseURL) == "" {
		baseURL = DefaultWolframURL
	}
	return &Wolfram{
		appID:   strings.TrimSpace(appID),
		baseURL: trimBase(baseURL),
		client:  newHTTPClient(timeout),
	}
}

func (w *Wolfram) Compute(ctx context.Context, query string) (string, error) {
	if w.appID == "" {
		return "", ErrNotConfigured
	}
	q := url.Values{}
	q.Set("appid", w.appID)
	q.Set("i", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/v1/result?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("wolfram create request: %w", err)
	}
	body, err := do(w.client, "wolfram", req)
	if err != nil {
		return "", err
	}
	answer := strings.TrimSpace(string(body))
	if answer == "" {
		return "", fmt.Errorf("wolfram: empty answer")
	}
	return answer, nil
}
