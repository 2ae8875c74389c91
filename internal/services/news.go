package services

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultNewsAPIURL = "https://newsapi.org"

// NewsAPI fetches top US headlines by category.
type NewsAPI struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewNewsAPI(apiKey, baseURL string, timeout time.Duration) *NewsAPI {
	if trimBase(baseURL) == "" {
		baseURL = DefaultNewsAPIURL
	}
	return &NewsAPI{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: trimBase(baseURL),
		client:  newHTTPClient(timeout),
	}
}

// Headlines returns up to limit article titles. An empty slice means the
// upstream had nothing for the category.
func (n *NewsAPI) Headlines(ctx context.Context, category string, limit int) ([]string, error) {
	if n.apiKey == "" {
		return nil, ErrNotConfigured
	}
	q := url.Values{}
	q.Set("country", "us")
	q.Set("category", category)
	q.Set("apiKey", n.apiKey)

	var body struct {
		Articles []struct {
			Title string `json:"title"`
		} `json:"articles"`
	}
	if err := getJSON(ctx, n.client, "newsapi", n.baseURL+"/v2/top-headlines?"+q.Encode(), &body); err != nil {
		return nil, err
	}
	out := make([]string, 0, limit)
	for _, a := range body.Articles {
		if len(out) == limit {
			break
		}
		if t := strings.TrimSpace(a.Title); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}
