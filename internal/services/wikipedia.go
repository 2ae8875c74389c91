package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultWikipediaURL = "https://en.wikipedia.org"

// Wikipedia answers knowledge lookups from the REST page summary endpoint and
// falls back to opensearch for disambiguation options.
type Wikipedia struct {
	baseURL string
	client  *http.Client
}

func NewWikipedia(baseURL string, timeout time.Duration) *Wikipedia {
	if trimBase(baseURL) == "" {
		baseURL = DefaultWikipediaURL
	}
	return &Wikipedia{baseURL: trimBase(baseURL), client: newHTTPClient(timeout)}
}

type wikiSummary struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

// Summary returns at most sentences sentences about topic. An ambiguous topic
// yields a *DisambiguationError listing up to three candidate titles.
func (w *Wikipedia) Summary(ctx context.Context, topic string, sentences int) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", fmt.Errorf("wikipedia: empty topic")
	}
	title := strings.ReplaceAll(topic, " ", "_")
	endpoint := w.baseURL + "/api/rest_v1/page/summary/" + url.PathEscape(title) + "?redirect=true"

	var s wikiSummary
	if err := getJSON(ctx, w.client, "wikipedia", endpoint, &s); err != nil {
		return "", err
	}
	if s.Type == "disambiguation" {
		options, err := w.search(ctx, topic, 4)
		if err != nil {
			return "", err
		}
		return "", &DisambiguationError{Topic: topic, Options: dropTitle(options, s.Title, 3)}
	}
	extract := firstSentences(s.Extract, sentences)
	if extract == "" {
		return "", fmt.Errorf("wikipedia: empty extract for %q", topic)
	}
	return extract, nil
}

func (w *Wikipedia) search(ctx context.Context, topic string, limit int) ([]string, error) {
	q := url.Values{}
	q.Set("action", "opensearch")
	q.Set("search", topic)
	q.Set("limit", fmt.Sprint(limit))
	q.Set("namespace", "0")
	q.Set("format", "json")

	// [query, [titles], [descriptions], [links]]
	var raw []any
	if err := getJSON(ctx, w.client, "wikipedia", w.baseURL+"/w/api.php?"+q.Encode(), &raw); err != nil {
		return nil, err
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("wikipedia: malformed opensearch response")
	}
	items, _ := raw[1].([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func dropTitle(options []string, title string, limit int) []string {
	out := make([]string, 0, limit)
	for _, o := range options {
		if strings.EqualFold(o, title) {
			continue
		}
		out = append(out, o)
		if len(out) == limit {
			break
		}
	}
	return out
}

// firstSentences keeps the first n sentences of text.
func firstSentences(text string, n int) string {
	text = strings.TrimSpace(text)
	if n <= 0 || text == "" {
		return text
	}
	count := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n' {
				count++
				if count == n {
					return strings.TrimSpace(text[:i+1])
				}
			}
		}
	}
	return text
}
