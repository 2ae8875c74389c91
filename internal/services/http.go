package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultTimeout = 5 * time.Second

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// do sends req and returns the body of a 2xx response. Other statuses become
// a *StatusError carrying a short body excerpt.
func do(client *http.Client, service string, req *http.Request) ([]byte, error) {
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", service, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, &StatusError{Service: service, Code: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%s read response: %w", service, err)
	}
	return body, nil
}

func getJSON(ctx context.Context, client *http.Client, service, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%s create request: %w", service, err)
	}
	req.Header.Set("Accept", "application/json")
	body, err := do(client, service, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s decode response: %w", service, err)
	}
	return nil
}

func trimBase(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}
