package services

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/browser"
)

func init() {
	// Keep the launcher's chatter off the console sink.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

// Browser opens URLs in the user's default browser.
type Browser struct{}

func NewBrowser() *Browser { return &Browser{} }

func (Browser) Open(_ context.Context, url string) error {
	if err := browser.OpenURL(url); err != nil {
		return fmt.Errorf("open url %s: %w", url, err)
	}
	return nil
}
