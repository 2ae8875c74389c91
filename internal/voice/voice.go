// Package voice holds the input sources and output sinks the session talks
// through.
package voice

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrClosed is returned by a Source that will never produce input again.
var ErrClosed = errors.New("voice: source closed")

// ErrNoListeners is returned by a Sink with nobody to deliver to.
var ErrNoListeners = errors.New("voice: no listeners")

// ErrDropped is returned when every listener was too slow to take the message.
var ErrDropped = errors.New("voice: message dropped by every listener")

// Source acquires one utterance. It reports ok=false when nothing was heard
// within timeout; that is not an error.
type Source interface {
	Acquire(ctx context.Context, timeout time.Duration) (text string, ok bool, err error)
}

// Sink speaks text to the user.
type Sink interface {
	Emit(ctx context.Context, text string) error
}

// SpeechRate adjusts the base rate for the tone of text: apologies are read
// slower, exclamations a little faster.
func SpeechRate(base int, text string) int {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "sorry"),
		strings.Contains(lower, "couldn't"),
		strings.Contains(lower, "error"),
		strings.Contains(lower, "unavailable"):
		return base - 20
	case strings.HasSuffix(strings.TrimSpace(text), "!"):
		return base + 10
	default:
		return base
	}
}
