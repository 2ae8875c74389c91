package voice

import (
	"context"
	"sync"
	"time"
)

// Script is a Source replaying fixed inputs. An empty string stands for a
// timeout. Once exhausted it reports ErrClosed.
type Script struct {
	mu     sync.Mutex
	inputs []string
}

func NewScript(inputs ...string) *Script {
	return &Script{inputs: append([]string(nil), inputs...)}
}

func (s *Script) Acquire(ctx context.Context, _ time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inputs) == 0 {
		return "", false, ErrClosed
	}
	next := s.inputs[0]
	s.inputs = s.inputs[1:]
	return next, next != "", nil
}

// Recorder is a Sink that keeps everything emitted.
type Recorder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func NewRecorder() *Recorder { return &Recorder{} }

// FailWith makes subsequent Emit calls return err without recording.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Emit(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.texts = append(r.texts, text)
	return nil
}

func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}
