package voice

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
)

// Console reads utterances line by line and prints replies in colour.
type Console struct {
	name   string
	in     io.Reader
	out    io.Writer
	tty    bool
	logger *zap.Logger

	startOnce sync.Once
	lines     chan string
	done      chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	speaker    func(a ...any) string
	user       func(a ...any) string
	speechRate int
}

func NewConsole(name string, in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		name:       name,
		in:         in,
		out:        out,
		tty:        isTerminal(in),
		logger:     logger,
		lines:      make(chan string, 16),
		done:       make(chan struct{}),
		speaker:    color.New(color.FgCyan, color.Bold).SprintFunc(),
		user:       color.New(color.FgGreen).SprintFunc(),
		speechRate: 180,
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetSpeechRate sets the base rate used for per-reply speech hints.
func (c *Console) SetSpeechRate(rate int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speechRate = rate
}

func (c *Console) start() {
	go func() {
		defer close(c.lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case c.lines <- scanner.Text():
			case <-c.done:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			c.logger.Warn("console input failed", zap.Error(err))
		}
	}()
}

func (c *Console) Acquire(ctx context.Context, timeout time.Duration) (string, bool, error) {
	c.startOnce.Do(c.start)
	if c.tty {
		c.mu.Lock()
		fmt.Fprint(c.out, c.user("You: "))
		c.mu.Unlock()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case <-c.done:
		return "", false, ErrClosed
	case <-timer.C:
		return "", false, nil
	case line, ok := <-c.lines:
		if !ok {
			return "", false, ErrClosed
		}
		line = strings.TrimSpace(line)
		return line, line != "", nil
	}
}

func (c *Console) Emit(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Debug("speaking", zap.Int("speech_rate", SpeechRate(c.speechRate, text)))
	if c.tty {
		// Finish the pending prompt line.
		fmt.Fprintln(c.out)
	}
	if _, err := fmt.Fprintf(c.out, "%s %s\n", c.speaker(c.name+":"), text); err != nil {
		return fmt.Errorf("console write: %w", err)
	}
	return nil
}

// Close stops the reader. A reader blocked on a terminal read exits at the
// next line or with the process.
func (c *Console) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}
