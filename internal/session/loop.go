package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/aide/internal/intent"
	"github.com/ent0n29/aide/internal/observability"
	"github.com/ent0n29/aide/internal/policy"
	"github.com/ent0n29/aide/internal/voice"
)

type State string

const (
	StateListening   State = "LISTENING"
	StateDispatching State = "DISPATCHING"
	StateResponding  State = "RESPONDING"
	StateShutdown    State = "SHUTDOWN"
)

const (
	SilencePrompt     = "I haven't heard anything for a while. Say 'hello' to wake me up."
	WakePrompt        = "Yes, how can I help you?"
	TurnErrorReply    = "I encountered an error, but I'm still here to help."
	InterruptFarewell = "Shutting down gracefully. Goodbye!"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, input string) intent.Reply
}

// Recorder is the conversation log as seen by the loop.
type Recorder interface {
	RecordUser(ctx context.Context, text string)
	RecordAssistant(ctx context.Context, text string)
	RecordNotice(ctx context.Context, text string)
}

type Options struct {
	Source        voice.Source
	Sink          voice.Sink
	Dispatcher    Dispatcher
	Log           Recorder
	AssistantName string
	UserName      string
	WakeWord      string
	ListenTimeout time.Duration
	MaxSilence    int
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	Now           func() time.Time
	Pick          func(n int) int
}

// Loop is the foreground conversation: listen, dispatch, respond, until the
// user says goodbye or ctx is cancelled.
type Loop struct {
	opts    Options
	logger  *zap.Logger
	wake    *regexp.Regexp
	mu      sync.RWMutex
	state   State
	silence int
}

func NewLoop(opts Options) *Loop {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Pick == nil {
		opts.Pick = rand.IntN
	}
	if opts.ListenTimeout <= 0 {
		opts.ListenTimeout = 10 * time.Second
	}
	if opts.MaxSilence <= 0 {
		opts.MaxSilence = 3
	}
	if strings.TrimSpace(opts.UserName) == "" {
		opts.UserName = "Sir"
	}
	opts.WakeWord = strings.ToLower(strings.TrimSpace(opts.WakeWord))
	l := &Loop{opts: opts, logger: opts.Logger, state: StateListening}
	if opts.WakeWord != "" {
		// Whole words only: "aide" must not match inside "braided".
		l.wake = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(opts.WakeWord) + `\b`)
	}
	return l
}

func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = s
}

// Silence is the current count of consecutive empty inputs.
func (l *Loop) Silence() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.silence
}

// Run greets the user and serves turns. It returns nil on quit, on source
// exhaustion and on cancellation; the caller owns persistence shutdown.
func (l *Loop) Run(ctx context.Context) error {
	l.announce(ctx, Greeting(l.opts.Now(), l.opts.UserName, l.opts.AssistantName, l.opts.Pick))

	for {
		if ctx.Err() != nil {
			return l.interrupted(ctx)
		}
		l.setState(StateListening)
		text, ok, err := l.opts.Source.Acquire(ctx, l.opts.ListenTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, voice.ErrClosed) {
				return l.interrupted(ctx)
			}
			l.logger.Warn("input acquisition failed", zap.Error(err))
			ok = false
		}
		if !ok {
			l.onSilence(ctx)
			continue
		}
		l.resetSilence()

		if l.turn(ctx, text) {
			l.setState(StateShutdown)
			l.logger.Info("session ended by user")
			return nil
		}
	}
}

// Notify speaks an announcement outside the request/response cycle, such as
// a due reminder. It returns the sink error so callers can retry.
func (l *Loop) Notify(ctx context.Context, text string) error {
	if err := l.opts.Sink.Emit(ctx, text); err != nil {
		l.logger.Warn("notification not delivered", zap.Error(err))
		return fmt.Errorf("emit notification: %w", err)
	}
	// Only delivered notices become turns.
	if l.opts.Log != nil {
		l.opts.Log.RecordNotice(ctx, text)
	}
	return nil
}

func (l *Loop) onSilence(ctx context.Context) {
	l.mu.Lock()
	l.silence++
	prompt := l.silence >= l.opts.MaxSilence
	if prompt {
		l.silence = 0
	}
	l.mu.Unlock()

	if prompt {
		l.opts.Metrics.SilencePrompt()
		l.announce(ctx, SilencePrompt)
	}
}

func (l *Loop) resetSilence() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.silence = 0
}

// turn handles one utterance and reports whether the user asked to quit. A
// panic inside the turn is contained here.
func (l *Loop) turn(ctx context.Context, text string) (quit bool) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("turn failed", zap.Any("panic", r), zap.String("input", policy.ForLog(text)))
			l.respond(ctx, TurnErrorReply)
			quit = false
		}
	}()

	if l.opts.Log != nil {
		l.opts.Log.RecordUser(ctx, text)
	}
	query, woken := l.stripWakeWord(text)
	if woken && query == "" {
		l.respond(ctx, WakePrompt)
		return false
	}

	l.setState(StateDispatching)
	reply := l.opts.Dispatcher.Dispatch(ctx, query)
	l.setState(StateResponding)
	l.respond(ctx, reply.Text)
	return reply.Quit
}

func (l *Loop) stripWakeWord(text string) (string, bool) {
	if l.wake == nil || !l.wake.MatchString(text) {
		return text, false
	}
	rest := strings.Join(strings.Fields(l.wake.ReplaceAllString(text, " ")), " ")
	return strings.Trim(rest, " ,.!?"), true
}

func (l *Loop) interrupted(ctx context.Context) error {
	l.setState(StateShutdown)
	l.announce(context.WithoutCancel(ctx), InterruptFarewell)
	l.logger.Info("session interrupted")
	return nil
}

// respond answers the open user turn.
func (l *Loop) respond(ctx context.Context, text string) {
	if l.opts.Log != nil {
		l.opts.Log.RecordAssistant(ctx, text)
	}
	l.emit(ctx, text)
}

func (l *Loop) announce(ctx context.Context, text string) {
	if l.opts.Log != nil {
		l.opts.Log.RecordNotice(ctx, text)
	}
	l.emit(ctx, text)
}

func (l *Loop) emit(ctx context.Context, text string) {
	if err := l.opts.Sink.Emit(ctx, text); err != nil {
		l.logger.Warn("output failed", zap.Error(err))
	}
}
