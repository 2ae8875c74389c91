package intent

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/aide/internal/observability"
	"github.com/ent0n29/aide/internal/policy"
	"github.com/ent0n29/aide/internal/services"
	"github.com/ent0n29/aide/internal/store"
)

// Reply is what the assistant says back. Quit asks the session to end.
type Reply struct {
	Text   string `json:"text"`
	Intent string `json:"intent"`
	Quit   bool   `json:"quit"`
}

// Rule pairs a predicate over normalized input with its handler.
type Rule struct {
	Name   string
	Match  func(q string) bool
	Handle func(ctx context.Context, q string) Reply
}

type Knowledge interface {
	Summary(ctx context.Context, topic string, sentences int) (string, error)
}

type Weather interface {
	Current(ctx context.Context, city string) (services.WeatherReport, error)
}

type News interface {
	Headlines(ctx context.Context, category string, limit int) ([]string, error)
}

type Calculator interface {
	Compute(ctx context.Context, query string) (string, error)
}

type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

type SystemInfo interface {
	Status(ctx context.Context) (services.SystemStatus, error)
}

type Screenshotter interface {
	Capture(ctx context.Context) (string, error)
}

type URLOpener interface {
	Open(ctx context.Context, url string) error
}

type AppLauncher interface {
	Launch(ctx context.Context, app string) error
}

type TaskManager interface {
	Add(ctx context.Context, description string, priority int) string
	List(ctx context.Context) string
	Complete(ctx context.Context, substring string) string
}

type ReminderManager interface {
	Set(ctx context.Context, text, expr string) string
	Pending(ctx context.Context) ([]store.Reminder, error)
}

// LearningRecorder keeps inputs no rule understood.
type LearningRecorder interface {
	RecordUnknown(ctx context.Context, text string)
}

// DueCheck requests delivery of reminders that are already due.
type DueCheck interface {
	Trigger()
}

// Notifier speaks interim messages before a slow handler answers.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Deps are the collaborators rules delegate to. Nil service collaborators
// behave as not configured.
type Deps struct {
	Knowledge  Knowledge
	Weather    Weather
	News       News
	Calculator Calculator
	Translator Translator
	System     SystemInfo
	Screenshot Screenshotter
	Browser    URLOpener
	Apps       AppLauncher

	Tasks     TaskManager
	Reminders ReminderManager
	Learning  LearningRecorder
	DueCheck  DueCheck
	Notifier  Notifier

	DefaultLocation string

	Logger  *zap.Logger
	Metrics *observability.Metrics
	Now     func() time.Time
	// Pick returns a uniform index in [0, n).
	Pick func(n int) int
}

// Dispatcher classifies an utterance with an ordered first-match rule list.
type Dispatcher struct {
	deps  Deps
	rules []Rule
}

func NewDispatcher(deps Deps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Pick == nil {
		deps.Pick = rand.IntN
	}
	if strings.TrimSpace(deps.DefaultLocation) == "" {
		deps.DefaultLocation = "London"
	}
	d := &Dispatcher{deps: deps}
	d.rules = d.buildRules()
	return d
}

// Rules lists rule names in evaluation order.
func (d *Dispatcher) Rules() []string {
	out := make([]string, 0, len(d.rules))
	for _, r := range d.rules {
		out = append(out, r.Name)
	}
	return out
}

// Dispatch triggers the reminder due-check, then runs the first rule whose
// predicate accepts the normalized input.
func (d *Dispatcher) Dispatch(ctx context.Context, input string) Reply {
	q := Normalize(input)
	if d.deps.DueCheck != nil {
		d.deps.DueCheck.Trigger()
	}

	start := time.Now()
	for _, rule := range d.rules {
		if !rule.Match(q) {
			continue
		}
		reply := rule.Handle(ctx, q)
		reply.Intent = rule.Name
		d.deps.Metrics.ObserveDispatch(rule.Name, time.Since(start))
		d.deps.Logger.Debug("intent dispatched",
			zap.String("intent", rule.Name),
			zap.Duration("took", time.Since(start)),
		)
		return reply
	}
	// The fallback rule always matches.
	return Reply{Text: fallbackPrompts[0], Intent: IntentFallback}
}

// Normalize trims and lowercases input before matching.
func Normalize(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

func (d *Dispatcher) serviceFailed(service string, err error) {
	d.deps.Metrics.ServiceError(service)
	d.deps.Logger.Warn("service call failed",
		zap.String("service", service),
		zap.String("error", policy.ForLog(err.Error())),
	)
}

func containsAny(q string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

// hasWord matches whole words, ignoring surrounding punctuation.
func hasWord(q string, words ...string) bool {
	for _, f := range strings.Fields(q) {
		f = strings.Trim(f, ".,!?;:'\"")
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
