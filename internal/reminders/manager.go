package reminders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/aide/internal/observability"
	"github.com/ent0n29/aide/internal/store"
)

// ConfirmLayout renders fire times in confirmations, minute precision.
const ConfirmLayout = "2006-01-02 15:04"

// MissingTextPrompt answers a reminder request that names no reminder text.
const MissingTextPrompt = "What should I remind you about?"

// Notifier delivers a due reminder to the user.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type NotifierFunc func(ctx context.Context, text string) error

func (f NotifierFunc) Notify(ctx context.Context, text string) error { return f(ctx, text) }

// Manager creates reminders and exposes the due/acknowledge primitives the
// Poller drives.
type Manager struct {
	store   store.Store
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func NewManager(st store.Store, logger *zap.Logger, metrics *observability.Metrics) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:   st,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Set stores a reminder for text at the time described by expr and returns
// the confirmation to speak.
func (m *Manager) Set(ctx context.Context, text, expr string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return MissingTextPrompt
	}
	now := m.now()
	fireAt, ok := ParseRelative(expr, now)
	if !ok {
		m.logger.Debug("relative time not recognized, using default delay",
			zap.String("expr", expr),
			zap.Duration("delay", DefaultDelay),
		)
	}
	id, err := m.store.InsertReminder(ctx, store.Reminder{
		Text:      text,
		FireAt:    fireAt,
		CreatedAt: now,
	})
	if err != nil {
		m.metrics.StoreError("insert_reminder")
		m.logger.Error("reminder store operation failed", zap.String("op", "insert_reminder"), zap.Error(err))
		return "Couldn't set reminder"
	}
	m.metrics.ReminderSet()
	m.logger.Info("reminder set", zap.Int64("reminder_id", id), zap.Time("fire_at", fireAt))
	return fmt.Sprintf("Reminder set: %s at %s", text, fireAt.Format(ConfirmLayout))
}

// PollDue returns untriggered reminders with a fire time at or before now.
func (m *Manager) PollDue(ctx context.Context, now time.Time) ([]store.Reminder, error) {
	due, err := m.store.ListDueReminders(ctx, now)
	if err != nil {
		m.metrics.StoreError("list_due_reminders")
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return due, nil
}

// Acknowledge marks a reminder delivered. Repeated calls are harmless.
func (m *Manager) Acknowledge(ctx context.Context, id int64) error {
	if err := m.store.MarkReminderTriggered(ctx, id); err != nil {
		m.metrics.StoreError("mark_reminder_triggered")
		return fmt.Errorf("acknowledge reminder %d: %w", id, err)
	}
	return nil
}

// Pending lists reminders that have not fired yet.
func (m *Manager) Pending(ctx context.Context) ([]store.Reminder, error) {
	out, err := m.store.ListPendingReminders(ctx)
	if err != nil {
		m.metrics.StoreError("list_pending_reminders")
		return nil, fmt.Errorf("list pending reminders: %w", err)
	}
	return out, nil
}
