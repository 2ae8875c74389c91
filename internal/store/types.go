package store

import (
	"context"
	"errors"
	"time"
)

// UnknownCommandReply marks conversation rows recorded for inputs no intent matched.
const UnknownCommandReply = "UNKNOWN_COMMAND"

var ErrNotFound = errors.New("store: not found")

// Turn is one durable conversation row: a user utterance and the reply attached to it.
// A turn stays open until Replied is set.
type Turn struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UserInput string    `json:"user_input"`
	Reply     string    `json:"reply"`
	Replied   bool      `json:"replied"`
}

type Task struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	Priority    int       `json:"priority"`
	DueAt       time.Time `json:"due_at"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
}

type Reminder struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	FireAt    time.Time `json:"fire_at"`
	CreatedAt time.Time `json:"created_at"`
	Triggered bool      `json:"triggered"`
}

// Store persists conversation turns, tasks and reminders. Implementations are
// safe for concurrent use by the session loop and the reminder poller.
type Store interface {
	InsertTurn(ctx context.Context, turn Turn) (int64, error)
	// UpdateLastTurnReply attaches reply to the newest open turn. It reports
	// false when no turn is open.
	UpdateLastTurnReply(ctx context.Context, reply string) (bool, error)
	RecentTurns(ctx context.Context, limit int) ([]Turn, error)

	InsertTask(ctx context.Context, task Task) (int64, error)
	// ListIncompleteTasks orders by priority descending, then insertion order.
	ListIncompleteTasks(ctx context.Context) ([]Task, error)
	// CompleteTask completes the oldest incomplete task whose description
	// contains substring. Returns ErrNotFound when nothing matches.
	CompleteTask(ctx context.Context, substring string) (Task, error)

	InsertReminder(ctx context.Context, reminder Reminder) (int64, error)
	ListDueReminders(ctx context.Context, now time.Time) ([]Reminder, error)
	// MarkReminderTriggered is idempotent. Returns ErrNotFound for unknown ids.
	MarkReminderTriggered(ctx context.Context, id int64) error
	ListPendingReminders(ctx context.Context) ([]Reminder, error)

	Close() error
}
