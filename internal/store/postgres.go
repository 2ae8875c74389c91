package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversation, tasks and reminders in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			user_input TEXT NOT NULL DEFAULT '',
			reply TEXT NOT NULL DEFAULT '',
			replied BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_open ON conversations (replied, id);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id BIGSERIAL PRIMARY KEY,
			description TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 1,
			due_at TIMESTAMPTZ NOT NULL,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_pending ON tasks (completed, priority DESC, id);`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id BIGSERIAL PRIMARY KEY,
			text TEXT NOT NULL,
			fire_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			triggered BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders (triggered, fire_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) InsertTurn(ctx context.Context, turn Turn) (int64, error) {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (session_id, created_at, user_input, reply, replied)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		turn.SessionID, turn.CreatedAt, turn.UserInput, turn.Reply, turn.Replied,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert turn: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) UpdateLastTurnReply(ctx context.Context, reply string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET reply = $1, replied = TRUE
		 WHERE id = (SELECT MAX(id) FROM conversations WHERE replied = FALSE)`,
		reply,
	)
	if err != nil {
		return false, fmt.Errorf("update turn reply: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) RecentTurns(ctx context.Context, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, created_at, user_input, reply, replied
		 FROM conversations ORDER BY id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	turns := make([]Turn, 0, limit)
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.CreatedAt, &t.UserInput, &t.Reply, &t.Replied); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	// Reverse into chronological order.
	reverseTurns(turns)
	return turns, nil
}

func (s *PostgresStore) InsertTask(ctx context.Context, task Task) (int64, error) {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tasks (description, priority, due_at, completed, created_at)
		 VALUES ($1, $2, $3, FALSE, $4) RETURNING id`,
		task.Description, task.Priority, task.DueAt, task.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListIncompleteTasks(ctx context.Context) ([]Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, description, priority, due_at, completed, created_at
		 FROM tasks WHERE completed = FALSE ORDER BY priority DESC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Description, &t.Priority, &t.DueAt, &t.Completed, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func (s *PostgresStore) CompleteTask(ctx context.Context, substring string) (Task, error) {
	if substring == "" {
		return Task{}, ErrNotFound
	}
	var t Task
	err := s.pool.QueryRow(ctx,
		`UPDATE tasks SET completed = TRUE
		 WHERE id = (
			SELECT id FROM tasks
			WHERE completed = FALSE AND strpos(description, $1) > 0
			ORDER BY id ASC LIMIT 1
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, description, priority, due_at, completed, created_at`,
		substring,
	).Scan(&t.ID, &t.Description, &t.Priority, &t.DueAt, &t.Completed, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("complete task: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) InsertReminder(ctx context.Context, reminder Reminder) (int64, error) {
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now().UTC()
	}
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO reminders (text, fire_at, created_at, triggered)
		 VALUES ($1, $2, $3, FALSE) RETURNING id`,
		reminder.Text, reminder.FireAt, reminder.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert reminder: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListDueReminders(ctx context.Context, now time.Time) ([]Reminder, error) {
	return s.queryReminders(ctx,
		`SELECT id, text, fire_at, created_at, triggered FROM reminders
		 WHERE triggered = FALSE AND fire_at <= $1 ORDER BY fire_at ASC, id ASC`,
		now,
	)
}

func (s *PostgresStore) ListPendingReminders(ctx context.Context) ([]Reminder, error) {
	return s.queryReminders(ctx,
		`SELECT id, text, fire_at, created_at, triggered FROM reminders
		 WHERE triggered = FALSE ORDER BY fire_at ASC, id ASC`,
	)
}

func (s *PostgresStore) MarkReminderTriggered(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE reminders SET triggered = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark reminder triggered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) queryReminders(ctx context.Context, query string, args ...any) ([]Reminder, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		if err := rows.Scan(&r.ID, &r.Text, &r.FireAt, &r.CreatedAt, &r.Triggered); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return out, nil
}
