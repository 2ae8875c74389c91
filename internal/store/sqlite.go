package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    user_input TEXT NOT NULL DEFAULT '',
    reply TEXT NOT NULL DEFAULT '',
    replied INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tasks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    description TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 1,
    due_at INTEGER NOT NULL,
    completed INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS reminders (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    text TEXT NOT NULL,
    fire_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    triggered INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_conversations_open ON conversations(replied, id);
CREATE INDEX IF NOT EXISTS idx_tasks_pending ON tasks(completed, priority);
CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(triggered, fire_at);
`

// SQLiteStore persists everything in a single SQLite file. Timestamps are
// stored as unix nanoseconds so range comparisons stay numeric.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// DefaultDataDir follows the XDG data directory convention.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".local", "share", "aide")
		}
		dataHome = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataHome, "aide")
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return openSQLite(ctx, path, path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
}

// OpenSQLiteInMemory opens a private in-memory database.
func OpenSQLiteInMemory(ctx context.Context) (*SQLiteStore, error) {
	return openSQLite(ctx, ":memory:", ":memory:")
}

func openSQLite(ctx context.Context, path, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) InsertTurn(ctx context.Context, turn Turn) (int64, error) {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (session_id, created_at, user_input, reply, replied) VALUES (?, ?, ?, ?, ?)`,
		turn.SessionID, turn.CreatedAt.UnixNano(), turn.UserInput, turn.Reply, turn.Replied,
	)
	if err != nil {
		return 0, fmt.Errorf("insert turn: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) UpdateLastTurnReply(ctx context.Context, reply string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET reply = ?, replied = 1
		 WHERE id = (SELECT MAX(id) FROM conversations WHERE replied = 0)`,
		reply,
	)
	if err != nil {
		return false, fmt.Errorf("update turn reply: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update turn reply: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) RecentTurns(ctx context.Context, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, created_at, user_input, reply, replied
		 FROM conversations ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []Turn
	for rows.Next() {
		var (
			t       Turn
			created int64
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &created, &t.UserInput, &t.Reply, &t.Replied); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.CreatedAt = fromNanos(created)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	reverseTurns(turns)
	return turns, nil
}

func (s *SQLiteStore) InsertTask(ctx context.Context, task Task) (int64, error) {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (description, priority, due_at, completed, created_at) VALUES (?, ?, ?, 0, ?)`,
		task.Description, task.Priority, task.DueAt.UnixNano(), task.CreatedAt.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) ListIncompleteTasks(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, description, priority, due_at, completed, created_at
		 FROM tasks WHERE completed = 0 ORDER BY priority DESC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func (s *SQLiteStore) CompleteTask(ctx context.Context, substring string) (Task, error) {
	if substring == "" {
		return Task{}, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE tasks SET completed = 1
		 WHERE id = (
			SELECT id FROM tasks
			WHERE completed = 0 AND instr(description, ?) > 0
			ORDER BY id ASC LIMIT 1
		 )
		 RETURNING id, description, priority, due_at, completed, created_at`,
		substring,
	)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	return t, nil
}

func (s *SQLiteStore) InsertReminder(ctx context.Context, reminder Reminder) (int64, error) {
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (text, fire_at, created_at, triggered) VALUES (?, ?, ?, 0)`,
		reminder.Text, reminder.FireAt.UnixNano(), reminder.CreatedAt.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert reminder: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) ListDueReminders(ctx context.Context, now time.Time) ([]Reminder, error) {
	return s.queryReminders(ctx,
		`SELECT id, text, fire_at, created_at, triggered FROM reminders
		 WHERE triggered = 0 AND fire_at <= ? ORDER BY fire_at ASC, id ASC`,
		now.UnixNano(),
	)
}

func (s *SQLiteStore) ListPendingReminders(ctx context.Context) ([]Reminder, error) {
	return s.queryReminders(ctx,
		`SELECT id, text, fire_at, created_at, triggered FROM reminders
		 WHERE triggered = 0 ORDER BY fire_at ASC, id ASC`,
	)
}

func (s *SQLiteStore) MarkReminderTriggered(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET triggered = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark reminder triggered: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark reminder triggered: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) queryReminders(ctx context.Context, query string, args ...any) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Reminder
	for rows.Next() {
		var (
			r             Reminder
			fire, created int64
		)
		if err := rows.Scan(&r.ID, &r.Text, &fire, &created, &r.Triggered); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		r.FireAt = fromNanos(fire)
		r.CreatedAt = fromNanos(created)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var (
		t            Task
		due, created int64
	)
	if err := row.Scan(&t.ID, &t.Description, &t.Priority, &due, &t.Completed, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, err
		}
		return Task{}, fmt.Errorf("scan task: %w", err)
	}
	t.DueAt = fromNanos(due)
	t.CreatedAt = fromNanos(created)
	return t, nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func reverseTurns(turns []Turn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}
