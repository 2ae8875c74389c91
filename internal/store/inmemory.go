package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemoryStore is a simple in-process store for tests and throwaway sessions.
type InMemoryStore struct {
	mu        sync.RWMutex
	turns     []Turn
	tasks     []Task
	reminders []Reminder
	nextTurn  int64
	nextTask  int64
	nextRem   int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) InsertTurn(_ context.Context, turn Turn) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTurn++
	turn.ID = s.nextTurn
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	s.turns = append(s.turns, turn)
	return turn.ID, nil
}

func (s *InMemoryStore) UpdateLastTurnReply(_ context.Context, reply string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].Replied {
			continue
		}
		s.turns[i].Reply = reply
		s.turns[i].Replied = true
		return true, nil
	}
	return false, nil
}

func (s *InMemoryStore) RecentTurns(_ context.Context, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.turns) {
		limit = len(s.turns)
	}
	out := make([]Turn, limit)
	copy(out, s.turns[len(s.turns)-limit:])
	return out, nil
}

func (s *InMemoryStore) InsertTask(_ context.Context, task Task) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTask++
	task.ID = s.nextTask
	task.Completed = false
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	s.tasks = append(s.tasks, task)
	return task.ID, nil
}

func (s *InMemoryStore) ListIncompleteTasks(_ context.Context) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Task
	for _, t := range s.tasks {
		if !t.Completed {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *InMemoryStore) CompleteTask(_ context.Context, substring string) (Task, error) {
	if substring == "" {
		return Task{}, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].Completed || !strings.Contains(s.tasks[i].Description, substring) {
			continue
		}
		s.tasks[i].Completed = true
		return s.tasks[i], nil
	}
	return Task{}, ErrNotFound
}

func (s *InMemoryStore) InsertReminder(_ context.Context, reminder Reminder) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRem++
	reminder.ID = s.nextRem
	reminder.Triggered = false
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now().UTC()
	}
	s.reminders = append(s.reminders, reminder)
	return reminder.ID, nil
}

func (s *InMemoryStore) ListDueReminders(_ context.Context, now time.Time) ([]Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Reminder
	for _, r := range s.reminders {
		if !r.Triggered && !r.FireAt.After(now) {
			out = append(out, r)
		}
	}
	sortReminders(out)
	return out, nil
}

func (s *InMemoryStore) MarkReminderTriggered(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.reminders {
		if s.reminders[i].ID == id {
			s.reminders[i].Triggered = true
			return nil
		}
	}
	return ErrNotFound
}

func (s *InMemoryStore) ListPendingReminders(_ context.Context) ([]Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Reminder
	for _, r := range s.reminders {
		if !r.Triggered {
			out = append(out, r)
		}
	}
	sortReminders(out)
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }

func sortReminders(rs []Reminder) {
	sort.SliceStable(rs, func(i, j int) bool {
		if !rs[i].FireAt.Equal(rs[j].FireAt) {
			return rs[i].FireAt.Before(rs[j].FireAt)
		}
		return rs[i].ID < rs[j].ID
	})
}
