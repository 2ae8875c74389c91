package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/aide/internal/observability"
	"github.com/ent0n29/aide/internal/store"
)

const (
	DefaultPriority = 1
	DefaultDueIn    = 24 * time.Hour
)

const (
	replyStoreError = "Task management error occurred"
	replyNotFound   = "Task not found"
	replyNoPending  = "No pending tasks"
)

// Manager is a stateless façade over the Store for the to-do list. Every
// operation answers with the text the assistant speaks.
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
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Add stores a task due one day from now. The description is not validated.
func (m *Manager) Add(ctx context.Context, description string, priority int) string {
	now := m.now()
	_, err := m.store.InsertTask(ctx, store.Task{
		Description: description,
		Priority:    priority,
		DueAt:       now.Add(DefaultDueIn),
		CreatedAt:   now,
	})
	if err != nil {
		m.storeFailed("insert_task", err)
		return replyStoreError
	}
	m.logger.Debug("task added", zap.String("description", description), zap.Int("priority", priority))
	return fmt.Sprintf("Task added: %s", description)
}

func (m *Manager) List(ctx context.Context) string {
	pending, err := m.store.ListIncompleteTasks(ctx)
	if err != nil {
		m.storeFailed("list_tasks", err)
		return replyStoreError
	}
	if len(pending) == 0 {
		return replyNoPending
	}
	items := make([]string, 0, len(pending))
	for _, t := range pending {
		items = append(items, fmt.Sprintf("%s (Priority: %d)", t.Description, t.Priority))
	}
	return "Your pending tasks: " + strings.Join(items, ", ")
}

// Complete marks the oldest pending task containing substring as done.
func (m *Manager) Complete(ctx context.Context, substring string) string {
	if strings.TrimSpace(substring) == "" {
		return replyNotFound
	}
	task, err := m.store.CompleteTask(ctx, substring)
	if errors.Is(err, store.ErrNotFound) {
		return replyNotFound
	}
	if err != nil {
		m.storeFailed("complete_task", err)
		return replyStoreError
	}
	m.logger.Debug("task completed", zap.Int64("task_id", task.ID))
	return fmt.Sprintf("Task completed: %s", substring)
}

// Pending returns incomplete tasks for operator views.
func (m *Manager) Pending(ctx context.Context) ([]store.Task, error) {
	out, err := m.store.ListIncompleteTasks(ctx)
	if err != nil {
		m.storeFailed("list_tasks", err)
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

func (m *Manager) storeFailed(op string, err error) {
	m.metrics.StoreError(op)
	m.logger.Error("task store operation failed", zap.String("op", op), zap.Error(err))
}
