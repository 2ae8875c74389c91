package reminders

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/aide/internal/observability"
)

const DefaultPollInterval = 60 * time.Second

// Poller periodically delivers due reminders and is the only component that
// marks them triggered.
type Poller struct {
	manager  *Manager
	notifier Notifier
	interval time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics
	kick     chan struct{}
	now      func() time.Time
}

func NewPoller(manager *Manager, notifier Notifier, interval time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		manager:  manager,
		notifier: notifier,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		kick:     make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Trigger asks the running poller for an extra cycle. It never blocks;
// pending kicks coalesce.
func (p *Poller) Trigger() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run polls once immediately, then on every tick or Trigger until ctx ends.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("reminder poller started", zap.Duration("interval", p.interval))
	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("reminder poller stopped")
			return nil
		case <-ticker.C:
			p.Poll(ctx)
		case <-p.kick:
			p.Poll(ctx)
		}
	}
}

// Poll runs one cycle and returns how many reminders were delivered. A
// reminder whose delivery fails stays untriggered for the next cycle.
func (p *Poller) Poll(ctx context.Context) int {
	due, err := p.manager.PollDue(ctx, p.now())
	if err != nil {
		p.logger.Error("reminder poll failed", zap.Error(err))
		return 0
	}
	delivered := 0
	for _, r := range due {
		if ctx.Err() != nil {
			return delivered
		}
		if err := p.notifier.Notify(ctx, "Reminder: "+r.Text); err != nil {
			p.metrics.ReminderFailed()
			p.logger.Warn("reminder delivery failed",
				zap.Int64("reminder_id", r.ID),
				zap.Error(err),
			)
			continue
		}
		if err := p.manager.Acknowledge(ctx, r.ID); err != nil {
			p.logger.Error("reminder acknowledge failed",
				zap.Int64("reminder_id", r.ID),
				zap.Error(err),
			)
			continue
		}
		p.metrics.ReminderDelivered()
		delivered++
	}
	return delivered
}
