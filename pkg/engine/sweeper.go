package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPendingTimeout is how long a paused execution waits for a user
// response before the sweeper fails it.
const DefaultPendingTimeout = 30 * time.Minute

// DefaultSweepInterval is how often the sweeper runs.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically expires stale pending waits and fires delayed
// continuations whose resume time has passed. The due-resumption poll also
// serves as the restart safety net for delays whose in-process timers died
// with the previous process.
type Sweeper struct {
	logger   *slog.Logger
	engine   *Engine
	timeout  time.Duration
	interval time.Duration
	cron     *cron.Cron
}

func NewSweeper(engine *Engine, timeout, interval time.Duration, logger *slog.Logger) *Sweeper {
	if timeout <= 0 {
		timeout = DefaultPendingTimeout
	}

	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	return &Sweeper{
		logger:   logger.With("module", "sweeper"),
		engine:   engine,
		timeout:  timeout,
		interval: interval,
		cron:     cron.New(),
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()

	s.logger.InfoContext(ctx, "Sweeper started",
		"interval", s.interval, "pending_timeout", s.timeout)

	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs one pass. Exported so operators and tests can force a pass
// without waiting for the schedule.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	s.expireStaleWaits(ctx, now)
	s.resumeDueDelays(ctx, now)
}

func (s *Sweeper) expireStaleWaits(ctx context.Context, now time.Time) {
	for _, wait := range s.engine.Pending().Expired(s.timeout, now) {
		// Take re-checks under the registry lock; a reply that raced the
		// sweep already consumed the wait and wins.
		taken, err := s.engine.Pending().Take(ctx, wait.ConversationID)
		if err != nil {
			continue
		}

		if err := s.engine.Expire(ctx, taken); err != nil {
			s.logger.ErrorContext(ctx, "Failed to expire pending wait",
				"execution_id", taken.ExecutionID,
				"conversation_id", taken.ConversationID,
				"error", err)

			continue
		}

		s.logger.InfoContext(ctx, "Expired pending wait",
			"execution_id", taken.ExecutionID,
			"conversation_id", taken.ConversationID,
			"waited", now.Sub(taken.CreatedAt))
	}
}

func (s *Sweeper) resumeDueDelays(ctx context.Context, now time.Time) {
	due, err := s.engine.persistence.ExecutionRepository().ListDueResumptions(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list due resumptions", "error", err)

		return
	}

	for _, execution := range due {
		if err := s.engine.ResumeDue(ctx, execution.ID); err != nil {
			s.logger.ErrorContext(ctx, "Failed to resume delayed execution",
				"execution_id", execution.ID, "error", err)
		}
	}
}
