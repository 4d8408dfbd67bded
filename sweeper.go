package identity

import (
	"context"
	"sync"
	"time"

	"github.com/uptrace/bun"
)

// Sweeper periodically clears expired state: abandoned signups, spent
// reset windows, dead ephemeral tokens, and stale blacklist entries.
// Each task runs in its own transaction and a failing task never stops
// the others.
type Sweeper struct {
	repo     RepositoryManager
	interval time.Duration
	logger   Logger

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

func NewSweeper(repo RepositoryManager, cfg Config, logger Logger) *Sweeper {
	if logger == nil {
		logger = defLogger{}
	}
	return &Sweeper{
		repo:     repo,
		interval: cfg.SweepInterval,
		logger:   logger,
	}
}

// Start seeds the role catalog, runs one sweep immediately, and keeps
// sweeping on the configured interval until Stop or context cancellation.
func (s *Sweeper) Start(ctx context.Context) error {
	if err := s.repo.Roles().Seed(ctx); err != nil {
		return asRichError(err, "failed to seed role catalog")
	}

	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return nil
	}
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})
	stop, stopped := s.stop, s.stopped
	s.mu.Unlock()

	go func() {
		defer close(stopped)

		s.Sweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()

	return nil
}

// Stop halts the sweep loop and waits for the in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	stop, stopped := s.stop, s.stopped
	s.stop, s.stopped = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}

	close(stop)
	<-stopped
}

// Sweep runs every cleanup task once. Order matters: accounts pointing at
// expired tokens go first, then the pointers, then the tokens themselves.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now()

	s.runTask(ctx, "abandoned signups", func(ctx context.Context, tx bun.Tx) (int64, error) {
		return s.repo.Users().DeleteAbandonedSignupsTx(ctx, tx, now)
	})

	s.runTask(ctx, "stale reset requests", func(ctx context.Context, tx bun.Tx) (int64, error) {
		return s.repo.Users().ClearExpiredResetRequestsTx(ctx, tx, now)
	})

	s.runTask(ctx, "expired tokens", func(ctx context.Context, tx bun.Tx) (int64, error) {
		return s.repo.Tokens().DeleteExpiredTx(ctx, tx, now)
	})

	s.runTask(ctx, "orphaned tokens", func(ctx context.Context, tx bun.Tx) (int64, error) {
		return s.repo.Tokens().DeleteOrphanedTx(ctx, tx)
	})

	s.runTask(ctx, "expired blacklist entries", func(ctx context.Context, tx bun.Tx) (int64, error) {
		return s.repo.Blacklist().DeleteExpiredTx(ctx, tx, now)
	})
}

func (s *Sweeper) runTask(ctx context.Context, name string, task func(ctx context.Context, tx bun.Tx) (int64, error)) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sweep task %q panicked: %v", name, r)
		}
	}()

	var affected int64
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		n, err := task(ctx, tx)
		affected = n
		return err
	})

	if err != nil {
		s.logger.Error("sweep task %q failed: %s", name, err)
		return
	}

	if affected > 0 {
		s.logger.Info("sweep task %q cleared %d rows", name, affected)
	} else {
		s.logger.Debug("sweep task %q had nothing to clear", name)
	}
}
