package auth

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CleanupStore is the slice of the credential store the sweeper needs.
type CleanupStore interface {
	DeleteTokensBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper periodically purges refresh tokens that expired or were revoked
// more than the retention window ago.
type Sweeper struct {
	store     CleanupStore
	logger    *zap.Logger
	interval  time.Duration
	retention time.Duration
	backoff   time.Duration
	now       func() time.Time
}

func NewSweeper(store CleanupStore, logger *zap.Logger, interval, retention, backoff time.Duration) *Sweeper {
	return &Sweeper{
		store:     store,
		logger:    logger,
		interval:  interval,
		retention: retention,
		backoff:   backoff,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps immediately, then on every interval. A failed sweep is retried
// after the backoff instead of waiting a full interval. Run returns when the
// context is cancelled, including mid-wait.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("token_cleanup_started",
		zap.Duration("interval", s.interval),
		zap.Duration("retention", s.retention),
	)

	for {
		wait := s.interval
		if err := s.sweep(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			s.logger.Error("token_cleanup_failed", zap.Error(err))
			wait = s.backoff
		}

		if !sleep(ctx, wait) {
			break
		}
	}

	s.logger.Info("token_cleanup_stopped")
}

func (s *Sweeper) sweep(ctx context.Context) error {
	cutoff := s.now().Add(-s.retention)

	deleted, err := s.store.DeleteTokensBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	if deleted > 0 {
		s.logger.Info("token_cleanup_completed",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}

	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
