package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"staybook/internal/domain"
	"staybook/internal/metrics"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverLocker uses the primary locker until it fails, then the fallback,
// retrying the primary once per recoveryInterval.
type FailoverLocker struct {
	primary  domain.HomestayLocker
	fallback domain.HomestayLocker
	logger   *zerolog.Logger
	isDown   atomic.Bool

	mu        sync.Mutex
	lastCheck time.Time
	now       func() time.Time
}

func NewFailoverLocker(primary, fallback domain.HomestayLocker, logger *zerolog.Logger) *FailoverLocker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverLocker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (l *FailoverLocker) shouldTryPrimary() bool {
	if !l.isDown.Load() {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.now().Sub(l.lastCheck) > recoveryInterval {
		l.lastCheck = l.now()
		return true
	}
	return false
}

func (l *FailoverLocker) markDown() {
	l.mu.Lock()
	l.lastCheck = l.now()
	l.mu.Unlock()
	if !l.isDown.Swap(true) {
		metrics.IncLockFailover()
	}
}

func (l *FailoverLocker) LockHomestay(ctx context.Context, homestayID int64) (func(), error) {
	if l.shouldTryPrimary() {
		unlock, err := l.primary.LockHomestay(ctx, homestayID)
		if err == nil {
			if l.isDown.Swap(false) {
				l.logger.Info().Msg("primary homestay locker recovered")
			}
			return unlock, nil
		}
		// Contention and cancellation are answers, not outages.
		if errors.Is(err, domain.ErrConflict) || ctx.Err() != nil {
			return nil, err
		}
		l.logger.Error().Err(err).Int64("homestay_id", homestayID).Msg("primary homestay locker failed, falling back to memory")
		l.markDown()
	}

	return l.fallback.LockHomestay(ctx, homestayID)
}
