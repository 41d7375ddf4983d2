package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

func issuanceLockKey(month, year int) string {
	return fmt.Sprintf("scheduler:issuance:%04d-%02d", year, month)
}

func collectionResetLockKey(at time.Time) string {
	year, week := at.ISOWeek()
	return fmt.Sprintf("scheduler:collection_reset:%04d-W%02d", year, week)
}

// acquireLeader takes the Redis lock for key. Without Redis every replica is
// the leader. The lock is held until its TTL expires unless the caller
// releases it after a failed run.
func (s *Scheduler) acquireLeader(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if !s.locker.Enabled() {
		return func() {}, true, nil
	}

	start := s.clock.Now()
	token, ok, err := s.locker.TryLock(ctx, key, ttl)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	s.logger(ctx).Debug("scheduler.leader_lock.acquired",
		zap.String("lock_key", key),
		zap.Int64("wait_ms", s.clock.Now().Sub(start).Milliseconds()),
	)

	release := func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("scheduler leader lock release failed", zap.String("lock_key", key), zap.Error(err))
		}
	}
	return release, true, nil
}
