package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrRunInProgress means another reconciliation run holds the feed's
// lock. Runs against the same funding source must be serialized; the
// caller should retry later rather than proceed.
var ErrRunInProgress = errors.New("reconciliation run already in progress for this feed")

// lockTTL bounds how long a crashed run can keep a feed locked.
const lockTTL = 2 * time.Hour

// RunLock serializes runs per feed through a redis key. A nil *RunLock
// is valid and locks nothing, for deployments without redis.
type RunLock struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRunLock creates a redis-backed run lock.
func NewRunLock(client *redis.Client, logger *zap.Logger) *RunLock {
	return &RunLock{
		client: client,
		logger: logger,
	}
}

func lockKey(feedName string) string {
	return "padron-sync:run:" + feedName
}

// Acquire takes the feed's lock, failing with ErrRunInProgress when it
// is already held.
func (l *RunLock) Acquire(ctx context.Context, feedName string) error {
	if l == nil {
		return nil
	}
	ok, err := l.client.SetNX(ctx, lockKey(feedName), time.Now().UTC().Format(time.RFC3339), lockTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return ErrRunInProgress
	}
	l.logger.Info("Run lock acquired", zap.String("feed", feedName))
	return nil
}

// Release drops the feed's lock. Best effort: a failed release expires
// with the TTL.
func (l *RunLock) Release(ctx context.Context, feedName string) {
	if l == nil {
		return
	}
	if err := l.client.Del(ctx, lockKey(feedName)).Err(); err != nil {
		l.logger.Warn("Failed to release run lock", zap.String("feed", feedName), zap.Error(err))
	}
}
