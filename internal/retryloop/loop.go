// Package retryloop periodically re-attempts queued uploads that failed
// while the remote backend was unreachable, reconciling the durable retry
// queue once connectivity returns.
package retryloop

import (
	"context"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/pgfx-sync/agent/internal/queue"
	"github.com/pgfx-sync/agent/internal/upload"
)

// BatchSize bounds how many pending items a single reconciliation pass
// re-attempts, so one slow pass doesn't starve newly-arriving uploads.
const BatchSize = 50

// Loop periodically drains the retry queue, up to MaxRetries attempts per
// item, at Interval.
type Loop struct {
	queue      *queue.Queue
	uploader   *upload.Uploader
	interval   time.Duration
	maxRetries int
	logger     *zap.Logger
}

// New builds a Loop that checks the queue every interval, giving up on an
// item (marking it failed) after maxRetries unsuccessful attempts.
func New(q *queue.Queue, u *upload.Uploader, interval time.Duration, maxRetries int, logger *zap.Logger) *Loop {
	return &Loop{queue: q, uploader: u, interval: interval, maxRetries: maxRetries, logger: logger}
}

// Run blocks, processing the queue every interval until ctx is canceled.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.processOnce(ctx)
		}
	}
}

// processOnce runs a single reconciliation pass over pending items.
func (l *Loop) processOnce(ctx context.Context) {
	items, err := l.queue.Pending(ctx, BatchSize)
	if err != nil {
		if l.logger != nil {
			l.logger.Error("retry loop: listing pending items failed", zap.Error(err))
		}
		return
	}

	for _, item := range items {
		if _, statErr := os.Stat(item.FilePath); errors.Is(statErr, os.ErrNotExist) {
			if markErr := l.queue.MarkFailed(ctx, item.ID, "File not found: "+item.FilePath); markErr != nil && l.logger != nil {
				l.logger.Error("retry loop: marking item failed failed", zap.Int64("id", item.ID), zap.Error(markErr))
			}
			if l.logger != nil {
				l.logger.Warn("retry-exhausted, file not found", zap.Int64("id", item.ID), zap.String("path", item.FilePath))
			}
			continue
		}

		res := l.uploader.Attempt(ctx, item.FilePath)
		if res.Success {
			if markErr := l.queue.MarkCompleted(ctx, item.ID); markErr != nil && l.logger != nil {
				l.logger.Error("retry loop: marking item completed failed", zap.Int64("id", item.ID), zap.Error(markErr))
			}
			if l.logger != nil {
				l.logger.Info("retry-attempt succeeded",
					zap.Int64("id", item.ID), zap.String("path", item.FilePath),
					zap.String("session_id", res.SessionID), zap.Int("hand_count", res.HandCount), zap.Bool("dedup", res.Dedup))
			}
			continue
		}

		count, incErr := l.queue.IncrementRetry(ctx, item.ID, res.ErrorMessage)
		if incErr != nil {
			if l.logger != nil {
				l.logger.Error("retry loop: incrementing retry count failed", zap.Int64("id", item.ID), zap.Error(incErr))
			}
			continue
		}

		if count >= l.maxRetries {
			if markErr := l.queue.MarkFailed(ctx, item.ID, "Max retries exceeded: "+res.ErrorMessage); markErr != nil && l.logger != nil {
				l.logger.Error("retry loop: marking item failed failed", zap.Int64("id", item.ID), zap.Error(markErr))
			}
			if l.logger != nil {
				l.logger.Warn("retry-exhausted", zap.Int64("id", item.ID), zap.String("path", item.FilePath), zap.Int("retry_count", count))
			}
			continue
		}

		if l.logger != nil {
			l.logger.Info("retry-attempt failed, will retry",
				zap.Int64("id", item.ID), zap.Int("retry_count", count), zap.String("error", res.ErrorMessage))
		}
	}
}
