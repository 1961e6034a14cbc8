package utils

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RoomJobs is the background work run on a schedule.
type RoomJobs interface {
	ExpireRooms(ctx context.Context) (int64, error)
	RetryPendingCopies(ctx context.Context) (int, error)
}

// ChatPruner forgets idle chat rate limiters.
type ChatPruner interface {
	Prune() int
}

const jobTimeout = 5 * time.Minute

// StartCronJobs schedules room expiry, the story copy retry drain and chat
// limiter pruning. The caller stops the returned scheduler on shutdown.
func StartCronJobs(jobs RoomJobs, chat ChatPruner, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()

	// 24時間更新がないルームを削除するジョブ
	if _, err := c.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		n, err := jobs.ExpireRooms(ctx)
		if err != nil {
			logger.Error("期限切れルームの削除に失敗しました", zap.Error(err))
			return
		}
		logger.Info("期限切れルームの削除完了", zap.Int64("rooms_deleted", n))
	}); err != nil {
		return nil, err
	}

	// 保存に失敗したストーリーのコピーを再試行するジョブ
	if _, err := c.AddFunc("@every 1m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		n, err := jobs.RetryPendingCopies(ctx)
		if err != nil {
			logger.Error("Story copy retry failed", zap.Error(err))
		}
		if n > 0 {
			logger.Info("Story copies written from retry queue", zap.Int("copies", n))
		}
	}); err != nil {
		return nil, err
	}

	if chat != nil {
		if _, err := c.AddFunc("@every 10m", func() {
			logger.Debug("Pruned chat limiters", zap.Int("remaining", chat.Prune()))
		}); err != nil {
			return nil, err
		}
	}

	c.Start()
	return c, nil
}
