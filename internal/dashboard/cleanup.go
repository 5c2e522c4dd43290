package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExpiringStore は期限切れのビュー状態を一括削除できるストア。
// MemoryStateStoreが実装する。RedisはキーのTTLで失効するため対象外。
type ExpiringStore interface {
	DeleteExpired(ctx context.Context, ttl time.Duration) (int, error)
}

// CleanupJob は一定時間保存されていないビュー状態を定期的に削除する。
// 削除対象がない場合もエラーにならない。
type CleanupJob struct {
	store    ExpiringStore
	logger   *slog.Logger
	TTL      time.Duration // 最終保存からの保持期間
	Interval time.Duration // 実行間隔
}

// NewCleanupJob はCleanupJobを生成する。実行間隔はTTLの1/4（最短1分）。
func NewCleanupJob(store ExpiringStore, logger *slog.Logger, ttl time.Duration) *CleanupJob {
	return &CleanupJob{
		store:    store,
		logger:   logger,
		TTL:      ttl,
		Interval: max(ttl/4, time.Minute),
	}
}

// Run は期限切れのビュー状態を1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.store.DeleteExpired(ctx, j.TTL)
	if err != nil {
		j.logger.Error("ダッシュボード状態のクリーンアップに失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("ダッシュボード状態のクリーンアップに失敗: %w", err)
	}

	j.logger.Info("dashboard state cleanup completed",
		slog.Int("deleted_count", deleted),
		slog.Duration("ttl", j.TTL),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はコンテキストがキャンセルされるまでInterval毎にRunを実行する。
// TTLが0以下の場合は何もしない。
func (j *CleanupJob) Start(ctx context.Context) {
	if j.TTL <= 0 {
		return
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// 失敗はRun内でログ出力済み。次回に再試行する
			_ = j.Run(ctx)
		}
	}
}
