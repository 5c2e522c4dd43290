package catalog

import (
	"context"
	"log/slog"
	"time"
)

const (
	// initialRetryDelay は取得失敗後の初回再試行までの遅延。
	initialRetryDelay = 30 * time.Second
)

// Refresher はカタログを一定間隔で再取得する。
// 失敗が続いた場合は指数バックオフで再試行し、間隔を上限とする。
type Refresher struct {
	loader   *Loader
	logger   *slog.Logger
	interval time.Duration
}

// NewRefresher はRefresherを生成する。
func NewRefresher(loader *Loader, logger *slog.Logger, interval time.Duration) *Refresher {
	return &Refresher{loader: loader, logger: logger, interval: interval}
}

// Start はコンテキストがキャンセルされるまで再取得を繰り返す。
// 起動直後に1回取得する。intervalが0以下の場合は何もしない。
func (r *Refresher) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}

	r.logger.Info("catalog refresher started", slog.Duration("interval", r.interval))

	consecutiveErrors := 0
	for {
		if _, err := r.loader.Refresh(ctx); err != nil {
			consecutiveErrors++
		} else {
			consecutiveErrors = 0
		}

		delay := r.interval
		if consecutiveErrors > 0 {
			delay = CalculateBackoff(consecutiveErrors-1, r.interval)
			r.logger.Warn("catalog refresh failed, retrying with backoff",
				slog.Int("consecutive_errors", consecutiveErrors),
				slog.Duration("retry_in", delay),
			)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("catalog refresher stopped")
			return
		case <-timer.C:
		}
	}
}

// CalculateBackoff は連続エラー回数に基づいて再試行までの遅延を計算する。
// 初回30秒、2倍ずつ増加し、maxDelayを超えない。
func CalculateBackoff(consecutiveErrors int, maxDelay time.Duration) time.Duration {
	delay := initialRetryDelay
	if delay > maxDelay {
		return maxDelay
	}
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxDelay {
			return maxDelay
		}
	}
	return delay
}
