// Package sweep は期限切れ検証セッションの定期削除ジョブを提供する。
// 期限切れセッションは検証試行時にも遅延削除されるため、このジョブは
// 一度も再検証されなかったセッションの滞留を防ぐ保険にすぎない。冪等。
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionDeleter は期限切れセッションの一括削除インターフェース。
// repository.SessionRepositoryが実装する。
type SessionDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Metrics はスイープ件数の記録インターフェース。nil許容。
type Metrics interface {
	RecordSessionsSwept(count int64)
}

// Job は期限切れセッションのスイープジョブ。
type Job struct {
	sessions SessionDeleter
	metrics  Metrics
	logger   *slog.Logger
	now      func() time.Time // テスト用に差し替え可能
}

// NewJob はJobの新しいインスタンスを生成する。metricsはnil許容。
func NewJob(sessions SessionDeleter, metrics Metrics, logger *slog.Logger) *Job {
	return &Job{
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Run は期限切れセッションを1回削除する。
// 削除対象がない場合もエラーにならない。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.sessions.DeleteExpired(ctx, j.now())
	if err != nil {
		j.logger.Error("期限切れセッションのスイープに失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordSessionsSwept(deleted)
	}

	j.logger.Info("セッションスイープが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでスイープを起動する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッションスイープを開始しました",
		slog.Duration("interval", interval),
	)

	if err := j.Run(ctx); err != nil {
		j.logger.Error("スイープサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションスイープを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("スイープサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
