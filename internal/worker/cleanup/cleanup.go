// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// セッションキャッシュとユーザーキャッシュはプロセス内にあるため、
// APIサーバーと同じプロセスで実行する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval は削除ジョブのデフォルト実行間隔。
const DefaultInterval = time.Hour

// Sweeper は期限切れセッションを削除し、削除件数を返す。
// session.Serviceが実装する。
type Sweeper interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// CleanupJob は期限切れセッションの定期削除ジョブ。
// 削除処理は冪等で、対象がない場合もエラーにならない。
type CleanupJob struct {
	sweeper  Sweeper
	logger   *slog.Logger
	Interval time.Duration // 実行間隔（デフォルト: 1時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// intervalが0以下の場合はDefaultIntervalを使う。
func NewCleanupJob(sweeper Sweeper, logger *slog.Logger, interval time.Duration) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &CleanupJob{
		sweeper:  sweeper,
		logger:   logger,
		Interval: interval,
	}
}

// Run は期限切れセッションの削除を1回実行する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.sweeper.CleanupExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int("deleted_count", deleted),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回、その後はIntervalごとに削除を実行する。
// ctxがキャンセルされるまでブロックする。失敗しても次の周期で再試行する。
func (j *CleanupJob) Start(ctx context.Context) {
	j.tick(ctx)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.tick(ctx)
		}
	}
}

func (j *CleanupJob) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	// エラーはRun内でログ出力済み
	_ = j.Run(ctx)
}
