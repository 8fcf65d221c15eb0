// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 期限切れから保持期間を過ぎたセッションと、期限切れの確認コードを削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/tpodo/internal/metrics"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// 削除対象。メトリクスのラベルにも使う。
const (
	TargetSessions = "sessions"
	TargetOTPCodes = "otp_codes"
)

// CleanupJob は期限切れのセッションと確認コードを削除するジョブ。
// 冪等な削除処理のみを行うため、複数のワーカーから同時に実行しても安全。
type CleanupJob struct {
	db      Executor
	logger  *slog.Logger
	metrics metrics.MetricsCollector

	// SessionRetention は期限切れセッションを残しておく期間（デフォルト: 24時間）
	SessionRetention time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger, collector metrics.MetricsCollector) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &CleanupJob{
		db:               db,
		logger:           logger,
		metrics:          collector,
		SessionRetention: 24 * time.Hour,
	}
}

// Run は期限切れデータを削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	retention := fmt.Sprintf("%d seconds", int64(j.SessionRetention.Seconds()))
	sessions, err := j.delete(ctx, TargetSessions,
		`DELETE FROM sessions WHERE expires_at < now() - $1::interval`, retention)
	if err != nil {
		return err
	}

	codes, err := j.delete(ctx, TargetOTPCodes,
		`DELETE FROM otp_codes WHERE expires_at < now()`)
	if err != nil {
		return err
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", sessions+codes),
		slog.Int64("deleted_sessions", sessions),
		slog.Int64("deleted_otp_codes", codes),
		slog.Duration("session_retention", j.SessionRetention),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

func (j *CleanupJob) delete(ctx context.Context, target, query string, args ...interface{}) (int64, error) {
	result, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		j.logger.Error("クリーンアップジョブの実行に失敗しました",
			slog.String("target", target),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("%sの削除に失敗: %w", target, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("target", target),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	j.metrics.RecordCleanupDeleted(target, deleted)
	return deleted, nil
}

// Start は起動直後に1回実行し、以降はintervalごとにRunを繰り返す。
// ctxがキャンセルされると戻る。失敗はログに記録して次の周期に回す。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.logger.Info("クリーンアップジョブを開始します",
		slog.Duration("interval", interval),
	)

	if err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("クリーンアップジョブが失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error("クリーンアップジョブが失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}
