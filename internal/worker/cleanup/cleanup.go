// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 有効期限を過ぎたセッションと、保持期間（デフォルト30日）を超えて
// 更新されていない下書きを日次バッチで削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const (
	deleteExpiredSessionsQuery = `DELETE FROM sessions WHERE expires_at < now()`
	deleteStaleDraftsQuery     = `DELETE FROM drafts WHERE updated_at < now() - $1::interval`
)

// DefaultDraftRetentionDays は下書きの保持日数のデフォルト値。
const DefaultDraftRetentionDays = 30

// CleanupJob は期限切れセッションと古い下書きの削除ジョブ。
// 各DELETEは冪等で、削除対象がなくてもエラーにならない。
type CleanupJob struct {
	db     Executor
	logger *slog.Logger

	// RetentionDays は下書きの保持日数（デフォルト: 30）。
	RetentionDays int
	// PurgeDrafts がfalseの場合、下書きの削除は行わない。
	// 下書きをPostgreSQL以外に保存している構成で使う。
	PurgeDrafts bool
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:            db,
		logger:        logger,
		RetentionDays: DefaultDraftRetentionDays,
		PurgeDrafts:   true,
	}
}

// Run は期限切れセッションを削除し、PurgeDraftsが有効なら古い下書きも削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	sessions, err := j.exec(ctx, deleteExpiredSessionsQuery)
	if err != nil {
		j.logger.Error("セッションのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションのクリーンアップに失敗: %w", err)
	}

	var drafts int64
	if j.PurgeDrafts {
		interval := fmt.Sprintf("%d days", j.RetentionDays)
		drafts, err = j.exec(ctx, deleteStaleDraftsQuery, interval)
		if err != nil {
			j.logger.Error("下書きのクリーンアップに失敗しました",
				slog.String("error", err.Error()),
				slog.Int("retention_days", j.RetentionDays),
			)
			return fmt.Errorf("下書きのクリーンアップに失敗: %w", err)
		}
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", sessions),
		slog.Int64("deleted_drafts", drafts),
		slog.Bool("purge_drafts", j.PurgeDrafts),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

func (j *CleanupJob) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return n, nil
}

// Start は起動直後に1回、その後interval毎にRunを実行する。
// コンテキストがキャンセルされるまでブロックする。
// Runの失敗はログに記録して次の周期で再試行する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
