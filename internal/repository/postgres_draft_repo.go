package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/basedest/course-project/internal/model"
)

// PostgresDraftRepo はPostgreSQLを使用した下書きリポジトリ。
// dataはJSON型で保存し、受け取った文字列をそのまま返す。
type PostgresDraftRepo struct {
	db *sql.DB
}

// NewPostgresDraftRepo はPostgresDraftRepoを生成する。
func NewPostgresDraftRepo(db *sql.DB) *PostgresDraftRepo {
	return &PostgresDraftRepo{db: db}
}

// Find は下書きを取得する。見つからない場合はnilを返す。
func (r *PostgresDraftRepo) Find(ctx context.Context, owner, name string) (*model.Draft, error) {
	d := &model.Draft{Owner: owner, Name: name}
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data, updated_at FROM drafts WHERE owner = $1 AND name = $2`,
		owner, name,
	).Scan(&data, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find draft: %w", err)
	}
	d.Data = json.RawMessage(data)
	return d, nil
}

// Upsert は下書きを保存する。
func (r *PostgresDraftRepo) Upsert(ctx context.Context, owner, name string, data json.RawMessage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO drafts (owner, name, data, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (owner, name) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		owner, name, []byte(data),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert draft: %w", err)
	}
	return nil
}

// Delete は下書きを削除する。
func (r *PostgresDraftRepo) Delete(ctx context.Context, owner, name string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE owner = $1 AND name = $2`, owner, name); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// DeleteOlderThan はbefore以前に更新された下書きを削除する。
func (r *PostgresDraftRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old drafts: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ DraftRepository = (*PostgresDraftRepo)(nil)
