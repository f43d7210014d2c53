package draft

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/basedest/course-project/internal/repository"
)

// RepositoryStore はDraftRepositoryをStoreとして使うためのアダプタ。
type RepositoryStore struct {
	repo repository.DraftRepository
}

// NewRepositoryStore はRepositoryStoreを生成する。
func NewRepositoryStore(repo repository.DraftRepository) *RepositoryStore {
	return &RepositoryStore{repo: repo}
}

// Get は下書きを取得する。存在しない場合はnilを返す。
func (s *RepositoryStore) Get(ctx context.Context, key Key) (json.RawMessage, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	d, err := s.repo.Find(ctx, key.Owner, key.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft %s: %w", key, err)
	}
	if d == nil {
		return nil, nil
	}
	return d.Data, nil
}

// Set は下書きを保存する。
func (s *RepositoryStore) Set(ctx context.Context, key Key, data json.RawMessage) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.repo.Upsert(ctx, key.Owner, key.Name, data); err != nil {
		return fmt.Errorf("failed to set draft %s: %w", key, err)
	}
	return nil
}

// Clear は下書きを削除する。
func (s *RepositoryStore) Clear(ctx context.Context, key Key) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, key.Owner, key.Name); err != nil {
		return fmt.Errorf("failed to clear draft %s: %w", key, err)
	}
	return nil
}

var _ Store = (*RepositoryStore)(nil)
