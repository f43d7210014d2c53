package draft

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore はプロセス内メモリに下書きを保持するStore。
// DRAFT_STORE=memory およびテストで使用する。
type MemoryStore struct {
	mu     sync.RWMutex
	drafts map[Key]json.RawMessage
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[Key]json.RawMessage)}
}

// Get は保存されている下書きのコピーを返す。
func (s *MemoryStore) Get(ctx context.Context, key Key) (json.RawMessage, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.drafts[key]
	if !ok {
		return nil, nil
	}
	return append(json.RawMessage(nil), data...), nil
}

// Set は下書きのコピーを保存する。
func (s *MemoryStore) Set(ctx context.Context, key Key, data json.RawMessage) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[key] = append(json.RawMessage(nil), data...)
	return nil
}

// Clear は下書きを削除する。
func (s *MemoryStore) Clear(ctx context.Context, key Key) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, key)
	return nil
}

var _ Store = (*MemoryStore)(nil)
