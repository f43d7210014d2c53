package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore はRedisに下書きを保持するStore。
// キーは {prefix}{owner}:{name}。TTLが正の場合は書き込みのたびに有効期限を延長する。
type RedisStore struct {
	cmd    redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore はRedisStoreを生成する。
func NewRedisStore(cmd redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{
		cmd:    cmd,
		prefix: "draft:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(key Key) string {
	return s.prefix + key.Owner + ":" + key.Name
}

// Get は下書きを取得する。キーが存在しない場合はnilを返す。
func (s *RedisStore) Get(ctx context.Context, key Key) (json.RawMessage, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	val, err := s.cmd.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft %s: %w", key, err)
	}
	return json.RawMessage(val), nil
}

// Set は下書きを保存する。
func (s *RedisStore) Set(ctx context.Context, key Key, data json.RawMessage) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.cmd.Set(ctx, s.key(key), []byte(data), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set draft %s: %w", key, err)
	}
	return nil
}

// Clear は下書きを削除する。
func (s *RedisStore) Clear(ctx context.Context, key Key) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.cmd.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to clear draft %s: %w", key, err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
