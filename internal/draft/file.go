package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore はディレクトリ配下のJSONファイルに下書きを保持するStore。
// オーサリングクライアントのローカル下書きとして使用し、再起動後も内容が残る。
// パスは {dir}/{owner}/{name}.json となる。
type FileStore struct {
	dir string
}

// NewFileStore はFileStoreを生成する。ディレクトリは初回書き込み時に作成される。
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(key Key) string {
	return filepath.Join(s.dir, key.Owner, key.Name+".json")
}

// Get は下書きファイルの内容を返す。ファイルが存在しない場合はnilを返す。
func (s *FileStore) Get(ctx context.Context, key Key) (json.RawMessage, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read draft %s: %w", key, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

// Set は一時ファイルに書き込んでからリネームすることで下書きを置き換える。
// 書き込み途中で中断しても以前の下書きは壊れない。
func (s *FileStore) Set(ctx context.Context, key Key, data json.RawMessage) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target := s.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return fmt.Errorf("failed to create draft directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), key.Name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp draft file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write draft %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close draft %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to replace draft %s: %w", key, err)
	}
	return nil
}

// Clear は下書きファイルを削除する。
func (s *FileStore) Clear(ctx context.Context, key Key) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove draft %s: %w", key, err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
