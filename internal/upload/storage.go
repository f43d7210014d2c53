// Package upload は記事画像のアップロードと保存先ストレージを提供する。
package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage はアップロードされた画像の保存先。
type Storage interface {
	// Put は画像をnameで保存し、公開URLを返す。
	Put(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	// Name はメトリクスとログに使うバックエンド名を返す。
	Name() string
}

// LocalStorage はローカルディレクトリに画像を保存するStorage。
// 保存した画像はurlPrefix配下でサーバーから配信する。
type LocalStorage struct {
	dir       string
	urlPrefix string
}

// NewLocalStorage はLocalStorageを生成する。urlPrefixは "/uploads" のようなパス。
func NewLocalStorage(dir, urlPrefix string) *LocalStorage {
	return &LocalStorage{
		dir:       dir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
	}
}

// Dir は保存先ディレクトリを返す。
func (s *LocalStorage) Dir() string {
	return s.dir
}

// Name はバックエンド名を返す。
func (s *LocalStorage) Name() string {
	return "local"
}

// Put は画像をファイルとして保存する。
func (s *LocalStorage) Put(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid object name: %q", name)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	f, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close upload file: %w", err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		return "", fmt.Errorf("failed to chmod upload file: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("failed to move upload file: %w", err)
	}

	return s.urlPrefix + "/" + name, nil
}

var _ Storage = (*LocalStorage)(nil)
