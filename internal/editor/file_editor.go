package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileEditor はJSONファイルをエディタとして扱う実装。
// オーサリングクライアントではユーザーがこのファイルを直接編集する。
// Openが成功するまでReadyはクローズされない。
type FileEditor struct {
	path  string
	ready chan struct{}
	once  sync.Once
	mu    sync.Mutex
}

// NewFileEditor はFileEditorを生成する。
func NewFileEditor(path string) *FileEditor {
	return &FileEditor{
		path:  path,
		ready: make(chan struct{}),
	}
}

// Open はファイルの親ディレクトリを用意し、エディタを使用可能にする。
func (e *FileEditor) Open() error {
	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return fmt.Errorf("failed to prepare editor file: %w", err)
	}
	e.once.Do(func() { close(e.ready) })
	return nil
}

// Ready はOpen完了時にクローズされるチャネルを返す。
func (e *FileEditor) Ready() <-chan struct{} {
	return e.ready
}

// Path はエディタファイルのパスを返す。
func (e *FileEditor) Path() string {
	return e.path
}

// Save はファイルの内容をエディタ出力として返す。
// ファイルが存在しないか空の場合はnilを返す。JSONとして不正な場合はエラー。
func (e *FileEditor) Save(ctx context.Context) (json.RawMessage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := os.ReadFile(e.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read editor file: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("editor file %s is not valid JSON", e.path)
	}
	return json.RawMessage(data), nil
}

// Render はdataを整形してファイルに書き込む。
func (e *FileEditor) Render(ctx context.Context, data json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("failed to format editor data: %w", err)
	}
	buf.WriteByte('\n')
	return e.write(buf.Bytes())
}

// Clear はファイルを空のドキュメントで上書きする。
func (e *FileEditor) Clear(ctx context.Context) error {
	return e.write(append(append([]byte(nil), emptyDocument...), '\n'))
}

func (e *FileEditor) write(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.WriteFile(e.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write editor file: %w", err)
	}
	return nil
}

var _ Editor = (*FileEditor)(nil)
