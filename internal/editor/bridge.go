package editor

import (
	"context"
	"encoding/json"
	"sync"
)

// Editor はリッチテキストエディタのインスタンスを表す。
// Readyはエディタのマウントが完了し、内容を変更してよい状態になるとクローズされる。
type Editor interface {
	Ready() <-chan struct{}
	Save(ctx context.Context) (json.RawMessage, error)
	Render(ctx context.Context, data json.RawMessage) error
	Clear(ctx context.Context) error
}

// Bridge はエディタの生成前後を問わず安全に操作するためのアダプタ。
// エディタが未設定の間はすべての操作が何もしない。
type Bridge struct {
	mu     sync.RWMutex
	editor Editor
}

// NewBridge はエディタ未設定のBridgeを生成する。
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach はマウントされたエディタを設定する。
func (b *Bridge) Attach(e Editor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.editor = e
}

// Detach はエディタの設定を解除する。
func (b *Bridge) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.editor = nil
}

// Attached はエディタが設定されているかを返す。
func (b *Bridge) Attached() bool {
	return b.current() != nil
}

func (b *Bridge) current() Editor {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.editor
}

// waitReady はエディタの準備完了またはctxのキャンセルを待つ。
func waitReady(ctx context.Context, e Editor) error {
	select {
	case <-e.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Render はエディタの準備完了を待ってから内容をdataで置き換える。
// エディタ未設定またはdataが空の場合は何もしない。
func (b *Bridge) Render(ctx context.Context, data json.RawMessage) error {
	e := b.current()
	if e == nil || len(data) == 0 {
		return nil
	}
	if err := waitReady(ctx, e); err != nil {
		return err
	}
	return e.Render(ctx, data)
}

// Clear はエディタの準備完了を待ってからすべての内容を消去する。
// エディタ未設定の場合は何もしない。
func (b *Bridge) Clear(ctx context.Context) error {
	e := b.current()
	if e == nil {
		return nil
	}
	if err := waitReady(ctx, e); err != nil {
		return err
	}
	return e.Clear(ctx)
}

// Save はエディタの現在の内容を返す。
// エディタ未設定の場合はnilを返す。
func (b *Bridge) Save(ctx context.Context) (json.RawMessage, error) {
	e := b.current()
	if e == nil {
		return nil, nil
	}
	if err := waitReady(ctx, e); err != nil {
		return nil, err
	}
	return e.Save(ctx)
}

// Sync は読み込みの完了を待ち、得られた内容をエディタに描画する。
// 読み込みがキャンセルされた場合は何も描画しない。
func Sync(ctx context.Context, b *Bridge, ld *Load) error {
	data, err := ld.Wait(ctx)
	if err != nil {
		return err
	}
	return b.Render(ctx, data)
}
