package editor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/basedest/course-project/internal/draft"
	"github.com/basedest/course-project/internal/model"
)

// Loader はエディタに最初に表示する内容を決定する。
// 編集時は記事の内容、新規作成時はローカル下書き、下書きがなければ初期テンプレートを使う。
type Loader struct {
	drafts   draft.Store
	key      draft.Key
	fallback json.RawMessage
	delay    time.Duration
	logger   *slog.Logger
}

// LoaderOption はLoaderの設定を変更する。
type LoaderOption func(*Loader)

// WithDelay は下書きを読み込む前に待機する時間を設定する。デフォルトは0。
func WithDelay(d time.Duration) LoaderOption {
	return func(l *Loader) { l.delay = d }
}

// WithFallback は下書きがない場合に使うドキュメントを差し替える。
func WithFallback(doc json.RawMessage) LoaderOption {
	return func(l *Loader) { l.fallback = doc }
}

// NewLoader はLoaderを生成する。
func NewLoader(drafts draft.Store, key draft.Key, logger *slog.Logger, opts ...LoaderOption) *Loader {
	l := &Loader{
		drafts:   drafts,
		key:      key,
		fallback: FallbackTemplate(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load は読み込み処理1回分の状態を保持する。
// Doneがクローズされるまで Loading は true を返す（新規作成時のみ）。
type Load struct {
	mu      sync.Mutex
	data    json.RawMessage
	loading bool
	err     error
	done    chan struct{}
}

// Data は読み込まれた内容を返す。読み込み中またはキャンセル時はnil。
func (ld *Load) Data() json.RawMessage {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	return ld.data
}

// Loading は読み込み中かどうかを返す。
func (ld *Load) Loading() bool {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	return ld.loading
}

// Err はキャンセルされた場合にその理由を返す。
func (ld *Load) Err() error {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	return ld.err
}

// Done は読み込みが完了またはキャンセルされたときにクローズされる。
func (ld *Load) Done() <-chan struct{} {
	return ld.done
}

// Wait は読み込みの完了を待って内容を返す。
func (ld *Load) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-ld.done:
		ld.mu.Lock()
		defer ld.mu.Unlock()
		return ld.data, ld.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (ld *Load) finish(data json.RawMessage, err error) {
	ld.mu.Lock()
	ld.data = data
	ld.err = err
	ld.loading = false
	ld.mu.Unlock()
	close(ld.done)
}

// Start は初期内容の読み込みを開始する。
// editがtrueの場合はarticleの内容を即座に返し、Loadingは常にfalseになる。
// 新規作成時は非同期に下書きを読み込む。ctxが先にキャンセルされた場合は
// 結果を反映せずにLoadingをfalseにする。
func (l *Loader) Start(ctx context.Context, edit bool, article *model.Article) *Load {
	ld := &Load{done: make(chan struct{})}

	if edit {
		var content json.RawMessage
		if article != nil {
			content = article.Content
		}
		ld.data = content
		close(ld.done)
		return ld
	}

	ld.loading = true
	go l.run(ctx, ld)
	return ld
}

func (l *Loader) run(ctx context.Context, ld *Load) {
	if l.delay > 0 {
		timer := time.NewTimer(l.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			ld.finish(nil, ctx.Err())
			return
		case <-timer.C:
		}
	}

	result := make(chan json.RawMessage, 1)
	go func() {
		result <- l.read(ctx)
	}()

	select {
	case <-ctx.Done():
		ld.finish(nil, ctx.Err())
	case data := <-result:
		if err := ctx.Err(); err != nil {
			ld.finish(nil, err)
			return
		}
		ld.finish(data, nil)
	}
}

// read はローカル下書きを読み込み、使用できない場合は初期テンプレートを返す。
func (l *Loader) read(ctx context.Context) json.RawMessage {
	saved, err := l.drafts.Get(ctx, l.key)
	if err != nil {
		l.logger.Warn("failed to read local draft, using initial template",
			slog.String("key", l.key.String()),
			slog.String("error", err.Error()),
		)
		return l.fallback
	}
	if saved == nil {
		l.logger.Info("no saved draft, using initial template",
			slog.String("key", l.key.String()),
		)
		return l.fallback
	}
	if !json.Valid(saved) {
		l.logger.Warn("local draft is not valid JSON, using initial template",
			slog.String("key", l.key.String()),
			slog.Int("size", len(saved)),
		)
		return l.fallback
	}

	l.logger.Info("loaded local draft",
		slog.String("key", l.key.String()),
		slog.Int("size", len(saved)),
	)
	return saved
}
