// Package authoring は記事の保存パイプラインを提供する。
//
// 保存はエディタ出力の取得、下書きへの書き込み、必須項目の確認、画像アップロード、
// 記事APIへの1回のリクエストの順に進む。リモート保存が成功した場合のみ下書きを消去する。
package authoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/basedest/course-project/internal/draft"
	"github.com/basedest/course-project/internal/model"
	"github.com/basedest/course-project/internal/slug"
	"github.com/basedest/course-project/internal/upload"
	"github.com/basedest/course-project/internal/user"
)

// ユーザーに表示するメッセージ。
const (
	MsgRequiredFields = "some of required fields are not specified"
	MsgCheckInputs    = "Check your inputs. Title must be specified and unique."
	MsgUnreachable    = "Could not reach the server. Your draft is kept locally, try again."
	MsgDraftFailed    = "Could not keep a local draft. Nothing was sent."
	msgUploadFailed   = "Image upload failed: "
)

// ErrSubmitInFlight は保存処理の実行中に次の保存が要求された場合に返される。
var ErrSubmitInFlight = errors.New("a save is already in progress")

// EditorSource はエディタ出力の取得元。editor.Bridgeが実装する。
type EditorSource interface {
	Save(ctx context.Context) (json.RawMessage, error)
}

// ArticleAPI は記事の作成と更新を行うリモートAPI。
// 戻り値はHTTPステータスコードで、エラーは送受信の失敗のみを表す。
type ArticleAPI interface {
	CreateArticle(ctx context.Context, article *model.Article) (int, error)
	UpdateArticle(ctx context.Context, slug string, article *model.Article) (int, error)
}

// Uploader は画像ファイルを受け取り、公開URLを返す。
type Uploader interface {
	UploadImage(ctx context.Context, name string, r io.Reader) (*upload.Result, error)
}

// SessionSource はログイン中ユーザーの情報を返す。
type SessionSource interface {
	Me(ctx context.Context) (*user.Profile, error)
}

// Navigator は保存後の遷移先を受け取る。
type Navigator interface {
	Navigate(path string)
}

// Notifier はユーザーへの警告を表示する。
type Notifier interface {
	Alert(message string)
}

// Image は保存時にアップロードする画像。
type Image struct {
	Name string
	Data io.Reader
}

// Submission は1回の保存要求。
// Metadataはフォームの現在値で、編集時は既存記事の値を含む。
type Submission struct {
	Edit     bool
	Metadata model.Article
	Image    *Image
}

// Result は保存要求の結果の種類。
type Result int

const (
	// ResultNoData はエディタ出力がなく何もしなかったことを表す。
	ResultNoData Result = iota
	// ResultMissingFields は必須項目が未入力だったことを表す。
	ResultMissingFields
	// ResultUploadFailed は画像アップロードに失敗したことを表す。
	ResultUploadFailed
	// ResultRejected はAPIが記事を受け付けなかったことを表す。
	ResultRejected
	// ResultSaved は記事が保存されたことを表す。
	ResultSaved
)

func (r Result) String() string {
	switch r {
	case ResultNoData:
		return "no_data"
	case ResultMissingFields:
		return "missing_fields"
	case ResultUploadFailed:
		return "upload_failed"
	case ResultRejected:
		return "rejected"
	case ResultSaved:
		return "saved"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Outcome は保存要求の結果。
type Outcome struct {
	Result     Result
	StatusCode int
	Path       string
	Article    *model.Article
}

// Config はOrchestratorの依存。
// NavigatorとNotifierを省略した場合、遷移と警告は行わない。
type Config struct {
	Editor    EditorSource
	Drafts    draft.Store
	DraftKey  draft.Key
	API       ArticleAPI
	Uploader  Uploader
	Session   SessionSource
	Navigator Navigator
	Notifier  Notifier
	Logger    *slog.Logger
	Now       func() time.Time
}

// nopUI はNavigatorまたはNotifierが未指定の場合に使う。
type nopUI struct{}

func (nopUI) Navigate(string) {}
func (nopUI) Alert(string)    {}

// Orchestrator は保存パイプラインを実行する。
// 再試行は行わず、同時に実行できる保存は1つだけ。
type Orchestrator struct {
	cfg      Config
	inFlight atomic.Bool
}

// NewOrchestrator はOrchestratorを生成する。
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DraftKey.Owner == "" {
		cfg.DraftKey.Owner = "default"
	}
	if cfg.DraftKey.Name == "" {
		cfg.DraftKey.Name = draft.DataKey
	}
	if cfg.Navigator == nil {
		cfg.Navigator = nopUI{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopUI{}
	}
	return &Orchestrator{cfg: cfg}
}

// Submit は保存を1回実行する。
// 送受信の失敗時は下書きを残したままエラーを返す。遷移は行わない。
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (*Outcome, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmitInFlight
	}
	defer o.inFlight.Store(false)

	log := o.cfg.Logger.With(slog.Bool("edit", sub.Edit))

	data, err := o.cfg.Editor.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read editor output: %w", err)
	}
	if len(data) == 0 {
		log.Info("nothing to save: editor returned no data")
		return &Outcome{Result: ResultNoData}, nil
	}

	if err := o.cfg.Drafts.Set(ctx, o.cfg.DraftKey, data); err != nil {
		o.cfg.Notifier.Alert(MsgDraftFailed)
		return nil, fmt.Errorf("failed to write draft %s: %w", o.cfg.DraftKey, err)
	}

	meta := sub.Metadata
	if missing := meta.MissingRequiredFields(); len(missing) > 0 {
		log.Info("required fields missing", slog.String("fields", strings.Join(missing, ",")))
		o.cfg.Notifier.Alert(MsgRequiredFields)
		return &Outcome{Result: ResultMissingFields}, nil
	}

	uploaded := ""
	if sub.Image != nil {
		res, err := o.cfg.Uploader.UploadImage(ctx, sub.Image.Name, sub.Image.Data)
		if err != nil {
			log.Warn("image upload failed", slog.String("error", err.Error()))
			o.cfg.Notifier.Alert(msgUploadFailed + err.Error())
			return &Outcome{Result: ResultUploadFailed}, nil
		}
		uploaded = res.SecureURL
	}

	article, err := o.buildPayload(ctx, sub, uploaded, data)
	if err != nil {
		o.cfg.Notifier.Alert(MsgUnreachable)
		return nil, err
	}

	var status int
	if sub.Edit {
		status, err = o.cfg.API.UpdateArticle(ctx, article.Slug, article)
	} else {
		status, err = o.cfg.API.CreateArticle(ctx, article)
	}
	if err != nil {
		log.Error("article request failed", slog.String("slug", article.Slug), slog.String("error", err.Error()))
		o.cfg.Notifier.Alert(MsgUnreachable)
		return nil, fmt.Errorf("failed to send article %s: %w", article.Slug, err)
	}

	if status > http.StatusCreated {
		log.Info("article rejected", slog.String("slug", article.Slug), slog.Int("status", status))
		o.cfg.Notifier.Alert(MsgCheckInputs)
		return &Outcome{Result: ResultRejected, StatusCode: status, Article: article}, nil
	}

	if err := o.cfg.Drafts.Clear(ctx, o.cfg.DraftKey); err != nil {
		log.Warn("failed to clear draft after save", slog.String("error", err.Error()))
	}

	path := article.Path()
	log.Info("article saved", slog.String("path", path), slog.Int("status", status))
	o.cfg.Navigator.Navigate(path)
	return &Outcome{Result: ResultSaved, StatusCode: status, Path: path, Article: article}, nil
}

// buildPayload はフォームの値とエディタ出力から送信する記事を組み立てる。
func (o *Orchestrator) buildPayload(ctx context.Context, sub Submission, uploaded string, content json.RawMessage) (*model.Article, error) {
	now := o.cfg.Now()
	a := sub.Metadata

	if uploaded != "" {
		a.Img = uploaded
	}
	// サーバーと同じく前後の空白を除いてからスラッグとパスを導出する
	a.Title = strings.TrimSpace(a.Title)
	a.Category = strings.TrimSpace(a.Category)
	a.Description = strings.TrimSpace(a.Description)
	if sub.Edit && strings.TrimSpace(sub.Metadata.Slug) != "" {
		// タイトルは更新できないため、編集中の記事のスラッグを送信先にする
		a.Slug = strings.TrimSpace(sub.Metadata.Slug)
	} else {
		a.Slug = slug.Make(a.Title)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if sub.Edit {
		a.EditedAt = &now
	}
	if a.Author == "" && o.cfg.Session != nil {
		profile, err := o.cfg.Session.Me(ctx)
		if err != nil {
			o.cfg.Logger.Error("failed to load session user", slog.String("error", err.Error()))
			return nil, fmt.Errorf("failed to resolve author: %w", err)
		}
		a.Author = profile.Name
	}
	a.Content = content
	return &a, nil
}
