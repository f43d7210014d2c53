package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/basedest/course-project/internal/apiclient"
	"github.com/basedest/course-project/internal/authoring"
	"github.com/basedest/course-project/internal/config"
	"github.com/basedest/course-project/internal/draft"
	"github.com/basedest/course-project/internal/editor"
	"github.com/basedest/course-project/internal/logger"
)

// ErrNotSaved はpublishで記事が保存されなかった場合に返される。
// 理由はNotifierで表示済み。
var ErrNotSaved = errors.New("article was not saved")

// localDraftOwner はローカル下書きの所有者名。プロファイルごとに1つの下書きを持つ。
const localDraftOwner = "local"

// clientSession はオーサリングコマンドが共有する依存関係。
type clientSession struct {
	cfg    *config.ClientConfig
	api    *apiclient.Client
	drafts draft.Store
	key    draft.Key
	editor *editor.FileEditor
	bridge *editor.Bridge
	logger *slog.Logger
	out    io.Writer
}

// runClient はedit、publish、clearを実行する。
func runClient(ctx context.Context, w io.Writer, cmd Command, args []string) error {
	flags := config.NewClientFlagSet(string(cmd))
	set := flags.FlagSet()
	verbose := set.Bool("verbose", false, "print debug logs to stderr (BLOG_VERBOSE)")
	metaPath := set.String("meta", "", "article metadata TOML file (BLOG_META)")

	var slugFlag, imageFlag *string
	switch cmd {
	case CommandEdit:
		slugFlag = set.String("slug", "", "load an existing article instead of the local draft")
	case CommandPublish:
		imageFlag = set.String("image", "", "image file to upload as the cover")
	}

	cfg, err := flags.Parse(args)
	if err != nil {
		return err
	}

	s, err := newClientSession(cfg, w, logger.SetupText(os.Stderr, *verbose))
	if err != nil {
		return err
	}
	if *metaPath == "" {
		*metaPath = filepath.Join(cfg.ProfileDir, "article.toml")
	}

	switch cmd {
	case CommandEdit:
		return s.edit(ctx, *slugFlag, *metaPath)
	case CommandPublish:
		return s.publish(ctx, *metaPath, *imageFlag)
	default:
		return s.clear(ctx)
	}
}

func newClientSession(cfg *config.ClientConfig, w io.Writer, log *slog.Logger) (*clientSession, error) {
	api, err := apiclient.New(cfg.Server, apiclient.WithTimeout(cfg.Timeout))
	if err != nil {
		return nil, err
	}

	fe := editor.NewFileEditor(cfg.EditorFile)
	if err := fe.Open(); err != nil {
		return nil, err
	}
	bridge := editor.NewBridge()
	bridge.Attach(fe)

	return &clientSession{
		cfg:    cfg,
		api:    api,
		drafts: draft.NewFileStore(cfg.DraftDir()),
		key:    draft.Key{Owner: localDraftOwner, Name: draft.DataKey},
		editor: fe,
		bridge: bridge,
		logger: log,
		out:    w,
	}, nil
}

// edit はエディタファイルに初期内容を読み込む。
// slugを指定した場合は既存記事の内容とメタデータを、それ以外は
// ローカル下書きか初期テンプレートを読み込む。
func (s *clientSession) edit(ctx context.Context, slug, metaPath string) error {
	loader := editor.NewLoader(s.drafts, s.key, s.logger, editor.WithDelay(s.cfg.LoadDelay))

	var load *editor.Load
	if slug != "" {
		a, err := s.api.GetArticle(ctx, slug)
		if err != nil {
			return fmt.Errorf("failed to fetch article %s: %w", slug, err)
		}
		if a == nil {
			return fmt.Errorf("article not found: %s", slug)
		}
		if err := config.WriteArticleMeta(metaPath, config.MetaFromArticle(a)); err != nil {
			return err
		}
		load = loader.Start(ctx, true, a)
	} else {
		if _, err := os.Stat(metaPath); errors.Is(err, fs.ErrNotExist) {
			if err := config.WriteArticleMeta(metaPath, &config.ArticleMeta{}); err != nil {
				return err
			}
		}
		load = loader.Start(ctx, false, nil)
	}

	if err := editor.Sync(ctx, s.bridge, load); err != nil {
		return fmt.Errorf("failed to load editor data: %w", err)
	}

	fmt.Fprintf(s.out, "editor file: %s\nmetadata:    %s\n", s.editor.Path(), metaPath)
	return nil
}

// publish はエディタファイルの内容を記事として保存する。
// メタデータにslugがある場合は既存記事の更新になる。
func (s *clientSession) publish(ctx context.Context, metaPath, imagePath string) error {
	meta, err := config.LoadArticleMeta(metaPath)
	if err != nil {
		return err
	}
	if err := s.login(ctx); err != nil {
		return err
	}

	sub := authoring.Submission{Edit: meta.Slug != ""}
	if sub.Edit {
		prior, err := s.api.GetArticle(ctx, meta.Slug)
		if err != nil {
			return fmt.Errorf("failed to fetch article %s: %w", meta.Slug, err)
		}
		if prior == nil {
			return fmt.Errorf("article not found: %s", meta.Slug)
		}
		sub.Metadata = *prior
	}
	meta.Apply(&sub.Metadata)

	if imagePath == "" {
		imagePath = meta.Image
	}
	if imagePath != "" {
		f, err := os.Open(imagePath)
		if err != nil {
			return fmt.Errorf("failed to open image: %w", err)
		}
		defer f.Close()
		sub.Image = &authoring.Image{Name: filepath.Base(imagePath), Data: f}
	}

	orch := authoring.NewOrchestrator(authoring.Config{
		Editor:    s.bridge,
		Drafts:    s.drafts,
		DraftKey:  s.key,
		API:       s.api,
		Uploader:  s.api,
		Session:   s.api,
		Navigator: &printNavigator{out: s.out, base: s.cfg.Server},
		Notifier:  &printNotifier{out: s.out},
		Logger:    s.logger,
	})

	outcome, err := orch.Submit(ctx, sub)
	if err != nil {
		return err
	}
	if outcome.Result != authoring.ResultSaved {
		return fmt.Errorf("%w: %s", ErrNotSaved, outcome.Result)
	}

	// 作成後の再publishが更新になるようにslugを記録する
	if !sub.Edit {
		saved := config.MetaFromArticle(outcome.Article)
		saved.Image = ""
		if err := config.WriteArticleMeta(metaPath, saved); err != nil {
			s.logger.Warn("failed to record slug in metadata", slog.String("error", err.Error()))
		}
	}
	return nil
}

// clear はエディタファイルを空のドキュメントにする。ローカル下書きは残す。
func (s *clientSession) clear(ctx context.Context) error {
	if err := s.bridge.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "cleared %s\n", s.editor.Path())
	return nil
}

// login は保存済みのセッションを再利用し、無効な場合はパスワードでログインし直す。
func (s *clientSession) login(ctx context.Context) error {
	if data, err := os.ReadFile(s.cfg.SessionFile()); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			s.api.SetSession(id)
			_, err := s.api.Me(ctx)
			if err == nil {
				return nil
			}
			if !errors.Is(err, apiclient.ErrUnauthorized) {
				return fmt.Errorf("failed to check session: %w", err)
			}
			s.logger.Info("saved session expired, logging in again")
		}
	}

	if s.cfg.Username == "" || s.cfg.Password == "" {
		return errors.New("not logged in: set username and password (BLOG_USERNAME, BLOG_PASSWORD)")
	}
	if err := s.api.Login(ctx, s.cfg.Username, s.cfg.Password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.cfg.SessionFile()), 0o700); err != nil {
		return fmt.Errorf("failed to prepare profile directory: %w", err)
	}
	if err := os.WriteFile(s.cfg.SessionFile(), []byte(s.api.Session()+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// printNavigator は保存後の記事URLを表示する。
type printNavigator struct {
	out  io.Writer
	base string
}

func (n *printNavigator) Navigate(path string) {
	fmt.Fprintf(n.out, "saved: %s%s\n", n.base, path)
}

// printNotifier は警告をそのまま表示する。
type printNotifier struct {
	out io.Writer
}

func (n *printNotifier) Alert(message string) {
	fmt.Fprintf(n.out, "! %s\n", message)
}

var (
	_ authoring.Navigator = (*printNavigator)(nil)
	_ authoring.Notifier  = (*printNotifier)(nil)
)
