package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/namsral/flag"

	"github.com/basedest/course-project/internal/model"
)

// ClientEnvPrefix はクライアントのフラグに対応する環境変数の接頭辞。
// 例: --server は BLOG_SERVER でも指定できる。
const ClientEnvPrefix = "BLOG"

// ClientConfig はオーサリングクライアント（edit/publish/clear）の設定。
// TOMLファイルを読み込んだ後、フラグと環境変数で上書きする。
type ClientConfig struct {
	Server     string        `toml:"server"`
	Username   string        `toml:"username"`
	Password   string        `toml:"password"`
	ProfileDir string        `toml:"profile_dir"`
	EditorFile string        `toml:"editor_file"`
	Timeout    time.Duration `toml:"timeout"`
	LoadDelay  time.Duration `toml:"load_delay"`
}

// SessionFile はログインセッションを保存するファイルのパスを返す。
func (c *ClientConfig) SessionFile() string {
	return filepath.Join(c.ProfileDir, "session")
}

// DraftDir はローカル下書きを保存するディレクトリを返す。
func (c *ClientConfig) DraftDir() string {
	return filepath.Join(c.ProfileDir, "drafts")
}

// ClientFlagSet はクライアントコマンドのフラグを解析する。
// コマンド固有のフラグはFlagSet()に追加してからParseを呼ぶ。
type ClientFlagSet struct {
	fs   *flag.FlagSet
	path string
	over ClientConfig
}

// NewClientFlagSet はコマンド名nameの共通フラグを登録したClientFlagSetを生成する。
func NewClientFlagSet(name string) *ClientFlagSet {
	c := &ClientFlagSet{
		fs: flag.NewFlagSetWithEnvPrefix(name, ClientEnvPrefix, flag.ContinueOnError),
	}
	c.fs.StringVar(&c.path, "conf", "", "path to the client TOML file (BLOG_CONF)")
	c.fs.StringVar(&c.over.Server, "server", "", "blog server base URL (BLOG_SERVER)")
	c.fs.StringVar(&c.over.Username, "username", "", "login username (BLOG_USERNAME)")
	c.fs.StringVar(&c.over.Password, "password", "", "login password (BLOG_PASSWORD)")
	c.fs.StringVar(&c.over.ProfileDir, "profile", "", "profile directory for session and drafts (BLOG_PROFILE)")
	c.fs.StringVar(&c.over.EditorFile, "editor-file", "", "JSON file used as the editor (BLOG_EDITOR_FILE)")
	c.fs.DurationVar(&c.over.Timeout, "timeout", 0, "request timeout (BLOG_TIMEOUT)")
	c.fs.DurationVar(&c.over.LoadDelay, "load-delay", 0, "delay before reading the local draft (BLOG_LOAD_DELAY)")
	return c
}

// FlagSet はコマンド固有のフラグを追加するためのFlagSetを返す。
func (c *ClientFlagSet) FlagSet() *flag.FlagSet {
	return c.fs
}

// Args はフラグ以外の引数を返す。
func (c *ClientFlagSet) Args() []string {
	return c.fs.Args()
}

// Parse は引数と環境変数を解析し、TOMLファイルの値と合成した設定を返す。
// --confを省略した場合の既定ファイルは存在しなくてもよい。
func (c *ClientFlagSet) Parse(args []string) (*ClientConfig, error) {
	if err := c.fs.Parse(args); err != nil {
		return nil, err
	}

	baseDir, err := defaultProfileDir()
	if err != nil {
		return nil, err
	}

	cfg := &ClientConfig{}
	path, explicit := c.path, c.path != ""
	if !explicit {
		path = filepath.Join(baseDir, "config.toml")
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read client config %s: %w", path, err)
		}
	}

	overlayString(&cfg.Server, c.over.Server)
	overlayString(&cfg.Username, c.over.Username)
	overlayString(&cfg.Password, c.over.Password)
	overlayString(&cfg.ProfileDir, c.over.ProfileDir)
	overlayString(&cfg.EditorFile, c.over.EditorFile)
	if c.over.Timeout > 0 {
		cfg.Timeout = c.over.Timeout
	}
	if c.over.LoadDelay > 0 {
		cfg.LoadDelay = c.over.LoadDelay
	}

	cfg.Server = strings.TrimRight(cfg.Server, "/")
	if cfg.Server == "" {
		return nil, fmt.Errorf("server is not configured: set --server, BLOG_SERVER or server in %s", path)
	}
	if cfg.ProfileDir == "" {
		cfg.ProfileDir = baseDir
	}
	if cfg.EditorFile == "" {
		cfg.EditorFile = filepath.Join(cfg.ProfileDir, "editor.json")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg, nil
}

func overlayString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func defaultProfileDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, "blog"), nil
}

// ArticleMeta はpublishに渡す記事のメタデータファイル。
// Slugを指定した場合は既存記事の編集として扱う。
// Imageはアップロードするローカル画像のパス。
type ArticleMeta struct {
	Slug        string   `toml:"slug,omitempty"`
	Title       string   `toml:"title"`
	Description string   `toml:"description"`
	Category    string   `toml:"category"`
	Tags        []string `toml:"tags,omitempty"`
	Img         string   `toml:"img,omitempty"`
	Image       string   `toml:"image,omitempty"`
}

// LoadArticleMeta はTOMLファイルから記事のメタデータを読み込む。
// 未知のキーはタイプミスとみなしてエラーにする。
func LoadArticleMeta(path string) (*ArticleMeta, error) {
	meta := &ArticleMeta{}
	md, err := toml.DecodeFile(path, meta)
	if err != nil {
		return nil, fmt.Errorf("failed to read article metadata %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in article metadata %s: %s", path, strings.Join(keys, ", "))
	}
	return meta, nil
}

// WriteArticleMeta はメタデータをTOMLとしてpathに書き込む。
func WriteArticleMeta(path string, meta *ArticleMeta) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to prepare metadata directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create article metadata %s: %w", path, err)
	}
	if err := toml.NewEncoder(f).Encode(meta); err != nil {
		f.Close()
		return fmt.Errorf("failed to write article metadata %s: %w", path, err)
	}
	return f.Close()
}

// MetaFromArticle は既存記事からメタデータを作る。
func MetaFromArticle(a *model.Article) *ArticleMeta {
	return &ArticleMeta{
		Slug:        a.Slug,
		Title:       a.Title,
		Description: a.Description,
		Category:    a.Category,
		Tags:        a.Tags,
		Img:         a.Img,
	}
}

// Apply はメタデータの値をaに上書きする。
// 空のImgは既存の値を残す。
func (m *ArticleMeta) Apply(a *model.Article) {
	if a.Slug == "" {
		a.Slug = m.Slug
	}
	a.Title = m.Title
	a.Description = m.Description
	a.Category = m.Category
	a.Tags = model.NormalizeTags(m.Tags)
	if m.Img != "" {
		a.Img = m.Img
	}
}
