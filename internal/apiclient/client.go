// Package apiclient はブログAPIのHTTPクライアントを提供する。
// オーサリングCLIが記事の保存、画像アップロード、セッション確認に使う。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/basedest/course-project/internal/authoring"
	"github.com/basedest/course-project/internal/model"
	"github.com/basedest/course-project/internal/upload"
	"github.com/basedest/course-project/internal/user"
)

const (
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
)

// ErrUnauthorized はセッションが無効な場合に返される。
var ErrUnauthorized = errors.New("not logged in")

// Error はAPIのエラーレスポンスを表す。
type Error struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
	Action     string `json:"action"`
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: HTTP %d [%s] %s", e.StatusCode, e.Code, e.Message)
}

// Client はCookieでセッションを保持するAPIクライアント。
type Client struct {
	base *url.URL
	http *http.Client

	mu   sync.Mutex
	csrf string
}

// Option はClientの設定を変更する。
type Option func(*Client)

// WithTimeout はリクエストのタイムアウトを設定する。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithTransport は送信に使うRoundTripperを設定する。
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = rt }
}

// New はbaseURL宛てのClientを生成する。
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		base: base,
		http: &http.Client{Jar: jar, Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetSession は保存済みのセッションIDをCookieとして設定する。
func (c *Client) SetSession(sessionID string) {
	c.http.Jar.SetCookies(c.base, []*http.Cookie{{Name: "session_id", Value: sessionID, Path: "/"}})
}

// Session は現在のセッションIDを返す。未ログインの場合は空文字列。
func (c *Client) Session() string {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == "session_id" {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) endpoint(p string) string {
	u := *c.base
	u.Path = path.Join(u.Path, p)
	if strings.HasSuffix(p, "/") {
		u.Path += "/"
	}
	return u.String()
}

// CSRFToken は状態変更リクエストに付けるトークンを返す。
// Cookieにトークンがなければサーバーから取得し、以降は同じ値を使う。
func (c *Client) CSRFToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.csrf
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == csrfCookieName && ck.Value != "" {
			c.mu.Lock()
			c.csrf = ck.Value
			c.mu.Unlock()
			return ck.Value, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/csrf-token"), nil)
	if err != nil {
		return "", err
	}
	var body struct {
		Token string `json:"token"`
	}
	if _, err := c.do(req, &body); err != nil {
		return "", fmt.Errorf("failed to fetch csrf token: %w", err)
	}
	if body.Token == "" {
		return "", fmt.Errorf("failed to fetch csrf token: empty token")
	}

	c.mu.Lock()
	c.csrf = body.Token
	c.mu.Unlock()
	return body.Token, nil
}

// Login はユーザー名とパスワードでログインし、セッションCookieを保持する。
func (c *Client) Login(ctx context.Context, username, password string) error {
	payload := map[string]string{"username": username, "password": password}
	status, err := c.sendJSON(ctx, http.MethodPost, "/auth/login", payload, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return &Error{StatusCode: status}
	}
	return nil
}

// Me はログイン中ユーザーの情報を返す。
func (c *Client) Me(ctx context.Context) (*user.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/auth/me"), nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		User *user.Profile `json:"user"`
	}
	status, err := c.do(req, &body)
	if status == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if body.User == nil {
		return nil, ErrUnauthorized
	}
	return body.User, nil
}

// GetArticle はスラッグで記事を取得する。見つからない場合はnilを返す。
func (c *Client) GetArticle(ctx context.Context, slug string) (*model.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/articles/"+slug), nil)
	if err != nil {
		return nil, err
	}
	var a model.Article
	status, err := c.do(req, &a)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateArticle は記事を作成し、HTTPステータスコードを返す。
// エラーは送受信に失敗した場合のみ返す。
func (c *Client) CreateArticle(ctx context.Context, a *model.Article) (int, error) {
	return c.sendJSON(ctx, http.MethodPost, "/api/articles/", a, nil)
}

// UpdateArticle は記事を更新し、HTTPステータスコードを返す。
func (c *Client) UpdateArticle(ctx context.Context, slug string, a *model.Article) (int, error) {
	return c.sendJSON(ctx, http.MethodPut, "/api/articles/"+slug, a, nil)
}

// UploadImage は画像をmultipartで送信し、公開URLを返す。
func (c *Client) UploadImage(ctx context.Context, name string, r io.Reader) (*upload.Result, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/uploads"), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := c.attachCSRF(ctx, req); err != nil {
		return nil, err
	}

	var res upload.Result
	if _, err := c.do(req, &res); err != nil {
		return nil, err
	}
	if res.SecureURL == "" {
		return nil, fmt.Errorf("upload response has no secure_url")
	}
	return &res, nil
}

func (c *Client) attachCSRF(ctx context.Context, req *http.Request) error {
	token, err := c.CSRFToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set(csrfHeaderName, token)
	return nil
}

// sendJSON はvをJSONで送信し、ステータスコードを返す。
// 2xx以外のステータスはエラーにしない。outがnilでなければ2xxのボディをデコードする。
func (c *Client) sendJSON(ctx context.Context, method, p string, v, out interface{}) (int, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(p), bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.attachCSRF(ctx, req); err != nil {
		return 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

// do はリクエストを送信し、2xxのボディをoutにデコードする。
// 2xx以外は*Errorを返す。
func (c *Client) do(req *http.Request, out interface{}) (int, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(apiErr)
		return resp.StatusCode, apiErr
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

var (
	_ authoring.ArticleAPI    = (*Client)(nil)
	_ authoring.Uploader      = (*Client)(nil)
	_ authoring.SessionSource = (*Client)(nil)
)
