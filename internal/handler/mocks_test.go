package handler

import (
	"context"
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/basedest/course-project/internal/article"
	"github.com/basedest/course-project/internal/auth"
	"github.com/basedest/course-project/internal/draft"
	"github.com/basedest/course-project/internal/model"
	"github.com/basedest/course-project/internal/upload"
	"github.com/basedest/course-project/internal/user"
)

// --- モック定義 ---

type mockAuthService struct {
	oauthEnabled     bool
	getLoginURLFn    func(state string) (string, error)
	registerFn       func(ctx context.Context, input auth.RegisterInput) (*model.User, error)
	loginFn          func(ctx context.Context, username, password string) (*model.Session, error)
	handleCallbackFn func(ctx context.Context, code string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) OAuthEnabled() bool { return m.oauthEnabled }

func (m *mockAuthService) GetLoginURL(state string) (string, error) {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return "", model.NewOAuthDisabledError()
}

func (m *mockAuthService) Register(ctx context.Context, input auth.RegisterInput) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, input)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, model.NewUserNotFoundError()
}

var _ AuthServiceInterface = (*mockAuthService)(nil)

type mockArticleService struct {
	createFn    func(ctx context.Context, u *model.User, input *model.Article) (*model.Article, error)
	updateFn    func(ctx context.Context, u *model.User, slug string, input *model.Article) (*model.Article, error)
	deleteFn    func(ctx context.Context, u *model.User, slug string) error
	getBySlugFn func(ctx context.Context, slug string) (*model.Article, error)
	listFn      func(ctx context.Context, q model.ArticleQuery, page int) (*article.Page, error)
	recentFn    func(ctx context.Context, n int) ([]*model.Article, error)
}

func (m *mockArticleService) Create(ctx context.Context, u *model.User, input *model.Article) (*model.Article, error) {
	return m.createFn(ctx, u, input)
}

func (m *mockArticleService) Update(ctx context.Context, u *model.User, slug string, input *model.Article) (*model.Article, error) {
	return m.updateFn(ctx, u, slug, input)
}

func (m *mockArticleService) Delete(ctx context.Context, u *model.User, slug string) error {
	return m.deleteFn(ctx, u, slug)
}

func (m *mockArticleService) GetBySlug(ctx context.Context, slug string) (*model.Article, error) {
	if m.getBySlugFn != nil {
		return m.getBySlugFn(ctx, slug)
	}
	return nil, model.NewArticleNotFoundError(slug)
}

func (m *mockArticleService) List(ctx context.Context, q model.ArticleQuery, page int) (*article.Page, error) {
	if m.listFn != nil {
		return m.listFn(ctx, q, page)
	}
	return &article.Page{Page: page}, nil
}

func (m *mockArticleService) Recent(ctx context.Context, n int) ([]*model.Article, error) {
	if m.recentFn != nil {
		return m.recentFn(ctx, n)
	}
	return nil, nil
}

var _ ArticleServiceInterface = (*mockArticleService)(nil)

type mockUploadService struct {
	maxSize         int64
	uploadFn        func(ctx context.Context, r io.Reader) (*upload.Result, error)
	uploadFromURLFn func(ctx context.Context, rawURL string) (*upload.Result, error)
}

func (m *mockUploadService) Upload(ctx context.Context, r io.Reader) (*upload.Result, error) {
	return m.uploadFn(ctx, r)
}

func (m *mockUploadService) UploadFromURL(ctx context.Context, rawURL string) (*upload.Result, error) {
	return m.uploadFromURLFn(ctx, rawURL)
}

func (m *mockUploadService) MaxSize() int64 { return m.maxSize }

var _ UploadServiceInterface = (*mockUploadService)(nil)

type mockUserService struct {
	meFn       func(ctx context.Context, userID string) (*user.Profile, error)
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) Me(ctx context.Context, userID string) (*user.Profile, error) {
	return m.meFn(ctx, userID)
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	return m.withdrawFn(ctx, userID)
}

var _ UserServiceInterface = (*mockUserService)(nil)

// fakeRenderer は本文JSONの"text"をそのまま段落にする。
type fakeRenderer struct{}

func (fakeRenderer) HTML(content json.RawMessage) (template.HTML, error) {
	var doc struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(content, &doc); err != nil {
		return "", err
	}
	return template.HTML("<p>" + template.HTMLEscapeString(doc.Text) + "</p>"), nil
}

// --- ルーター構築ヘルパー ---

const (
	testSessionID = "session-alice"
	testCSRFToken = "csrf-test-token"
)

var testUser = &model.User{ID: "user-alice", Username: "alice", Name: "Alice", Role: model.RoleUser}

// sessionAuth はtestSessionIDのみを有効なセッションとして扱う認証サービスのモック。
func sessionAuth() *mockAuthService {
	return &mockAuthService{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			if sessionID == testSessionID {
				return testUser, nil
			}
			return nil, model.NewUserNotFoundError()
		},
	}
}

// testDeps はモックで構成したRouterDepsを返す。
func testDeps() *RouterDeps {
	authSvc := sessionAuth()
	return &RouterDeps{
		SessionResolver: authSvc,
		AuthService:     authSvc,
		AuthConfig:      AuthHandlerConfig{BaseURL: "https://blog.example.com", SessionMaxAge: 3600},
		ArticleService:  &mockArticleService{},
		Renderer:        fakeRenderer{},
		SiteTitle:       "Test Blog",
		DraftStore:      draft.NewMemoryStore(),
		DraftStoreName:  "memory",
		UserService:     &mockUserService{},
	}
}

// newRequest はCSRFトークンとセッションCookieを付けたリクエストを作る。
func newRequest(method, target, body string, withSession bool) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	req.Header.Set("X-CSRF-Token", testCSRFToken)
	if withSession {
		req.AddCookie(&http.Cookie{Name: "session_id", Value: testSessionID})
	}
	return req
}

// apiErrorBody はエラーレスポンスのデコード先。
type apiErrorBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}
