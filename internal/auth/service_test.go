package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/basedest/course-project/internal/model"
	"github.com/basedest/course-project/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.User, error)
	findByUsernameFn     func(ctx context.Context, username string) (*model.User, error)
	createFn             func(ctx context.Context, user *model.User) error
	createWithIdentityFn func(ctx context.Context, user *model.User, identity *model.Identity) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.findByUsernameFn != nil {
		return m.findByUsernameFn(ctx, username)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	if m.createWithIdentityFn != nil {
		return m.createWithIdentityFn(ctx, user, identity)
	}
	return nil
}

func (m *mockUserRepo) DeleteByID(_ context.Context, _ string) error {
	return nil
}

type mockIdentityRepo struct {
	findByProviderFn func(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

func (m *mockIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	if m.findByProviderFn != nil {
		return m.findByProviderFn(ctx, provider, providerUserID)
	}
	return nil, nil
}

func (m *mockIdentityRepo) ListProvidersByUserID(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

type mockSessionRepo struct {
	createFn     func(ctx context.Context, session *model.Session) error
	findByIDFn   func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(_ context.Context, _ string) error {
	return nil
}

type mockOAuthProvider struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, nil
}

var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.IdentityRepository = (*mockIdentityRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ OAuthProvider = (*mockOAuthProvider)(nil)

// memoryUsers は登録とログインを通しで検証するためのユーザー保存先。
func memoryUsers() *mockUserRepo {
	users := map[string]*model.User{}
	return &mockUserRepo{
		createFn: func(_ context.Context, u *model.User) error {
			if _, ok := users[u.Username]; ok {
				return repository.ErrDuplicateUsername
			}
			users[u.Username] = u
			return nil
		},
		findByUsernameFn: func(_ context.Context, username string) (*model.User, error) {
			return users[username], nil
		},
	}
}

func apiCode(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// --- テスト ---

func TestRegisterAndLogin(t *testing.T) {
	users := memoryUsers()
	var saved *model.Session
	sessions := &mockSessionRepo{
		createFn: func(_ context.Context, s *model.Session) error {
			saved = s
			return nil
		},
	}
	svc := NewService(nil, users, &mockIdentityRepo{}, sessions, ServiceConfig{SessionMaxAge: 3600})
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	user, err := svc.Register(context.Background(), RegisterInput{Username: " alice ", Password: "correct horse", Name: "Alice"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.Username != "alice" || user.Role != model.RoleUser {
		t.Errorf("user = %+v", user)
	}
	if user.PasswordHash == "" || user.PasswordHash == "correct horse" {
		t.Error("password must be stored hashed")
	}

	session, err := svc.Login(context.Background(), "alice", "correct horse")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if session != saved || session.UserID != user.ID {
		t.Errorf("session = %+v, want saved session for %s", session, user.ID)
	}
	if len(session.ID) != 64 {
		t.Errorf("session ID length = %d, want 64", len(session.ID))
	}
	if want := fixed.Add(time.Hour); !session.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", session.ExpiresAt, want)
	}

	if _, err := svc.Login(context.Background(), "alice", "wrong password"); apiCode(err) != model.ErrCodeInvalidCredentials {
		t.Errorf("wrong password error = %v", err)
	}
	if _, err := svc.Login(context.Background(), "nobody", "correct horse"); apiCode(err) != model.ErrCodeInvalidCredentials {
		t.Errorf("unknown user error = %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		input    RegisterInput
		wantCode string
	}{
		{"short username", RegisterInput{Username: "ab", Password: "password1"}, model.ErrCodeInvalidRegistration},
		{"username with space", RegisterInput{Username: "a b c", Password: "password1"}, model.ErrCodeInvalidRegistration},
		{"short password", RegisterInput{Username: "alice", Password: "1234567"}, model.ErrCodeInvalidRegistration},
		{"too long password", RegisterInput{Username: "alice", Password: string(make([]byte, 73))}, model.ErrCodeInvalidRegistration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(nil, memoryUsers(), nil, nil, ServiceConfig{})
			_, err := svc.Register(context.Background(), tt.input)
			if got := apiCode(err); got != tt.wantCode {
				t.Errorf("code = %q, want %q (err = %v)", got, tt.wantCode, err)
			}
		})
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc := NewService(nil, memoryUsers(), nil, nil, ServiceConfig{})
	in := RegisterInput{Username: "alice", Password: "password1"}
	if _, err := svc.Register(context.Background(), in); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if _, err := svc.Register(context.Background(), in); apiCode(err) != model.ErrCodeUsernameTaken {
		t.Errorf("second Register() error = %v, want USERNAME_TAKEN", err)
	}
}

func TestRegister_AdminUsernames(t *testing.T) {
	svc := NewService(nil, memoryUsers(), nil, nil, ServiceConfig{AdminUsernames: []string{"Editor"}})

	admin, err := svc.Register(context.Background(), RegisterInput{Username: "editor", Password: "password1"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if admin.Role != model.RoleAdmin {
		t.Errorf("role = %q, want admin", admin.Role)
	}

	user, _ := svc.Register(context.Background(), RegisterInput{Username: "reader", Password: "password1"})
	if user.Role != model.RoleUser {
		t.Errorf("role = %q, want user", user.Role)
	}
}

func TestLogin_OAuthOnlyUserCannotUsePassword(t *testing.T) {
	users := &mockUserRepo{
		findByUsernameFn: func(_ context.Context, _ string) (*model.User, error) {
			return &model.User{ID: "u1", Username: "google@1"}, nil
		},
	}
	svc := NewService(nil, users, nil, nil, ServiceConfig{})
	if _, err := svc.Login(context.Background(), "google@1", ""); apiCode(err) != model.ErrCodeInvalidCredentials {
		t.Errorf("Login() error = %v, want INVALID_CREDENTIALS", err)
	}
}

func TestGetLoginURL(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, ServiceConfig{})
	if svc.OAuthEnabled() {
		t.Error("OAuthEnabled() should be false without provider")
	}
	if _, err := svc.GetLoginURL("s"); apiCode(err) != model.ErrCodeOAuthDisabled {
		t.Errorf("GetLoginURL() error = %v, want OAUTH_DISABLED", err)
	}

	provider := &mockOAuthProvider{
		getLoginURLFn: func(state string) string { return "https://idp.example.com/auth?state=" + state },
	}
	svc = NewService(provider, nil, nil, nil, ServiceConfig{})
	url, err := svc.GetLoginURL("s1")
	if err != nil || url != "https://idp.example.com/auth?state=s1" {
		t.Errorf("GetLoginURL() = %q, %v", url, err)
	}
}

func TestHandleCallback_NewUser(t *testing.T) {
	provider := &mockOAuthProvider{
		exchangeCodeFn: func(_ context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{Provider: "google", ProviderUserID: "sub-1", Email: "w@example.com", Name: "Writer"}, nil
		},
	}
	var createdUser *model.User
	var createdIdentity *model.Identity
	users := &mockUserRepo{
		createWithIdentityFn: func(_ context.Context, u *model.User, i *model.Identity) error {
			createdUser, createdIdentity = u, i
			return nil
		},
	}
	svc := NewService(provider, users, &mockIdentityRepo{}, &mockSessionRepo{}, ServiceConfig{SessionMaxAge: 60})

	session, err := svc.HandleCallback(context.Background(), "code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if createdUser == nil || createdIdentity == nil {
		t.Fatal("user and identity should be created")
	}
	if createdUser.Username != "google@sub-1" || createdUser.Name != "Writer" || createdUser.Role != model.RoleUser {
		t.Errorf("created user = %+v", createdUser)
	}
	if createdIdentity.UserID != createdUser.ID || createdIdentity.ProviderUserID != "sub-1" {
		t.Errorf("created identity = %+v", createdIdentity)
	}
	if session.UserID != createdUser.ID {
		t.Errorf("session user = %q, want %q", session.UserID, createdUser.ID)
	}
}

func TestHandleCallback_ExistingUser(t *testing.T) {
	provider := &mockOAuthProvider{
		exchangeCodeFn: func(_ context.Context, _ string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{Provider: "google", ProviderUserID: "sub-1"}, nil
		},
	}
	idents := &mockIdentityRepo{
		findByProviderFn: func(_ context.Context, provider, sub string) (*model.Identity, error) {
			return &model.Identity{UserID: "existing-user", Provider: provider, ProviderUserID: sub}, nil
		},
	}
	users := &mockUserRepo{
		createWithIdentityFn: func(_ context.Context, _ *model.User, _ *model.Identity) error {
			t.Error("CreateWithIdentity must not be called for a known identity")
			return nil
		},
	}
	svc := NewService(provider, users, idents, &mockSessionRepo{}, ServiceConfig{SessionMaxAge: 60})

	session, err := svc.HandleCallback(context.Background(), "code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if session.UserID != "existing-user" {
		t.Errorf("session user = %q", session.UserID)
	}
}

func TestHandleCallback_Errors(t *testing.T) {
	exchangeErr := errors.New("invalid_grant")
	provider := &mockOAuthProvider{
		exchangeCodeFn: func(_ context.Context, _ string) (*OAuthUserInfo, error) { return nil, exchangeErr },
	}
	svc := NewService(provider, &mockUserRepo{}, &mockIdentityRepo{}, &mockSessionRepo{}, ServiceConfig{})
	if _, err := svc.HandleCallback(context.Background(), "code"); !errors.Is(err, exchangeErr) {
		t.Errorf("error = %v, want wrapped exchange error", err)
	}

	disabled := NewService(nil, nil, nil, nil, ServiceConfig{})
	if _, err := disabled.HandleCallback(context.Background(), "code"); apiCode(err) != model.ErrCodeOAuthDisabled {
		t.Errorf("disabled error = %v", err)
	}
}

func TestLogout(t *testing.T) {
	var deleted string
	sessions := &mockSessionRepo{
		deleteByIDFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc := NewService(nil, nil, nil, sessions, ServiceConfig{})

	if err := svc.Logout(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if deleted != "sess-1" {
		t.Errorf("deleted = %q", deleted)
	}
	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Error("Logout(\"\") should fail")
	}
}

func TestGetCurrentUser(t *testing.T) {
	sessions := &mockSessionRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Session, error) {
			if id == "valid" {
				return &model.Session{ID: id, UserID: "u1"}, nil
			}
			return nil, nil
		},
	}
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Username: "alice"}, nil
		},
	}
	svc := NewService(nil, users, nil, sessions, ServiceConfig{})

	user, err := svc.GetCurrentUser(context.Background(), "valid")
	if err != nil || user.Username != "alice" {
		t.Errorf("GetCurrentUser(valid) = %+v, %v", user, err)
	}
	if _, err := svc.GetCurrentUser(context.Background(), "expired"); err == nil {
		t.Error("expired session should fail")
	}
	if _, err := svc.GetCurrentUser(context.Background(), ""); err == nil {
		t.Error("empty session ID should fail")
	}
}

func TestOAuthUsername(t *testing.T) {
	if got := oauthUsername("google", "123"); got != "google@123" {
		t.Errorf("oauthUsername() = %q", got)
	}
	long := oauthUsername("google", string(make([]byte, 100)))
	if len(long) != 64 {
		t.Errorf("len = %d, want 64", len(long))
	}
}
