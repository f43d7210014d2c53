package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/basedest/course-project/internal/auth"
	"github.com/basedest/course-project/internal/model"
)

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{
		BaseURL:       "http://localhost:3000",
		SessionMaxAge: 86400,
	}
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Register(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, input auth.RegisterInput) (*model.User, error) {
			if input.Username == "taken" {
				return nil, model.NewUsernameTakenError(input.Username)
			}
			return &model.User{ID: "u1", Username: input.Username, Role: model.RoleUser}, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"created", `{"username":"alice","password":"password1"}`, http.StatusCreated},
		{"duplicate", `{"username":"taken","password":"password1"}`, http.StatusConflict},
		{"broken json", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Register(w, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(tt.body)))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestAuthHandler_PasswordLogin_SetsSessionCookie(t *testing.T) {
	svc := sessionAuth()
	svc.loginFn = func(ctx context.Context, username, password string) (*model.Session, error) {
		if username != "alice" || password != "password1" {
			return nil, model.NewInvalidCredentialsError()
		}
		return &model.Session{ID: testSessionID, UserID: testUser.ID, ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	h := NewAuthHandler(svc, testAuthConfig())

	w := httptest.NewRecorder()
	h.PasswordLogin(w, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"alice","password":"password1"}`)))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	cookie := findCookie(resp, "session_id")
	if cookie == nil || cookie.Value != testSessionID || !cookie.HttpOnly || cookie.MaxAge != 86400 {
		t.Errorf("session cookie = %+v", cookie)
	}

	var body struct {
		User userResponse `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.User.Name != "Alice" || body.User.Username != "alice" {
		t.Errorf("user = %+v", body.User)
	}
}

func TestAuthHandler_PasswordLogin_InvalidCredentials(t *testing.T) {
	h := NewAuthHandler(sessionAuth(), testAuthConfig())

	w := httptest.NewRecorder()
	h.PasswordLogin(w, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"alice","password":"wrong"}`)))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if findCookie(w.Result(), "session_id") != nil {
		t.Error("session cookie must not be set")
	}
}

func TestAuthHandler_Login_RedirectsToOAuthURL(t *testing.T) {
	svc := &mockAuthService{
		oauthEnabled: true,
		getLoginURLFn: func(state string) (string, error) {
			return "https://accounts.google.com/o/oauth2/v2/auth?state=" + state, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", resp.StatusCode)
	}
	state := findCookie(resp, "oauth_state")
	if state == nil || state.Value == "" {
		t.Fatal("oauth_state cookie missing")
	}
	if loc := resp.Header.Get("Location"); !strings.Contains(loc, "state="+state.Value) {
		t.Errorf("Location = %q does not carry state", loc)
	}
}

func TestAuthHandler_Login_OAuthDisabled(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAuthHandler_Callback(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		stateCookie string
		callbackErr error
		wantStatus  int
	}{
		{"success", "?code=abc&state=s1", "s1", nil, http.StatusTemporaryRedirect},
		{"state mismatch", "?code=abc&state=s1", "other", nil, http.StatusBadRequest},
		{"empty state", "?code=abc", "", nil, http.StatusBadRequest},
		{"missing code", "?state=s1", "s1", nil, http.StatusBadRequest},
		{"service error", "?code=abc&state=s1", "s1", errors.New("exchange failed"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				handleCallbackFn: func(ctx context.Context, code string) (*model.Session, error) {
					if tt.callbackErr != nil {
						return nil, tt.callbackErr
					}
					return &model.Session{ID: "session-123", UserID: "user-123"}, nil
				},
			}
			h := NewAuthHandler(svc, testAuthConfig())

			req := httptest.NewRequest(http.MethodGet, "/auth/google/callback"+tt.query, nil)
			if tt.stateCookie != "" {
				req.AddCookie(&http.Cookie{Name: "oauth_state", Value: tt.stateCookie})
			}
			w := httptest.NewRecorder()
			h.Callback(w, req)

			resp := w.Result()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusTemporaryRedirect {
				if loc := resp.Header.Get("Location"); loc != "http://localhost:3000" {
					t.Errorf("Location = %q", loc)
				}
				if c := findCookie(resp, "session_id"); c == nil || c.Value != "session-123" {
					t.Errorf("session cookie = %+v", c)
				}
			}
		})
	}
}

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	var loggedOut string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			loggedOut = sessionID
			return errors.New("db down")
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "s-1"})
	w := httptest.NewRecorder()
	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", resp.StatusCode)
	}
	if loggedOut != "s-1" {
		t.Errorf("Logout called with %q", loggedOut)
	}
	if c := findCookie(resp, "session_id"); c == nil || c.MaxAge >= 0 {
		t.Errorf("session cookie not cleared: %+v", c)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	h := NewAuthHandler(sessionAuth(), testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: testSessionID})
	w := httptest.NewRecorder()
	h.Me(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		User userResponse `json:"user"`
	}
	json.NewDecoder(w.Body).Decode(&body)
	if body.User.ID != testUser.ID || body.User.Role != "user" {
		t.Errorf("user = %+v", body.User)
	}

	for _, sid := range []string{"", "expired"} {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		if sid != "" {
			req.AddCookie(&http.Cookie{Name: "session_id", Value: sid})
		}
		w := httptest.NewRecorder()
		h.Me(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("session %q: status = %d, want 401", sid, w.Code)
		}
	}
}
