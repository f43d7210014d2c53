package handler

import (
	"context"
	"net/http"

	"github.com/basedest/course-project/internal/middleware"
	"github.com/basedest/course-project/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Me はログインユーザーのプロフィールを返す。
	Me(ctx context.Context, userID string) (*user.Profile, error)
	// Withdraw はユーザーの退会処理を実行する。
	// 下書き、セッション、ユーザーを削除する。記事は著者名を残したまま公開を続ける。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	config  AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。configは退会時のCookie削除に使う。
func NewUserHandler(service UserServiceInterface, config AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service: service,
		config:  config,
	}
}

// Me はログインユーザーのプロフィールを返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	profile, err := h.service.Me(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
