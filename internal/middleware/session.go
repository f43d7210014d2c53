// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/basedest/course-project/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

type contextKey string

var userContextKey = contextKey("user")

// SessionResolver はセッションIDからユーザーを解決する。auth.Serviceが実装する。
type SessionResolver interface {
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// NewSessionMiddleware はHTTP Only Cookieのセッションを検証し、
// ログイン中ユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストには401を返す。
func NewSessionMiddleware(resolver SessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := resolveUser(r, resolver)
			if user == nil {
				WriteUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// NewOptionalSessionMiddleware はセッションがあればユーザーを注入し、
// なければそのまま次のハンドラーに渡すミドルウェアを返す。
// 公開ページで編集リンクの表示判定に使う。
func NewOptionalSessionMiddleware(resolver SessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := resolveUser(r, resolver); user != nil {
				r = r.WithContext(ContextWithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser はコンテキストにログインユーザーがいない場合に401を返すミドルウェア。
// NewOptionalSessionMiddlewareの内側で使う。
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			WriteUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionIDFromRequest はCookieのセッションIDを返す。未設定の場合は空文字列。
func SessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func resolveUser(r *http.Request, resolver SessionResolver) *model.User {
	sessionID := SessionIDFromRequest(r)
	if sessionID == "" {
		return nil
	}
	user, err := resolver.GetCurrentUser(r.Context(), sessionID)
	if err != nil {
		slog.Debug("session rejected", slog.String("error", err.Error()))
		return nil
	}
	return user
}

// UserFromContext はリクエストコンテキストのログイン中ユーザーを返す。未認証の場合はnil。
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user := UserFromContext(ctx)
	if user == nil || user.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return user.ID, nil
}

// ContextWithUser はコンテキストにユーザーを注入する。
// ロギングミドルウェアの内側で呼ばれた場合はアクセスログにもユーザーIDを記録する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok && user != nil {
		info.userID = user.ID
	}
	return context.WithValue(ctx, userContextKey, user)
}
