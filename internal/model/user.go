package model

import "time"

// Role はユーザーの権限を表す。
type Role string

const (
	// RoleUser は一般ユーザー。自分の記事のみ編集できる。
	RoleUser Role = "user"
	// RoleAdmin は管理者。すべての記事を編集できる。
	RoleAdmin Role = "admin"
)

// User はサービス利用ユーザーを表す。
// PasswordHashは外部IdPのみで登録したユーザーでは空になる。
type User struct {
	ID           string
	Username     string
	Email        string
	Name         string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin は管理者かどうかを返す。
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// DisplayName は記事の著者として表示する名前を返す。
// 表示名が未設定の場合はユーザー名を使う。
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// Identity は外部IdPとの紐付け情報を表す。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
