// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/basedest/course-project/internal/model"
)

// ErrDuplicateSlug は同じスラッグの記事が既に存在する場合に返される。
var ErrDuplicateSlug = errors.New("duplicate article slug")

// ErrDuplicateUsername は同じユーザー名のユーザーが既に存在する場合に返される。
var ErrDuplicateUsername = errors.New("duplicate username")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はパスワード認証のユーザーを作成する。
	// ユーザー名が重複する場合はErrDuplicateUsernameを返す。
	Create(ctx context.Context, user *model.User) error

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// ListProvidersByUserID はユーザーに紐付いたIdP名の一覧を返す。
	ListProvidersByUserID(ctx context.Context, userID string) ([]string, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ArticleRepository は記事データの永続化インターフェース。
// PostgreSQLとMongoDBの実装があり、ARTICLE_STOREで切り替える。
type ArticleRepository interface {
	// FindBySlug はスラッグで記事を取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Article, error)

	// List は条件に一致する記事をcreated_at降順で返す。
	// Titleは大文字小文字を区別しない部分一致。
	List(ctx context.Context, q model.ArticleQuery) ([]*model.Article, error)

	// Count は条件に一致する記事数を返す。OffsetとLimitは無視する。
	Count(ctx context.Context, q model.ArticleQuery) (int, error)

	// Create は記事を作成する。スラッグが重複する場合はErrDuplicateSlugを返す。
	Create(ctx context.Context, article *model.Article) error

	// Update はスラッグで指定した記事の可変フィールドを上書きする。
	// description、category、img、tags、content、edited_atが対象で、
	// title、slug、author、created_atは変更しない。
	// 対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, article *model.Article) (bool, error)

	// DeleteBySlug は記事を削除する。対象が存在しない場合はfalseを返す。
	DeleteBySlug(ctx context.Context, slug string) (bool, error)
}

// DraftRepository はサーバー側下書きの永続化インターフェース。
type DraftRepository interface {
	// Find は下書きを取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, owner, name string) (*model.Draft, error)

	// Upsert は下書きを保存する。既存の下書きは上書きされる。
	Upsert(ctx context.Context, owner, name string, data json.RawMessage) error

	// Delete は下書きを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, owner, name string) error

	// DeleteOlderThan はbefore以前に更新された下書きを削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
