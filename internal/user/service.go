// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/basedest/course-project/internal/draft"
	"github.com/basedest/course-project/internal/model"
	"github.com/basedest/course-project/internal/repository"
)

// Profile はログイン中ユーザーの表示用情報。
// セッション協調者が返す {user: {name, ...}} のuserに相当する。
type Profile struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Name      string   `json:"name"`
	Email     string   `json:"email,omitempty"`
	Role      string   `json:"role"`
	Providers []string `json:"providers"`
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	drafts      draft.Store
}

// NewService はServiceの新しいインスタンスを生成する。
// draftsがnilの場合、退会時の下書き削除を行わない。
func NewService(
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	drafts draft.Store,
) *Service {
	return &Service{
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		drafts:      drafts,
	}
}

// Me はユーザーのプロフィールを返す。
// Nameが未設定の場合はユーザー名を表示名として返す。
func (s *Service) Me(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	providers := []string{}
	if user.PasswordHash != "" {
		providers = append(providers, "password")
	}
	if s.identRepo != nil {
		linked, err := s.identRepo.ListProvidersByUserID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("連携アカウントの取得に失敗しました: %w", err)
		}
		providers = append(providers, linked...)
	}

	return &Profile{
		ID:        user.ID,
		Username:  user.Username,
		Name:      user.DisplayName(),
		Email:     user.Email,
		Role:      string(user.Role),
		Providers: providers,
	}, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: 下書き → sessions → user（+ CASCADE: identities）
// 記事は残し、author_idのみNULLになる。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します", slog.String("user_id", userID))

	if s.drafts != nil {
		key := draft.Key{Owner: userID, Name: draft.DataKey}
		if err := s.drafts.Clear(ctx, key); err != nil {
			return fmt.Errorf("下書きの削除に失敗しました: %w", err)
		}
	}

	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました", slog.String("user_id", userID))
	return nil
}
