// Package auth はパスワード認証、外部IdPログイン、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/basedest/course-project/internal/model"
	"github.com/basedest/course-project/internal/repository"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 8

// bcryptは72バイトを超える入力を扱えない。
const maxPasswordBytes = 72

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,64}$`)

// OAuthUserInfo は外部IdPから取得したユーザー情報。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string
}

// OAuthProvider は外部IdPのインターフェース。
type OAuthProvider interface {
	// GetLoginURL は同意画面のURLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードを交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge  int      // セッション有効期間（秒）
	AdminUsernames []string // 登録時に管理者にするユーザー名
}

// RegisterInput はパスワード認証ユーザーの登録内容。
type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。oauthがnilの場合は外部IdPログインを無効にする。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		config:      config,
		now:         time.Now,
	}
}

// OAuthEnabled は外部IdPログインが有効かを返す。
func (s *Service) OAuthEnabled() bool {
	return s.oauth != nil
}

// GetLoginURL は外部IdPの認証URLを生成する。
func (s *Service) GetLoginURL(state string) (string, error) {
	if s.oauth == nil {
		return "", model.NewOAuthDisabledError()
	}
	return s.oauth.GetLoginURL(state), nil
}

// Register はパスワード認証のユーザーを登録する。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	username := strings.TrimSpace(input.Username)
	if !usernamePattern.MatchString(username) {
		return nil, model.NewInvalidRegistrationError("ユーザー名は3〜64文字の英数字と_.-で指定してください")
	}
	if len([]rune(input.Password)) < MinPasswordLength {
		return nil, model.NewInvalidRegistrationError("パスワードが短すぎます")
	}
	if len(input.Password) > maxPasswordBytes {
		return nil, model.NewInvalidRegistrationError("パスワードが長すぎます")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		Name:         strings.TrimSpace(input.Name),
		Role:         s.roleFor(username),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, model.NewUsernameTakenError(username)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// Login はユーザー名とパスワードを検証し、セッションを発行する。
// ユーザーが存在しない場合とパスワードが誤っている場合は同じエラーを返す。
func (s *Service) Login(ctx context.Context, username, password string) (*model.Session, error) {
	user, err := s.userRepo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil, model.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Info("login rejected", slog.String("username", user.Username))
		return nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	slog.Info("user logged in", slog.String("user_id", user.ID), slog.String("provider", "password"))
	return session, nil
}

// HandleCallback は外部IdPのコールバックを処理し、セッションを発行する。
// 未登録の場合はユーザーとidentityを同一トランザクションで作成する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if s.oauth == nil {
		return nil, model.NewOAuthDisabledError()
	}

	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, info.Provider, info.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var userID string
	if identity != nil {
		userID = identity.UserID
	} else {
		now := s.now()
		user := &model.User{
			ID:        uuid.New().String(),
			Username:  oauthUsername(info.Provider, info.ProviderUserID),
			Email:     info.Email,
			Name:      info.Name,
			Role:      model.RoleUser,
			CreatedAt: now,
			UpdatedAt: now,
		}
		newIdentity := &model.Identity{
			ID:             uuid.New().String(),
			UserID:         user.ID,
			Provider:       info.Provider,
			ProviderUserID: info.ProviderUserID,
			CreatedAt:      now,
		}
		if err := s.userRepo.CreateWithIdentity(ctx, user, newIdentity); err != nil {
			return nil, fmt.Errorf("failed to create user and identity: %w", err)
		}
		userID = user.ID
		slog.Info("user provisioned from identity provider",
			slog.String("user_id", userID),
			slog.String("provider", info.Provider),
		)
	}

	session, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	slog.Info("user logged in", slog.String("user_id", userID), slog.String("provider", info.Provider))
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}
	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// GetCurrentUser はセッションIDから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

func (s *Service) roleFor(username string) model.Role {
	for _, admin := range s.config.AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(admin), username) {
			return model.RoleAdmin
		}
	}
	return model.RoleUser
}

func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// oauthUsername は外部IdPのユーザーに割り当てるユーザー名を返す。
// パスワード認証のユーザー名と衝突しないよう "@" を含める。
func oauthUsername(provider, providerUserID string) string {
	name := provider + "@" + providerUserID
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

// generateSessionID は256ビットの乱数からセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
