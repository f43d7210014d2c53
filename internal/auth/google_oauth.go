package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ProviderGoogle はGoogleアカウントのidentityに記録するプロバイダー名。
const ProviderGoogle = "google"

const (
	googleAuthEndpoint     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenEndpoint    = "https://oauth2.googleapis.com/token"
	googleUserInfoEndpoint = "https://openidconnect.googleapis.com/v1/userinfo"
)

// GoogleOAuthConfig はGoogleログインの設定。
// エンドポイントURLは空の場合にGoogleの本番URLを使う。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// HTTPClient はトークン交換とユーザー情報取得に使うクライアント。nilの場合は10秒タイムアウトの既定クライアント。
	HTTPClient *http.Client
}

// GoogleOAuthProvider はGoogleアカウントでのログインを提供する。
type GoogleOAuthProvider struct {
	config GoogleOAuthConfig
	client *http.Client
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = googleAuthEndpoint
	}
	if config.TokenURL == "" {
		config.TokenURL = googleTokenEndpoint
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = googleUserInfoEndpoint
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleOAuthProvider{config: config, client: client}
}

// GetLoginURL は同意画面のURLを返す。
func (p *GoogleOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{}
	params.Set("client_id", p.config.ClientID)
	params.Set("redirect_uri", p.config.RedirectURL)
	params.Set("response_type", "code")
	params.Set("scope", "openid email profile")
	params.Set("state", state)
	params.Set("prompt", "select_account")
	return p.config.AuthURL + "?" + params.Encode()
}

type googleToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type googleProfile struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、プロフィールを取得する。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", p.config.ClientID)
	form.Set("client_secret", p.config.ClientSecret)
	form.Set("redirect_uri", p.config.RedirectURL)
	form.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var token googleToken
	if err := p.doJSON(req, &token); err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token exchange failed: empty access token")
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	var profile googleProfile
	if err := p.doJSON(req, &profile); err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	if profile.Sub == "" {
		return nil, fmt.Errorf("userinfo response has no subject")
	}

	return &OAuthUserInfo{
		Provider:       ProviderGoogle,
		ProviderUserID: profile.Sub,
		Email:          profile.Email,
		Name:           profile.Name,
	}, nil
}

// doJSON はリクエストを送信し、200のレスポンスボディをvにデコードする。
func (p *GoogleOAuthProvider) doJSON(req *http.Request, v interface{}) error {
	req.Header.Set("Accept", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
