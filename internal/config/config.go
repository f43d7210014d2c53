package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 保存先バックエンドの識別子。
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
	StoreLocal    = "local"
	StoreSupabase = "supabase"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL   string
	MongoURL      string
	MongoDatabase string
	RedisURL      string

	// Storage backends
	ArticleStore string
	DraftStore   string
	UploadStore  string

	// OAuth（GoogleClientIDが空の場合は無効）
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionSecret  string
	SessionMaxAge  int
	AdminUsernames []string

	// Drafts
	DraftRetentionDays int
	DraftTTL           time.Duration
	CleanupInterval    time.Duration

	// Uploads
	UploadDir      string
	UploadMaxSize  int64
	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	// Rate Limit（req/min）
	RateLimitGeneral      int
	RateLimitArticleWrite int

	// Server
	ServerPort string
	BaseURL    string
	SiteTitle  string
	HSTS       bool

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigins []string
}

// OAuthEnabled はGoogleログインが設定されているかを返す。
func (c *Config) OAuthEnabled() bool {
	return c.GoogleClientID != ""
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は不足分をまとめてエラーとして返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = strings.TrimRight(os.Getenv("BASE_URL"), "/")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	// Backend selection
	cfg.ArticleStore = strings.ToLower(getEnvString("ARTICLE_STORE", StorePostgres))
	cfg.DraftStore = strings.ToLower(getEnvString("DRAFT_STORE", StorePostgres))
	cfg.UploadStore = strings.ToLower(getEnvString("UPLOAD_STORE", StoreLocal))

	cfg.MongoURL = os.Getenv("MONGO_URL")
	cfg.MongoDatabase = getEnvString("MONGO_DATABASE", "blog")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.SupabaseURL = os.Getenv("SUPABASE_URL")
	cfg.SupabaseKey = os.Getenv("SUPABASE_KEY")
	cfg.SupabaseBucket = getEnvString("SUPABASE_BUCKET", "images")

	if cfg.ArticleStore == StoreMongo && cfg.MongoURL == "" {
		missing = append(missing, "MONGO_URL")
	}
	if cfg.DraftStore == StoreRedis && cfg.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}
	if cfg.UploadStore == StoreSupabase {
		if cfg.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if cfg.SupabaseKey == "" {
			missing = append(missing, "SUPABASE_KEY")
		}
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleClientID != "" {
		if cfg.GoogleClientSecret == "" {
			missing = append(missing, "GOOGLE_CLIENT_SECRET")
		}
		if cfg.GoogleRedirectURL == "" && cfg.BaseURL != "" {
			cfg.GoogleRedirectURL = cfg.BaseURL + "/auth/google/callback"
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if err := validateChoice("ARTICLE_STORE", cfg.ArticleStore, StorePostgres, StoreMongo); err != nil {
		return nil, err
	}
	if err := validateChoice("DRAFT_STORE", cfg.DraftStore, StorePostgres, StoreRedis, StoreMemory); err != nil {
		return nil, err
	}
	if err := validateChoice("UPLOAD_STORE", cfg.UploadStore, StoreLocal, StoreSupabase); err != nil {
		return nil, err
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.AdminUsernames = getEnvList("ADMIN_USERNAMES", nil)
	cfg.DraftRetentionDays = getEnvInt("DRAFT_RETENTION_DAYS", 30)
	cfg.DraftTTL = getEnvDuration("DRAFT_TTL", time.Duration(cfg.DraftRetentionDays)*24*time.Hour)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.UploadDir = getEnvString("UPLOAD_DIR", "./uploads")
	cfg.UploadMaxSize = getEnvInt64("UPLOAD_MAX_SIZE", 5242880)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitArticleWrite = getEnvInt("RATE_LIMIT_ARTICLE_WRITE", 20)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.SiteTitle = getEnvString("SITE_TITLE", "Blog")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.HSTS = getEnvBool("HSTS", cfg.CookieSecure)
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"})

	return cfg, nil
}

func validateChoice(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q: must be one of %v", key, value, allowed)
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの値を空要素を除いて返す。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var list []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}
	if len(list) == 0 {
		return defaultVal
	}
	return list
}
