package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/basedest/course-project/internal/article"
	"github.com/basedest/course-project/internal/auth"
	"github.com/basedest/course-project/internal/config"
	"github.com/basedest/course-project/internal/database"
	"github.com/basedest/course-project/internal/draft"
	"github.com/basedest/course-project/internal/handler"
	"github.com/basedest/course-project/internal/metrics"
	"github.com/basedest/course-project/internal/middleware"
	"github.com/basedest/course-project/internal/render"
	"github.com/basedest/course-project/internal/repository"
	"github.com/basedest/course-project/internal/security"
	"github.com/basedest/course-project/internal/upload"
	"github.com/basedest/course-project/internal/user"
)

// uploadURLPath はローカル保存した画像の配信パス。
const uploadURLPath = "/uploads"

// backends は設定で選択した保存先の実装。
type backends struct {
	articles  repository.ArticleRepository
	drafts    draft.Store
	draftName string
	storage   upload.Storage
	uploadDir string

	closers []func()
}

// Close は開いた接続を逆順に閉じる。
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends はARTICLE_STORE、DRAFT_STORE、UPLOAD_STOREに従って保存先を組み立てる。
// ユーザーとセッションは常にPostgreSQLに保存する。
func openBackends(ctx context.Context, cfg *config.Config, db *sql.DB) (*backends, error) {
	b := &backends{}

	switch cfg.ArticleStore {
	case config.StoreMongo:
		client, err := database.OpenMongo(ctx, cfg.MongoURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = client.Disconnect(context.Background()) })

		repo := repository.NewMongoArticleRepo(client.Database(cfg.MongoDatabase))
		if err := repo.EnsureIndexes(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to ensure mongodb indexes: %w", err)
		}
		b.articles = repo
	default:
		b.articles = repository.NewPostgresArticleRepo(db)
	}

	b.draftName = cfg.DraftStore
	switch cfg.DraftStore {
	case config.StoreRedis:
		client, err := database.OpenRedis(cfg.RedisURL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		b.drafts = draft.NewRedisStore(client, cfg.DraftTTL)
	case config.StoreMemory:
		b.drafts = draft.NewMemoryStore()
	default:
		b.drafts = draft.NewRepositoryStore(repository.NewPostgresDraftRepo(db))
	}

	switch cfg.UploadStore {
	case config.StoreSupabase:
		storage, err := upload.NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.storage = storage
	default:
		b.storage = upload.NewLocalStorage(cfg.UploadDir, cfg.BaseURL+uploadURLPath)
		b.uploadDir = cfg.UploadDir
	}

	return b, nil
}

// newMetrics はアプリケーションのメトリクスとGoランタイムのメトリクスを登録したレジストリを返す。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newRateLimiter はreq/min単位の設定をreq/secのリミッターに変換する。
func newRateLimiter(cfg *config.Config) *middleware.RateLimiter {
	rlCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rlCfg.GeneralRate = perMinute(cfg.RateLimitGeneral)
		rlCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitArticleWrite > 0 {
		rlCfg.ArticleWriteRate = perMinute(cfg.RateLimitArticleWrite)
		rlCfg.ArticleWriteBurst = cfg.RateLimitArticleWrite
	}
	return middleware.NewRateLimiter(rlCfg)
}

func perMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60.0)
}

// buildRouterDeps はサーバーの全依存関係をワイヤリングする。
func buildRouterDeps(cfg *config.Config, db *sql.DB, b *backends, logger *slog.Logger) *handler.RouterDeps {
	// 1. リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// 2. メトリクスとセキュリティ
	reg, collector := newMetrics()
	sanitizer := security.NewContentSanitizer()
	ssrfGuard := security.NewSSRFGuard()
	renderer := render.NewRenderer(sanitizer)

	// 3. ドメインサービス
	var oauth auth.OAuthProvider
	if cfg.OAuthEnabled() {
		oauth = auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
	}
	authService := auth.NewService(
		oauth, userRepo, identRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge, AdminUsernames: cfg.AdminUsernames},
	)
	articleService := article.NewService(b.articles, renderer, collector)
	uploadService := upload.NewService(b.storage, ssrfGuard, collector, cfg.UploadMaxSize)
	userService := user.NewService(userRepo, identRepo, sessionRepo, b.drafts)

	return &handler.RouterDeps{
		Logger:             logger,
		SessionResolver:    authService,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		HSTS:           cfg.HSTS,
		RateLimiter:    newRateLimiter(cfg),
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
		HealthChecker:  db,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ArticleService: articleService,
		Renderer:       renderer,
		SiteTitle:      cfg.SiteTitle,

		UploadService: uploadService,
		UploadDir:     b.uploadDir,

		DraftStore:     b.drafts,
		DraftStoreName: b.draftName,

		UserService: userService,
	}
}

// routeDocDeps はルーティング一覧の出力用に、接続を持たない依存関係を組み立てる。
// ハンドラーは呼び出されないため、各サービスはゼロ値でよい。
func routeDocDeps(logger *slog.Logger) *handler.RouterDeps {
	renderer := render.NewRenderer(security.NewContentSanitizer())
	_, collector := newMetrics()
	return &handler.RouterDeps{
		Logger:         logger,
		Metrics:        collector,
		MetricsHandler: http.NotFoundHandler(),
		AuthService:    &auth.Service{},
		ArticleService: &article.Service{},
		Renderer:       renderer,
		UploadService:  &upload.Service{},
		UploadDir:      "uploads",
		DraftStore:     draft.NewMemoryStore(),
		DraftStoreName: config.StoreMemory,
		UserService:    &user.Service{},
	}
}
