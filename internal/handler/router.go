package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/basedest/course-project/internal/draft"
	"github.com/basedest/course-project/internal/metrics"
	"github.com/basedest/course-project/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionResolver    middleware.SessionResolver
	CORSAllowedOrigins []string
	CSRF               middleware.CSRFConfig
	HSTS               bool
	RateLimiter        *middleware.RateLimiter
	Metrics            metrics.MetricsCollector
	MetricsHandler     http.Handler
	HealthChecker      HealthChecker

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 記事と公開ページ
	ArticleService ArticleServiceInterface
	Renderer       ContentRenderer
	SiteTitle      string

	// 画像アップロード。UploadDirを指定した場合は /uploads/ 以下で配信する
	UploadService UploadServiceInterface
	UploadDir     string

	// サーバー側下書き
	DraftStore     draft.Store
	DraftStoreName string

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → SecurityHeaders → Logging → Metrics → CORS → CSRF → OptionalSession
//
// ログインが必要なルートはさらにRequireUserを通す。
// 記事の書き込みと画像アップロードには専用のレート制限を追加する。
func NewRouter(deps *RouterDeps) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins...))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRF))
	r.Use(middleware.NewOptionalSessionMiddleware(deps.SessionResolver))

	general := deps.generalLimit()
	write := deps.writeLimit()

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	articleHandler := NewArticleHandler(deps.ArticleService)
	pageHandler := NewPageHandler(deps.ArticleService, deps.Renderer, deps.SiteTitle)
	rssHandler := NewRSSHandler(deps.ArticleService, deps.Renderer, deps.AuthConfig.BaseURL, deps.SiteTitle)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証 ---
	r.Route("/auth", func(r chi.Router) {
		r.Use(general)
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.PasswordLogin)
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- JSON API ---
	r.Route("/api", func(r chi.Router) {
		r.Use(general)
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)

		r.Route("/articles", func(r chi.Router) {
			r.Get("/", articleHandler.List)
			r.Get("/{slug}", articleHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireUser)
				r.Use(write)
				r.Post("/", articleHandler.Create)
				r.Put("/{slug}", articleHandler.Update)
				r.Delete("/{slug}", articleHandler.Delete)
			})
		})

		if deps.UploadService != nil {
			uploadHandler := NewUploadHandler(deps.UploadService)
			r.Route("/uploads", func(r chi.Router) {
				r.Use(middleware.RequireUser)
				r.Use(write)
				r.Post("/", uploadHandler.Upload)
				r.Post("/remote", uploadHandler.UploadRemote)
			})
		}

		if deps.DraftStore != nil {
			draftHandler := NewDraftHandler(deps.DraftStore, deps.DraftStoreName, deps.Metrics)
			r.Route("/drafts/{name}", func(r chi.Router) {
				r.Use(middleware.RequireUser)
				r.Get("/", draftHandler.Get)
				r.Put("/", draftHandler.Put)
				r.Delete("/", draftHandler.Delete)
			})
		}

		r.Route("/users/me", func(r chi.Router) {
			r.Use(middleware.RequireUser)
			r.Get("/", userHandler.Me)
			r.Delete("/", userHandler.Withdraw)
		})
	})

	// --- 公開ページ ---
	if deps.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.UploadDir))))
	}
	r.Get("/rss.xml", rssHandler.Feed)
	r.Get("/", pageHandler.Home)
	r.Get("/{category}", pageHandler.Category)
	r.Get("/{category}/{slug}", pageHandler.Article)
	r.NotFound(pageHandler.NotFound)

	return r
}

func passthrough(next http.Handler) http.Handler { return next }

func (d *RouterDeps) generalLimit() func(http.Handler) http.Handler {
	if d.RateLimiter == nil {
		return passthrough
	}
	return d.RateLimiter.GeneralMiddleware()
}

func (d *RouterDeps) writeLimit() func(http.Handler) http.Handler {
	if d.RateLimiter == nil {
		return passthrough
	}
	return d.RateLimiter.ArticleWriteMiddleware()
}
