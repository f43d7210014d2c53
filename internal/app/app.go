package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/docgen"

	"github.com/basedest/course-project/internal/config"
	"github.com/basedest/course-project/internal/database"
	"github.com/basedest/course-project/internal/handler"
	"github.com/basedest/course-project/internal/logger"
	"github.com/basedest/course-project/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)
	var rest []string
	if len(args) > 0 && Command(args[0]) == cmd {
		rest = args[1:]
	}

	// 以下は軽量サブコマンドのため、サーバー設定の読み込みをスキップする
	switch {
	case cmd == CommandHealthcheck:
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	case cmd == CommandRoutes:
		return runRoutes(w)
	case cmd.IsClient():
		return runClient(context.Background(), w, cmd, rest)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("article_store", cfg.ArticleStore),
		slog.String("draft_store", cfg.DraftStore),
		slog.String("upload_store", cfg.UploadStore),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(w, cfg, rest)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. 記事・下書き・画像の保存先
	b, err := openBackends(ctx, cfg, db)
	if err != nil {
		return fmt.Errorf("failed to initialize storage backends: %w", err)
	}
	defer b.Close()

	// 3. ルーターの構築
	deps := buildRouterDeps(cfg, db, b, slog.Default())
	defer deps.RateLimiter.Stop()
	router := handler.NewRouter(deps)

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れセッションと古い下書きのクリーンアップを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. クリーンアップジョブの初期化
	// Redisの下書きはTTLで失効し、メモリの下書きはプロセスと共に消える
	job := cleanup.NewCleanupJob(db, slog.Default())
	job.RetentionDays = cfg.DraftRetentionDays
	job.PurgeDrafts = cfg.DraftStore == config.StorePostgres

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Int("draft_retention_days", cfg.DraftRetentionDays),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// 引数なしまたは "up" で未適用分をすべて適用し、"down [N]" で直近N件（既定1件）を取り消し、
// "version" で適用済みバージョンを表示する。
func runMigrate(w io.Writer, cfg *config.Config, args []string) error {
	action := "up"
	if len(args) > 0 {
		action = args[0]
	}

	slog.Info("running database migrations",
		slog.String("action", action),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	var (
		st  *database.MigrationStatus
		err error
	)
	switch action {
	case "up":
		st, err = database.RunMigrations(cfg.DatabaseURL)
	case "down":
		steps := 1
		if len(args) > 1 {
			if steps, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("invalid rollback steps %q: %w", args[1], err)
			}
		}
		st, err = database.RollbackMigrations(cfg.DatabaseURL, steps)
	case "version":
		st, err = database.CurrentMigration(cfg.DatabaseURL)
	default:
		return fmt.Errorf("unknown migrate action %q (want up, down or version)", action)
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.String("action", action),
		slog.Uint64("version", uint64(st.Version)),
		slog.Bool("dirty", st.Dirty),
	)
	if action == "version" {
		fmt.Fprintf(w, "version %d (dirty: %t)\n", st.Version, st.Dirty)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// runRoutes はルーティング一覧をMarkdownでwに出力する。
// DBに接続せずにルーターを組み立てる。
func runRoutes(w io.Writer) error {
	router := handler.NewRouter(routeDocDeps(slog.New(slog.NewJSONHandler(io.Discard, nil))))
	doc := docgen.MarkdownRoutesDoc(router, docgen.MarkdownOpts{
		ProjectPath: "github.com/basedest/course-project",
		Intro:       "Routes of the blog server: JSON API under /api, authentication under /auth and server-rendered pages.",
	})
	_, err := io.WriteString(w, doc+"\n")
	return err
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
