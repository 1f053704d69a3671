// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/judgelink/internal/catalog"
	"github.com/hitoshi/judgelink/internal/config"
	"github.com/hitoshi/judgelink/internal/database"
	"github.com/hitoshi/judgelink/internal/handler"
	"github.com/hitoshi/judgelink/internal/judge"
	"github.com/hitoshi/judgelink/internal/logger"
	"github.com/hitoshi/judgelink/internal/metrics"
	"github.com/hitoshi/judgelink/internal/middleware"
	"github.com/hitoshi/judgelink/internal/repository"
	"github.com/hitoshi/judgelink/internal/roles"
	"github.com/hitoshi/judgelink/internal/verify"
	"github.com/hitoshi/judgelink/internal/worker/sweep"
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

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// buildJudgeClients は設定に基づいてジャッジアダプタを構築する。
// 各アダプタはバックエンドごとの最小リクエスト間隔を持つ。
// Codeforcesアダプタはカタログの問題リスト取得元を兼ねるため個別に返す。
func buildJudgeClients(cfg *config.Config) (*judge.CodeforcesClient, *judge.CodeChefClient) {
	cf := judge.NewCodeforcesClient(
		&http.Client{Timeout: cfg.JudgeTimeout},
		judge.NewPacer(cfg.CFRequestSpacing),
		slog.Default(),
	)
	cc := judge.NewCodeChefClient(
		judge.NewCodeChefHTTPClient(cfg.JudgeTimeout),
		judge.NewPacer(cfg.CCRequestSpacing),
		slog.Default(),
	)
	return cf, cc
}

// buildAssigner はロール付与コラボレータを構築する。
// Webhook URLが未設定の場合は何も付与しない実装を返す。
func buildAssigner(cfg *config.Config) roles.Assigner {
	if cfg.RoleWebhookURL == "" {
		return roles.NewNopAssigner(slog.Default())
	}
	return roles.NewWebhookAssigner(
		&http.Client{Timeout: 10 * time.Second},
		cfg.RoleWebhookURL,
		slog.Default(),
	)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	accountRepo := repository.NewPostgresAccountRepo(db)
	guildRepo := repository.NewPostgresGuildConfigRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ジャッジアダプタとカタログの初期化
	cfClient, ccClient := buildJudgeClients(cfg)
	cat := catalog.New(cfClient, catalog.Config{
		CacheTTL:  cfg.CatalogCacheTTL,
		RatingMin: cfg.CFRatingMin,
		RatingMax: cfg.CFRatingMax,
	}, slog.Default())

	// 5. オーケストレータの初期化
	verifyService := verify.NewService(
		[]judge.Client{cfClient, ccClient}, cat, sessionRepo, accountRepo, guildRepo,
		buildAssigner(cfg), collector, slog.Default(), cfg.VerificationWindow,
	)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		LinkRate:        rate.Limit(float64(cfg.RateLimitLink) / 60.0),
		LinkBurst:       cfg.RateLimitLink,
		CleanupInterval: 5 * time.Minute,
	})
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		APIToken:       cfg.APIToken,
		Logger:         slog.Default(),
		HTTPMetrics:    collector,
		RateLimiter:    rateLimiter,
		LinkService:    verifyService,
		AccountReader:  accountRepo,
		AccountDeleter: accountRepo,
		MetricsHandler: metrics.Handler(registry),
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションのスイープジョブとメトリクスサーバーを起動する。
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

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. スイープジョブの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	job := sweep.NewJob(sessionRepo, collector, slog.Default())

	// 4. メトリクスサーバーの起動
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}
	go func() {
		slog.Info("metrics server starting",
			slog.String("addr", metricsServer.Addr),
		)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("sweep_interval", cfg.SweepInterval),
	)

	// スイープジョブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx, cfg.SweepInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
