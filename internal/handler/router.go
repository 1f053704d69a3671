package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/judgelink/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	APIToken    string
	Logger      *slog.Logger
	HTTPMetrics middleware.HTTPMetrics
	RateLimiter *middleware.RateLimiter

	// 連携
	LinkService LinkServiceInterface

	// 連携済みアカウント
	AccountReader  AccountReader
	AccountDeleter AccountDeleter

	// /metrics ハンドラー（nilの場合はルートを登録しない）
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Auth(Bearer) → RateLimit(General)
//
// /health と /metrics は認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.HTTPMetrics))

	linkHandler := NewLinkHandler(deps.LinkService)
	accountHandler := NewAccountHandler(deps.AccountReader, deps.AccountDeleter)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.APIToken))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/links", func(r chi.Router) {
			// POST /api/links - 連携開始（開始専用レート制限を追加）
			r.With(deps.RateLimiter.LinkMiddleware()).Post("/", linkHandler.StartLink)

			// POST /api/links/verify - 検証試行
			r.Post("/verify", linkHandler.VerifyLink)

			// GET /api/links - 連携一覧
			r.Get("/", accountHandler.ListLinks)

			// DELETE /api/links - 連携解除
			r.Delete("/", accountHandler.Unlink)
		})
	})

	return r
}
