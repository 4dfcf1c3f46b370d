package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/authgate/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Verifier           middleware.TokenVerifier
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter
	Logger             *slog.Logger
	RequestRecorder    middleware.RequestRecorder

	// 認証
	AuthService AuthServiceInterface

	// メトリクス公開エンドポイント
	MetricsHandler http.Handler

	// 下流サービスへのリバースプロキシ。nilの場合はマウントしない
	UserProxy    http.Handler
	ConceptProxy http.Handler
	GenAIProxy   http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → CORS → SecurityHeaders → Auth → Logging → RequireAuth
//
// Authはトークンを検証して主体を注入するだけで拒否はせず、
// RequireAuthが保護対象パスへの未認証アクセスを境界で401にする。
// LoggingをAuthの後ろに置くことで、認証済みリクエストのログにuser_idが入る。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	publicPaths := middleware.PublicPaths()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewAuthMiddleware(deps.Verifier, publicPaths))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.RequestRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.RequestRecorder))
	}
	r.Use(middleware.NewRequireAuthMiddleware(publicPaths))

	authHandler := NewAuthHandler(deps.AuthService)
	healthHandler := NewHealthHandler()

	// --- 公開ルート ---

	r.Get("/", healthHandler.Health)
	r.Get("/health", healthHandler.Health)
	r.Get("/api/health", healthHandler.Health)

	if deps.MetricsHandler != nil {
		r.Handle("/actuator/prometheus", deps.MetricsHandler)
	}

	// 認証エンドポイントは/authと/api/authの両方で受ける。
	// ログインと登録は資格情報の総当たり対策としてIP単位のレート制限を追加する。
	authRoutes := func(r chi.Router) {
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/register", authHandler.Register)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
	}
	r.Route("/auth", authRoutes)
	r.Route("/api/auth", authRoutes)

	// 下流サービスのヘルスチェックは認証・レート制限なしで中継する
	if deps.UserProxy != nil {
		r.Handle("/api/users/health", deps.UserProxy)
	}
	if deps.ConceptProxy != nil {
		r.Handle("/api/concepts/health", deps.ConceptProxy)
	}
	if deps.GenAIProxy != nil {
		r.Handle("/api/genai/health", deps.GenAIProxy)
	}

	// --- 認証が必要な転送ルート ---
	// RequireAuthを通過した主体単位でレート制限を適用する
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		if deps.UserProxy != nil {
			r.Handle("/api/users", deps.UserProxy)
			r.Handle("/api/users/*", deps.UserProxy)
		}
		if deps.ConceptProxy != nil {
			r.Handle("/api/concepts", deps.ConceptProxy)
			r.Handle("/api/concepts/*", deps.ConceptProxy)
		}
		if deps.GenAIProxy != nil {
			r.Handle("/api/genai", deps.GenAIProxy)
			r.Handle("/api/genai/*", deps.GenAIProxy)
		}
	})

	return r
}
