// Package app はアプリケーションの初期化と起動を行う。
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
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/hitoshi/authgate/internal/auth"
	"github.com/hitoshi/authgate/internal/config"
	"github.com/hitoshi/authgate/internal/directory"
	"github.com/hitoshi/authgate/internal/handler"
	"github.com/hitoshi/authgate/internal/logger"
	"github.com/hitoshi/authgate/internal/metrics"
	"github.com/hitoshi/authgate/internal/middleware"
	"github.com/hitoshi/authgate/internal/revocation"
	"github.com/hitoshi/authgate/internal/session"
	"github.com/hitoshi/authgate/internal/token"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでログを再セットアップする
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

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
		slog.String("revocation_backend", cfg.RevocationBackend),
	)

	return runServe(cfg)
}

// runServe はゲートウェイサーバーモードで起動する。
// トークンコーデック・失効ストア・ディレクトリクライアント・プロキシを
// ワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. トークンコーデック（シークレットの長さ下限はここで検証される）
	codec, err := token.NewCodec([]byte(cfg.JWTSecret))
	if err != nil {
		return fmt.Errorf("failed to create token codec: %w", err)
	}

	// 2. 失効ストア
	store, err := newRevocationStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to create revocation store: %w", err)
	}

	// 3. セッション発行
	issuer := session.NewIssuer(codec, store, session.Config{
		AccessTTL:  cfg.JWTExpiration,
		RefreshTTL: cfg.JWTRefreshExpiration,
	})

	// 4. user-svcクライアント
	dirClient := directory.NewClient(
		&http.Client{Timeout: cfg.DirectoryTimeout},
		cfg.UserServiceURL,
		slog.Default(),
	)

	// 5. メトリクス
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	// 6. 認証サービス
	authService := auth.NewService(dirClient, issuer, store, collector)

	// 7. レート制限（設定はreq/min単位なのでreq/secに変換する）
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		LoginRate:       rate.Limit(float64(cfg.RateLimitLogin) / 60.0),
		LoginBurst:      cfg.RateLimitLogin,
		CleanupInterval: 5 * time.Minute,
	})
	defer rateLimiter.Stop()

	// 8. 下流サービスへのプロキシ
	deps := &handler.RouterDeps{
		Verifier:           issuer,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        rateLimiter,
		Logger:             slog.Default(),
		RequestRecorder:    collector,
		AuthService:        authService,
		MetricsHandler:     metrics.Handler(prometheus.DefaultGatherer),
	}

	if deps.UserProxy, err = newUpstreamProxy("user-svc", cfg.UserServiceURL, collector); err != nil {
		return err
	}
	if deps.ConceptProxy, err = newUpstreamProxy("concept-svc", cfg.ConceptServiceURL, collector); err != nil {
		return err
	}
	if deps.GenAIProxy, err = newUpstreamProxy("genai-svc", cfg.GenAIServiceURL, collector); err != nil {
		return err
	}

	// 9. ルーターとHTTPサーバーの起動
	router := handler.NewRouter(deps)

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
		slog.Info("gateway server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down gateway server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("gateway server stopped gracefully")
	return nil
}

// newRevocationStore は設定に応じた失効ストアを構築する。
// redisバックエンドの場合は起動時に疎通確認を行う。
func newRevocationStore(cfg *config.Config) (revocation.Store, error) {
	switch cfg.RevocationBackend {
	case config.RevocationBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		slog.Info("redis connection established", slog.String("addr", cfg.RedisAddr))
		return revocation.NewRedisStore(client, cfg.JWTRefreshExpiration), nil
	default:
		slog.Info("using in-memory revocation store")
		return revocation.NewMemoryStore(), nil
	}
}

// newUpstreamProxy はURLが設定されている場合のみプロキシを構築する。
// 未設定の下流サービスはルーティングにマウントされない。
func newUpstreamProxy(name, rawURL string, collector *metrics.Collector) (http.Handler, error) {
	if rawURL == "" {
		slog.Info("upstream not configured, skipping", slog.String("upstream", name))
		return nil, nil
	}

	target, err := handler.ParseUpstreamURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL for upstream %s: %w", name, err)
	}

	return handler.NewUpstreamProxy(name, target, collector, slog.Default()), nil
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
