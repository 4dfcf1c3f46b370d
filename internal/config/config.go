package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// JWT
	JWTSecret            string
	JWTExpiration        time.Duration
	JWTRefreshExpiration time.Duration

	// 下流サービス
	UserServiceURL    string
	ConceptServiceURL string
	GenAIServiceURL   string
	DirectoryTimeout  time.Duration

	// 失効ストア
	RevocationBackend string // "memory" または "redis"
	RedisAddr         string
	RedisPassword     string

	// Rate Limit
	RateLimitGeneral int
	RateLimitLogin   int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigins []string

	// Logging
	LogLevel string
}

// 失効ストアのバックエンド種別。
const (
	RevocationBackendMemory = "memory"
	RevocationBackendRedis  = "redis"
)

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// JWT_SECRETにデフォルト値は存在しない。弱いシークレットでの起動を許さないため、
// 長さの下限チェックはトークンコーデック側で行う。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.UserServiceURL = os.Getenv("USER_SVC_URL")
	if cfg.UserServiceURL == "" {
		missing = append(missing, "USER_SVC_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.JWTExpiration = getEnvDuration("JWT_EXPIRATION", time.Hour)
	cfg.JWTRefreshExpiration = getEnvDuration("JWT_REFRESH_EXPIRATION", 7*24*time.Hour)
	cfg.ConceptServiceURL = getEnvString("CONCEPT_SVC_URL", "")
	cfg.GenAIServiceURL = getEnvString("GENAI_SVC_URL", "")
	cfg.DirectoryTimeout = getEnvDuration("DIRECTORY_TIMEOUT", 3*time.Second)
	cfg.RevocationBackend = getEnvString("REVOCATION_BACKEND", RevocationBackendMemory)
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigins = splitAndTrim(getEnvString("CORS_ALLOWED_ORIGINS", "http://localhost:3000"))
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	if cfg.RevocationBackend != RevocationBackendMemory && cfg.RevocationBackend != RevocationBackendRedis {
		return nil, fmt.Errorf("REVOCATION_BACKEND must be %q or %q, got %q",
			RevocationBackendMemory, RevocationBackendRedis, cfg.RevocationBackend)
	}

	return cfg, nil
}

// splitAndTrim はカンマ区切りの値を空白除去しつつ分割する。
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
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
