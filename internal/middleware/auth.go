// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/authgate/internal/token"
)

// bearerPrefix はAuthorizationヘッダーのBearerスキームプレフィックス。
// これ以外のスキームは「資格情報なし」として扱う。
const bearerPrefix = "Bearer "

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストに認証済み主体を格納するためのキー。
var principalContextKey = contextKey("principal")

// TokenVerifier はトークン検証に必要なインターフェース。
// session.Issuerの部分集合として定義する（署名・期限・失効をまとめて検証する）。
type TokenVerifier interface {
	Verify(ctx context.Context, tokenString string) (*token.Claims, error)
}

// PublicPaths はトークン不要でアクセスできるパスの完全一致許可リスト。
// ヘルスチェック、認証エンドポイント、メトリクスを含む。
func PublicPaths() []string {
	return []string{
		"/",
		"/health",
		"/api/health",
		"/api/users/health",
		"/api/concepts/health",
		"/api/genai/health",
		"/auth/login",
		"/auth/register",
		"/auth/refresh",
		"/auth/logout",
		"/api/auth/login",
		"/api/auth/register",
		"/api/auth/refresh",
		"/api/auth/logout",
		"/actuator/prometheus",
	}
}

// isPublicPath はパスが許可リストに含まれるかを判定する。完全一致のみ。
func isPublicPath(publicPaths map[string]struct{}, path string) bool {
	_, ok := publicPaths[path]
	return ok
}

// NewAuthMiddleware はBearerトークンを検証し、認証済み主体を
// リクエストコンテキストに注入するミドルウェアを返す。
//
// このミドルウェア自身はリクエストを拒否しない。検証失敗は握りつぶされ、
// リクエストは未認証のまま後続に渡される。保護対象パスの拒否は
// NewRequireAuthMiddlewareが行う（境界でのみ401を生成する）。
// CORSプリフライト（OPTIONS）と許可リスト上のパスは検証をスキップする。
func NewAuthMiddleware(verifier TokenVerifier, publicPaths []string) func(next http.Handler) http.Handler {
	public := make(map[string]struct{}, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. プリフライトと公開パスは認証不要
			if r.Method == http.MethodOptions || isPublicPath(public, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			// 2. Bearerトークンの抽出。他スキームや欠落は資格情報なしとして続行
			tokenString, ok := extractBearer(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			// 3. 署名・有効期限・失効状態の検証。失敗しても中断せず未認証で続行
			claims, err := verifier.Verify(r.Context(), tokenString)
			if err != nil {
				slog.Warn("token verification failed",
					slog.String("path", r.URL.Path),
				)
				next.ServeHTTP(w, r)
				return
			}

			// 4. 認証済み主体をこのリクエストのコンテキストにのみ注入する
			ctx := context.WithValue(r.Context(), principalContextKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRequireAuthMiddleware は保護対象パスへの未認証リクエストを401で拒否する
// ミドルウェアを返す。認証の境界エントリポイント。
//
// エラーコードはAuthorizationヘッダーが完全に欠落していた場合のみMISSING_TOKEN、
// ヘッダーは存在したが受け入れられなかった場合はINVALID_TOKENとなる。
// この区別は境界でのみ行い、検証器自体は失敗理由を区別しない。
func NewRequireAuthMiddleware(publicPaths []string) func(next http.Handler) http.Handler {
	public := make(map[string]struct{}, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || isPublicPath(public, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			if _, err := PrincipalFromContext(r.Context()); err != nil {
				WriteAuthenticationError(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractBearer はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダーがない、またはBearerスキームでない場合はfalseを返す。
func extractBearer(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", false
	}
	tokenString := authHeader[len(bearerPrefix):]
	if tokenString == "" {
		return "", false
	}
	return tokenString, true
}

// PrincipalFromContext はリクエストコンテキストから認証済み主体のユーザーIDを取得する。
// 認証ミドルウェアを通過した認証済みリクエストでのみ有効。
func PrincipalFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(principalContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("principal not found in context")
	}
	return userID, nil
}

// ContextWithPrincipal はコンテキストに認証済み主体を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, principalContextKey, userID)
}
