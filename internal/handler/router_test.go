package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/authgate/internal/auth"
	"github.com/hitoshi/authgate/internal/metrics"
	"github.com/hitoshi/authgate/internal/middleware"
	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/revocation"
	"github.com/hitoshi/authgate/internal/session"
	"github.com/hitoshi/authgate/internal/token"

	"golang.org/x/time/rate"
)

// --- モック定義 ---

type mockDirectory struct {
	LoginFn    func(ctx context.Context, email, password string) (string, error)
	RegisterFn func(ctx context.Context, req *model.RegisterRequest) (*model.User, error)
	UserFn     func(ctx context.Context, userID string) (*model.User, error)
	ProfileFn  func(ctx context.Context, directoryToken string) (*model.User, error)
}

func (m *mockDirectory) Login(ctx context.Context, email, password string) (string, error) {
	return m.LoginFn(ctx, email, password)
}

func (m *mockDirectory) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	return m.RegisterFn(ctx, req)
}

func (m *mockDirectory) User(ctx context.Context, userID string) (*model.User, error) {
	return m.UserFn(ctx, userID)
}

func (m *mockDirectory) Profile(ctx context.Context, directoryToken string) (*model.User, error) {
	return m.ProfileFn(ctx, directoryToken)
}

// --- テストセットアップ ---

const routerTestUserID = "3f8e9a40-0f3c-4d6b-9a2e-1c5d7b8e9f00"

var routerTestSecret = []byte("0123456789abcdef0123456789abcdef")

type routerEnv struct {
	handler  http.Handler
	issuer   *session.Issuer
	upstream *httptest.Server
}

// newRouterEnv は実物のトークン・失効・セッション層と
// モックディレクトリを組み合わせた完全なルーターを構築する。
func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()

	codec, err := token.NewCodec(routerTestSecret)
	if err != nil {
		t.Fatalf("failed to create codec: %v", err)
	}
	store := revocation.NewMemoryStore()
	issuer := session.NewIssuer(codec, store, session.Config{
		AccessTTL:  time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
	})

	dir := &mockDirectory{
		LoginFn: func(ctx context.Context, email, password string) (string, error) {
			if password != "correct-password" {
				return "", auth.ErrUnauthorized
			}
			// user-svcは共有シークレットで署名した内部トークンを返す
			return codec.Issue(routerTestUserID, time.Hour)
		},
		ProfileFn: func(ctx context.Context, directoryToken string) (*model.User, error) {
			return &model.User{ID: routerTestUserID, Email: "taro@example.com"}, nil
		},
		UserFn: func(ctx context.Context, userID string) (*model.User, error) {
			return &model.User{ID: userID, Email: "taro@example.com"}, nil
		},
		RegisterFn: func(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
			return &model.User{ID: routerTestUserID, Email: req.Email}, nil
		},
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	service := auth.NewService(dir, issuer, store, collector)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(100),
		GeneralBurst:    100,
		LoginRate:       rate.Limit(100),
		LoginBurst:      100,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(rl.Stop)

	// 下流サービス役。受け取ったパスをそのまま返す
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"echo": r.URL.Path})
	}))
	t.Cleanup(upstream.Close)

	upstreamURL, err := url.Parse(upstream.URL)
	if err != nil {
		t.Fatalf("failed to parse upstream URL: %v", err)
	}

	h := NewRouter(&RouterDeps{
		Verifier:           issuer,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		RateLimiter:        rl,
		Logger:             logger,
		RequestRecorder:    collector,
		AuthService:        service,
		MetricsHandler:     metrics.Handler(reg),
		UserProxy:          NewUpstreamProxy("user-svc", upstreamURL, collector, logger),
		ConceptProxy:       NewUpstreamProxy("concept-svc", upstreamURL, collector, logger),
	})

	return &routerEnv{handler: h, issuer: issuer, upstream: upstream}
}

func (env *routerEnv) do(t *testing.T, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	return w
}

// --- テスト ---

func TestRouter_LoginThenAccessThenLogoutLifecycle(t *testing.T) {
	env := newRouterEnv(t)

	// 1. ログインしてトークンペアを取得
	w := env.do(t, http.MethodPost, "/api/auth/login",
		`{"email":"taro@example.com","password":"correct-password"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login: status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var authResp model.AuthResponse
	if err := json.NewDecoder(w.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if authResp.User == nil || authResp.User.ID != routerTestUserID {
		t.Fatalf("user = %+v, want ID %q", authResp.User, routerTestUserID)
	}

	// 2. アクセストークンで保護ルートにアクセスできる
	w = env.do(t, http.MethodGet, "/api/concepts/42", "", authResp.AccessToken)
	if w.Code != http.StatusOK {
		t.Fatalf("proxied request: status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var echo map[string]string
	if err := json.NewDecoder(w.Body).Decode(&echo); err != nil {
		t.Fatalf("failed to decode proxied response: %v", err)
	}
	if echo["echo"] != "/api/concepts/42" {
		t.Errorf("proxied path = %q, want %q", echo["echo"], "/api/concepts/42")
	}

	// 3. ログアウトでトークンを失効させる
	w = env.do(t, http.MethodPost, "/api/auth/logout", "", authResp.AccessToken)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	// 4. 失効済みトークンは拒否される
	w = env.do(t, http.MethodGet, "/api/concepts/42", "", authResp.AccessToken)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	var errBody model.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errBody); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if errBody.Error != model.ErrCodeInvalidToken {
		t.Errorf("error = %q, want %q", errBody.Error, model.ErrCodeInvalidToken)
	}

	// 5. リフレッシュトークンは失効の影響を受けず、新しいアクセストークンと交換できる
	w = env.do(t, http.MethodPost, "/api/auth/refresh",
		`{"refreshToken":"`+authResp.RefreshToken+`"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestRouter_ProtectedRouteWithoutTokenReturnsMissingToken(t *testing.T) {
	env := newRouterEnv(t)

	w := env.do(t, http.MethodGet, "/api/concepts/42", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	var errBody model.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errBody); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if errBody.Error != model.ErrCodeMissingToken {
		t.Errorf("error = %q, want %q", errBody.Error, model.ErrCodeMissingToken)
	}
	if errBody.Path != "/api/concepts/42" {
		t.Errorf("path = %q, want %q", errBody.Path, "/api/concepts/42")
	}
}

func TestRouter_PublicPathsRequireNoToken(t *testing.T) {
	env := newRouterEnv(t)

	paths := []string{"/", "/health", "/api/health", "/api/users/health", "/actuator/prometheus"}
	for _, path := range paths {
		w := env.do(t, http.MethodGet, path, "", "")
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: status = %d, want %d", path, w.Code, http.StatusOK)
		}
	}
}

func TestRouter_HealthReturnsUp(t *testing.T) {
	env := newRouterEnv(t)

	w := env.do(t, http.MethodGet, "/health", "", "")
	var body healthResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Status != "UP" {
		t.Errorf("status = %q, want %q", body.Status, "UP")
	}
	if body.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestRouter_AuthRoutesAvailableOnBothPrefixes(t *testing.T) {
	env := newRouterEnv(t)

	for _, path := range []string{"/auth/login", "/api/auth/login"} {
		w := env.do(t, http.MethodPost, path,
			`{"email":"taro@example.com","password":"correct-password"}`, "")
		if w.Code != http.StatusOK {
			t.Errorf("POST %s: status = %d, want %d", path, w.Code, http.StatusOK)
		}
	}
}

func TestRouter_PreflightNeverRequiresToken(t *testing.T) {
	env := newRouterEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/concepts/42", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q, want %q", got, "http://localhost:3000")
	}
}

func TestRouter_UnavailableUpstreamReturns502(t *testing.T) {
	env := newRouterEnv(t)
	// 下流を先に落とす
	env.upstream.Close()

	accessToken, err := env.issuer.IssueAccessToken(routerTestUserID)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	w := env.do(t, http.MethodGet, "/api/concepts/42", "", accessToken)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
	var errBody model.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errBody); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if errBody.Error != model.ErrCodeBadGateway {
		t.Errorf("error = %q, want %q", errBody.Error, model.ErrCodeBadGateway)
	}
}

func TestRouter_UnmountedUpstreamReturns404(t *testing.T) {
	env := newRouterEnv(t)

	accessToken, err := env.issuer.IssueAccessToken(routerTestUserID)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	// GenAIProxyは構成していないため、chiの404になる
	w := env.do(t, http.MethodGet, "/api/genai/generate", "", accessToken)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRouter_RegisterReturns201(t *testing.T) {
	env := newRouterEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/register",
		`{"email":"taro@example.com","password":"secret","firstName":"Taro","lastName":"Yamada"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var authResp model.AuthResponse
	if err := json.NewDecoder(w.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if authResp.AccessToken == "" || authResp.RefreshToken == "" {
		t.Error("expected a full token pair in register response")
	}
}
