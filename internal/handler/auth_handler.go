// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/authgate/internal/auth"
	"github.com/hitoshi/authgate/internal/middleware"
	"github.com/hitoshi/authgate/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*model.AuthResponse, error)
	Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*model.AuthResponse, error)
	Logout(ctx context.Context, accessToken string) (*model.LogoutResponse, error)
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// Login は資格情報を検証してトークンペアを発行する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, model.ErrCodeValidationFailed,
			"Request body must be valid JSON")
		return
	}
	if req.Email == "" || req.Password == "" {
		middleware.WriteError(w, r, http.StatusBadRequest, model.ErrCodeValidationFailed,
			"Email and password are required")
		return
	}

	resp, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// ディレクトリ側の失敗理由は開示せず、一律に401を返す
		middleware.WriteError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized,
			"Invalid email or password")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Register はアカウントを作成してトークンペアを発行する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, model.ErrCodeValidationFailed,
			"Request body must be valid JSON")
		return
	}
	if req.Email == "" || req.Password == "" {
		middleware.WriteError(w, r, http.StatusBadRequest, model.ErrCodeValidationFailed,
			"Email and password are required")
		return
	}

	resp, err := h.service.Register(r.Context(), &req)
	if err != nil {
		// user-svcの4xxはそのまま中継する（409: 重複、400: 検証エラー等）
		if code := auth.StatusErrorCode(err); code >= 400 && code < 500 {
			errCode := model.ErrCodeValidationFailed
			if code == http.StatusConflict {
				errCode = model.ErrCodeConflict
			}
			middleware.WriteError(w, r, code, errCode, "Registration was rejected")
			return
		}

		slog.Error("registration failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w, r)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Refresh はリフレッシュトークンから新しいアクセストークンを発行する。
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		middleware.WriteError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized,
			"A refresh token is required")
		return
	}

	resp, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		middleware.WriteError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized,
			"Invalid or expired refresh token")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Logout はAuthorizationヘッダーのアクセストークンを失効させる。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		middleware.WriteAuthenticationError(w, r)
		return
	}
	accessToken := strings.TrimPrefix(authHeader, "Bearer ")

	resp, err := h.service.Logout(r.Context(), accessToken)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			// 無効なトークンはログアウトできない（検証が先）
			middleware.WriteAuthenticationError(w, r)
			return
		}
		slog.Error("logout failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w, r)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
