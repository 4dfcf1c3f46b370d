package handler

import (
	"net/http"
	"time"
)

// healthResponse はヘルスチェックのレスポンスボディ。
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthHandler はゲートウェイ自身のヘルスチェックハンドラー。
// 下流サービスの状態は含まない（各サービスが自身のヘルスエンドポイントを持つ）。
type HealthHandler struct{}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Health はゲートウェイの稼働状態を返す。
// GET /health, GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "UP",
		Timestamp: time.Now().UTC(),
	})
}
