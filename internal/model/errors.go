package model

import "time"

// 定義済みエラーコード
const (
	ErrCodeMissingToken     = "MISSING_TOKEN"
	ErrCodeInvalidToken     = "INVALID_TOKEN"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeBadGateway       = "BAD_GATEWAY"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// ErrorResponse は全エンドポイント共通のエラーレスポンス。
// フィールド構成はクライアント互換性のため変更しないこと。
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// NewErrorResponse はErrorResponseを生成する。timestampには現在時刻が設定される。
func NewErrorResponse(code, message, path string, status int) *ErrorResponse {
	return &ErrorResponse{
		Error:     code,
		Message:   message,
		Path:      path,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
}
