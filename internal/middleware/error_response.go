package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/authgate/internal/model"
)

// WriteError は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべての認証失敗はJSONボディを伴う（ボディなしのステータスのみの応答は返さない）。
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(model.NewErrorResponse(code, message, r.URL.Path, statusCode))
}

// WriteAuthenticationError は保護対象パスへの未認証リクエストに対する401を書き込む。
// Authorizationヘッダーが完全に欠落していた場合のみMISSING_TOKEN、
// ヘッダーは存在したが受け入れられなかった場合はINVALID_TOKENとなる。
func WriteAuthenticationError(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		WriteError(w, r, http.StatusUnauthorized, model.ErrCodeMissingToken,
			"Authentication token is required")
		return
	}
	WriteError(w, r, http.StatusUnauthorized, model.ErrCodeInvalidToken,
		"Invalid or expired authentication token")
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusInternalServerError, model.ErrCodeInternal,
		"An internal error occurred")
}
