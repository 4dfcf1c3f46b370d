package middleware

import (
	"net/http"
	"time"
)

// RequestRecorder はリクエスト処理時間の記録に必要なインターフェース。
// metrics.Collectorの部分集合として定義する。
type RequestRecorder interface {
	ObserveRequestDuration(method string, statusCode int, seconds float64)
}

// NewMetricsMiddleware はリクエスト処理時間をメトリクスとして記録する
// ミドルウェアを返す。
func NewMetricsMiddleware(recorder RequestRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			recorder.ObserveRequestDuration(r.Method, rec.statusCode, time.Since(start).Seconds())
		})
	}
}
