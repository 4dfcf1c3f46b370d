// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AuthRecorder は認証フローからのメトリクス記録インターフェース。
// 認証サービスおよびミドルウェアから利用する。
type AuthRecorder interface {
	RecordAuthAttempt(operation, outcome string)
	RecordTokenIssued(kind string)
	RecordRevocation()
}

// ProxyRecorder は転送プロキシからのメトリクス記録インターフェース。
type ProxyRecorder interface {
	RecordProxyResponse(upstream string, statusCode int)
}

// RequestRecorder はHTTPリクエスト処理からのメトリクス記録インターフェース。
type RequestRecorder interface {
	ObserveRequestDuration(method string, statusCode int, seconds float64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authAttempts    *prometheus.CounterVec
	tokensIssued    *prometheus.CounterVec
	revocations     prometheus.Counter
	proxyResponse   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_auth_attempts_total",
			Help: "認証操作の試行数（操作種別・結果別）",
		}, []string{"operation", "outcome"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_tokens_issued_total",
			Help: "発行されたトークンの合計数（種別別）",
		}, []string{"type"}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_revocations_total",
			Help: "ブラックリストに登録されたトークンの合計数",
		}),
		proxyResponse: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_proxy_responses_total",
			Help: "下流サービスへの転送レスポンス数（サービス・ステータス別）",
		}, []string{"upstream", "status_code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authgate_request_duration_seconds",
			Help:    "リクエスト処理時間（メソッド・ステータス別）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status_code"}),
	}

	reg.MustRegister(
		c.authAttempts,
		c.tokensIssued,
		c.revocations,
		c.proxyResponse,
		c.requestDuration,
	)

	return c
}

// RecordAuthAttempt は認証操作の試行を記録する。
func (c *Collector) RecordAuthAttempt(operation, outcome string) {
	c.authAttempts.WithLabelValues(operation, outcome).Inc()
}

// RecordTokenIssued はトークン発行を記録する。
func (c *Collector) RecordTokenIssued(kind string) {
	c.tokensIssued.WithLabelValues(kind).Inc()
}

// RecordRevocation はトークン失効を記録する。
func (c *Collector) RecordRevocation() {
	c.revocations.Inc()
}

// RecordProxyResponse は下流サービスへの転送レスポンスを記録する。
func (c *Collector) RecordProxyResponse(upstream string, statusCode int) {
	c.proxyResponse.WithLabelValues(upstream, strconv.Itoa(statusCode)).Inc()
}

// ObserveRequestDuration はリクエスト処理時間を記録する。
// パスはラベルに含めない（IDを含むパスでカーディナリティが爆発するため）。
func (c *Collector) ObserveRequestDuration(method string, statusCode int, seconds float64) {
	c.requestDuration.WithLabelValues(method, strconv.Itoa(statusCode)).Observe(seconds)
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
