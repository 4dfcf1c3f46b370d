package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/hitoshi/authgate/internal/middleware"
	"github.com/hitoshi/authgate/internal/model"
)

// ProxyRecorder はプロキシ応答を記録するメトリクスインターフェース。
type ProxyRecorder interface {
	RecordProxyResponse(upstream string, statusCode int)
}

// NewUpstreamProxy は指定した下流サービスへのリバースプロキシを生成する。
// 下流が応答しない場合は統一フォーマットの502を返す。
func NewUpstreamProxy(name string, target *url.URL, recorder ProxyRecorder, logger *slog.Logger) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)

	proxy.ModifyResponse = func(resp *http.Response) error {
		if recorder != nil {
			recorder.RecordProxyResponse(name, resp.StatusCode)
		}
		return nil
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("upstream request failed",
			slog.String("upstream", name),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		if recorder != nil {
			recorder.RecordProxyResponse(name, http.StatusBadGateway)
		}
		middleware.WriteError(w, r, http.StatusBadGateway, model.ErrCodeBadGateway,
			"The "+name+" service is currently unavailable")
	}

	return proxy
}

// ParseUpstreamURL は下流サービスのベースURLを検証付きでパースする。
func ParseUpstreamURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("upstream URL must include scheme and host: " + raw)
	}
	return u, nil
}
