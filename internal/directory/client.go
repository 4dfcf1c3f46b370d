// Package directory はuser-svc（ユーザーディレクトリ）への外部APIクライアントを提供する。
// 資格情報の検証・アカウント作成・プロファイル取得を呼び出す。
// ユーザーデータの所有者はuser-svcであり、ゲートウェイは保持しない。
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/authgate/internal/model"
)

// StatusError はuser-svcが2xx以外を返した場合のエラー。
// 呼び出し元がステータスコードに応じたマッピングを行えるようにする。
type StatusError struct {
	Code int
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("user directory returned status %d", e.Code)
}

// loginResponse はuser-svcのログインAPIが返す内部トークンのボディ。
type loginResponse struct {
	Token string `json:"token"`
}

// Client はuser-svcのHTTP APIクライアント。
type Client struct {
	httpClient *http.Client
	baseURL    string // テスト用にエンドポイントを差し替え可能
	logger     *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// Login は資格情報をuser-svcに委譲して検証し、user-svc内部トークンを返す。
// 資格情報が不正な場合やuser-svcが失敗を返した場合はエラーを返す。
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}

	var result loginResponse
	if err := c.postJSON(ctx, "/api/users/login", body, &result); err != nil {
		return "", err
	}

	if result.Token == "" {
		return "", fmt.Errorf("login response contained no token")
	}

	return result.Token, nil
}

// Register はアカウント作成をuser-svcに委譲し、作成されたユーザーを返す。
// 重複メールアドレス等はStatusErrorとして報告される（409など）。
func (c *Client) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	var user model.User
	if err := c.postJSON(ctx, "/api/users/register", req, &user); err != nil {
		return nil, err
	}

	if user.ID == "" {
		return nil, fmt.Errorf("register response contained no user id")
	}

	return &user, nil
}

// User はIDを指定してユーザープロファイルを取得する。
func (c *Client) User(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	if err := c.getJSON(ctx, "/api/users/"+userID, "", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Profile はuser-svc内部トークンを使って自身のプロファイルを取得する。
func (c *Client) Profile(ctx context.Context, directoryToken string) (*model.User, error) {
	var user model.User
	if err := c.getJSON(ctx, "/api/users/profile", directoryToken, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// postJSON はJSONボディをPOSTし、レスポンスをoutにデコードする。
func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

// getJSON は指定パスをGETし、レスポンスをoutにデコードする。
// bearerが空でない場合はAuthorizationヘッダーを付与する。
func (c *Client) getJSON(ctx context.Context, path, bearer string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	return c.do(req, out)
}

// do はリクエストを実行し、2xxの場合のみボディをoutにデコードする。
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("user directory request failed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("user directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// エラーボディの詳細はログのみに残し、呼び出し元にはステータスだけ伝える
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn("user directory returned error status",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return &StatusError{Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode user directory response: %w", err)
	}

	return nil
}
