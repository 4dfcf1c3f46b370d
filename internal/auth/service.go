// Package auth はログイン・登録・リフレッシュ・ログアウトの認証フローを提供する。
// 資格情報の検証とアカウント管理はuser-svcに委譲し、
// ゲートウェイ自身のトークンペアの発行と失効のみを担当する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/authgate/internal/directory"
	"github.com/hitoshi/authgate/internal/metrics"
	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/revocation"
	"github.com/hitoshi/authgate/internal/session"
)

// ErrUnauthorized は資格情報またはトークンが受け入れられなかったことを表す。
// user-svc側の失敗理由（ネットワークエラー、非2xx等）はクライアントに開示しない。
var ErrUnauthorized = errors.New("unauthorized")

// ErrDirectoryUnavailable はuser-svcの呼び出しが失敗したことを表す。
// 登録フローでは500として報告される。
var ErrDirectoryUnavailable = errors.New("user directory unavailable")

// tokenTypeBearer はAuthResponseのtokenTypeフィールドの固定値。
const tokenTypeBearer = "Bearer"

// Directory はuser-svcへの呼び出しに必要なインターフェース。
// directory.Clientの部分集合として定義する。
type Directory interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error)
	User(ctx context.Context, userID string) (*model.User, error)
	Profile(ctx context.Context, directoryToken string) (*model.User, error)
}

// Service は認証フローのオーケストレーションを行う。
type Service struct {
	directory Directory
	issuer    *session.Issuer
	store     revocation.Store
	metrics   metrics.AuthRecorder
}

// NewService はServiceを生成する。
func NewService(dir Directory, issuer *session.Issuer, store revocation.Store, rec metrics.AuthRecorder) *Service {
	return &Service{
		directory: dir,
		issuer:    issuer,
		store:     store,
		metrics:   rec,
	}
}

// Login は資格情報をuser-svcで検証し、トークンペアを発行する。
//
// user-svcのログインAPIは共有シークレットで署名された内部トークンを返す。
// そのトークンを検証して主体IDを取り出し、プロファイル取得を試みる。
// プロファイル取得に失敗してもログイン自体は成功させ、IDのみの最小プロファイルを返す。
// それ以外の失敗はすべてErrUnauthorizedに集約される。
func (s *Service) Login(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	dirToken, err := s.directory.Login(ctx, email, password)
	if err != nil {
		slog.Warn("login rejected by user directory", slog.String("error", err.Error()))
		s.metrics.RecordAuthAttempt("login", "failure")
		return nil, ErrUnauthorized
	}

	// user-svc内部トークンから主体IDを取り出す（共有シークレットで検証）
	claims, err := s.issuer.Verify(ctx, dirToken)
	if err != nil {
		slog.Warn("failed to verify directory token", slog.String("error", err.Error()))
		s.metrics.RecordAuthAttempt("login", "failure")
		return nil, ErrUnauthorized
	}
	userID := claims.Subject

	user, err := s.directory.Profile(ctx, dirToken)
	if err != nil {
		slog.Warn("failed to fetch user profile, falling back to minimal principal",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		user, err = minimalUser(userID)
		if err != nil {
			s.metrics.RecordAuthAttempt("login", "failure")
			return nil, ErrUnauthorized
		}
	}

	resp, err := s.buildAuthResponse(userID, user)
	if err != nil {
		s.metrics.RecordAuthAttempt("login", "failure")
		return nil, err
	}

	slog.Info("user logged in", slog.String("user_id", userID))
	s.metrics.RecordAuthAttempt("login", "success")
	return resp, nil
}

// Register はアカウント作成をuser-svcに委譲し、トークンペアを発行する。
//
// user-svcが4xxを返した場合（重複メール等）はそのステータスを
// directory.StatusErrorのまま呼び出し元に伝える。
// それ以外の失敗はErrDirectoryUnavailableとして報告される。
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	user, err := s.directory.Register(ctx, req)
	if err != nil {
		s.metrics.RecordAuthAttempt("register", "failure")

		var statusErr *directory.StatusError
		if errors.As(err, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500 {
			return nil, err
		}
		slog.Error("registration failed", slog.String("error", err.Error()))
		return nil, ErrDirectoryUnavailable
	}

	resp, err := s.buildAuthResponse(user.ID, user)
	if err != nil {
		s.metrics.RecordAuthAttempt("register", "failure")
		return nil, err
	}

	slog.Info("user registered", slog.String("user_id", user.ID))
	s.metrics.RecordAuthAttempt("register", "success")
	return resp, nil
}

// Refresh はリフレッシュトークンを検証し、新しいアクセストークンを発行する。
// レスポンスには提示されたリフレッシュトークンがそのまま含まれる（ローテーションなし）。
// プロファイル取得に失敗した場合はIDのみの最小プロファイルを返す。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.AuthResponse, error) {
	userID, accessToken, err := s.issuer.Refresh(ctx, refreshToken)
	if err != nil {
		s.metrics.RecordAuthAttempt("refresh", "failure")
		return nil, ErrUnauthorized
	}
	s.metrics.RecordTokenIssued("access")

	user, err := s.directory.User(ctx, userID)
	if err != nil {
		slog.Warn("failed to fetch user profile on refresh, falling back to minimal principal",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		user, err = minimalUser(userID)
		if err != nil {
			s.metrics.RecordAuthAttempt("refresh", "failure")
			return nil, ErrUnauthorized
		}
	}

	s.metrics.RecordAuthAttempt("refresh", "success")
	return &model.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int(s.issuer.AccessTTL().Seconds()),
		User:         user,
	}, nil
}

// Logout はアクセストークンを失効させる。
// 検証が先に行われるため、既に無効なトークンはログアウトできずErrUnauthorizedとなる。
// 失効エントリのTTLにはトークンの残り有効期間を使用する。
func (s *Service) Logout(ctx context.Context, accessToken string) (*model.LogoutResponse, error) {
	claims, err := s.issuer.Verify(ctx, accessToken)
	if err != nil {
		s.metrics.RecordAuthAttempt("logout", "failure")
		return nil, ErrUnauthorized
	}

	ttl := time.Until(claims.ExpiresAt)
	if err := s.store.Revoke(ctx, accessToken, ttl); err != nil {
		slog.Error("failed to revoke token", slog.String("error", err.Error()))
		s.metrics.RecordAuthAttempt("logout", "failure")
		return nil, fmt.Errorf("failed to revoke token: %w", err)
	}

	slog.Info("user logged out", slog.String("user_id", claims.Subject))
	s.metrics.RecordAuthAttempt("logout", "success")
	s.metrics.RecordRevocation()
	return &model.LogoutResponse{Message: "Logout successful"}, nil
}

// buildAuthResponse はトークンペアを発行してAuthResponseを組み立てる。
func (s *Service) buildAuthResponse(userID string, user *model.User) (*model.AuthResponse, error) {
	accessToken, refreshToken, err := s.issuer.IssuePair(userID)
	if err != nil {
		slog.Error("failed to issue token pair", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to issue token pair: %w", err)
	}
	s.metrics.RecordTokenIssued("access")
	s.metrics.RecordTokenIssued("refresh")

	return &model.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int(s.issuer.AccessTTL().Seconds()),
		User:         user,
	}, nil
}

// minimalUser はプロファイル取得に失敗した場合のIDのみのユーザーを生成する。
// 主体IDがUUID形式でない場合はエラーを返す。
func minimalUser(userID string) (*model.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("subject is not a valid user id: %w", err)
	}
	return &model.User{ID: userID}, nil
}

// StatusErrorCode はerrがdirectory.StatusErrorの場合にそのステータスコードを返す。
// それ以外の場合は0を返す。ハンドラーのエラーマッピング用。
func StatusErrorCode(err error) int {
	var statusErr *directory.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	return 0
}
