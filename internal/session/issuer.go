// Package session はアクセス/リフレッシュトークンペアの発行と
// リフレッシュ交換を提供する。
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/authgate/internal/revocation"
	"github.com/hitoshi/authgate/internal/token"
)

// Codec はトークンの発行と検証に必要なインターフェース。
// token.Codecの部分集合として定義する。
type Codec interface {
	Issue(subject string, lifetime time.Duration) (string, error)
	Verify(tokenString string) (*token.Claims, error)
}

// Config はIssuerの設定。
type Config struct {
	AccessTTL  time.Duration // アクセストークンの有効期間（短命、例: 1時間）
	RefreshTTL time.Duration // リフレッシュトークンの有効期間（長命、例: 7日）
}

// Issuer はトークンペアの発行とリフレッシュ交換を行う。
type Issuer struct {
	codec  Codec
	store  revocation.Store
	config Config
}

// NewIssuer はIssuerを生成する。
func NewIssuer(codec Codec, store revocation.Store, config Config) *Issuer {
	return &Issuer{
		codec:  codec,
		store:  store,
		config: config,
	}
}

// AccessTTL はアクセストークンの有効期間を返す。
// レスポンスのexpiresIn算出に使用する。
func (i *Issuer) AccessTTL() time.Duration {
	return i.config.AccessTTL
}

// IssueAccessToken はuserIDを主体とするアクセストークンを発行する。
func (i *Issuer) IssueAccessToken(userID string) (string, error) {
	return i.codec.Issue(userID, i.config.AccessTTL)
}

// IssueRefreshToken はuserIDを主体とするリフレッシュトークンを発行する。
func (i *Issuer) IssueRefreshToken(userID string) (string, error) {
	return i.codec.Issue(userID, i.config.RefreshTTL)
}

// IssuePair はアクセス/リフレッシュトークンのペアを発行する。
func (i *Issuer) IssuePair(userID string) (accessToken, refreshToken string, err error) {
	accessToken, err = i.IssueAccessToken(userID)
	if err != nil {
		return "", "", fmt.Errorf("failed to issue access token: %w", err)
	}
	refreshToken, err = i.IssueRefreshToken(userID)
	if err != nil {
		return "", "", fmt.Errorf("failed to issue refresh token: %w", err)
	}
	return accessToken, refreshToken, nil
}

// Verify はトークンの署名・有効期限・失効状態をまとめて検証する。
// 失効済みトークンも署名不正と同じくtoken.ErrInvalidTokenとして報告される。
func (i *Issuer) Verify(ctx context.Context, tokenString string) (*token.Claims, error) {
	claims, err := i.codec.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	revoked, err := i.store.IsRevoked(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, token.ErrInvalidToken
	}

	return claims, nil
}

// Refresh はリフレッシュトークンを検証し、同一主体の新しいアクセストークンを発行する。
// 提示されたリフレッシュトークンはローテーションも失効もされず、
// 自身の有効期限まで再利用できる。
func (i *Issuer) Refresh(ctx context.Context, refreshToken string) (userID, accessToken string, err error) {
	claims, err := i.Verify(ctx, refreshToken)
	if err != nil {
		return "", "", err
	}

	accessToken, err = i.IssueAccessToken(claims.Subject)
	if err != nil {
		return "", "", fmt.Errorf("failed to issue access token: %w", err)
	}

	return claims.Subject, accessToken, nil
}
