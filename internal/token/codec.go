// Package token は自己完結型の署名付きトークンの発行と検証を提供する。
// HMAC-SHA256で署名したコンパクト形式のトークンを扱う。
// I/Oや共有可変状態を持たず、すべてのメソッドは同期なしで並行呼び出し可能。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minSecretLength は署名シークレットの最小バイト長。
// HMAC-SHA256の安全性を確保するため、ハッシュ出力長未満のシークレットは拒否する。
const minSecretLength = 32

// ErrInvalidToken は検証失敗を表す唯一のエラー。
// 構造不正・署名不一致・期限切れはすべてこのエラーに集約され、
// 呼び出し側は失敗理由を区別できない（区別させないことが契約）。
var ErrInvalidToken = errors.New("invalid token")

// Claims は検証済みトークンのペイロード。
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec はトークンの発行と検証を行う。
// シークレットは起動時に1回設定され、以後イミュータブルとして扱う。
type Codec struct {
	secret []byte
}

// NewCodec はCodecを生成する。
// シークレットが32バイト未満の場合はエラーを返す。
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes, got %d", minSecretLength, len(secret))
	}
	return &Codec{secret: secret}, nil
}

// Issue はsubjectとlifetimeから署名付きトークン文字列を生成する。
// ペイロードは {sub, iat, exp} のみ。正常な入力に対して失敗しない。
func (c *Codec) Issue(subject string, lifetime time.Duration) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
	})

	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークン文字列の署名と有効期限を検証し、Claimsを返す。
// 失敗はすべてErrInvalidTokenとして報告される。
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	claims := &jwt.RegisteredClaims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	// subjectのないトークンは主体を特定できないため無効とする
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	result := &Claims{Subject: claims.Subject}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}

	return result, nil
}
