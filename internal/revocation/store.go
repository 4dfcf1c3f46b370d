// Package revocation は失効済みトークンの集合（ブラックリスト）を提供する。
//
// ログアウト時にトークン文字列そのものを登録し、以降の検証を失敗させる。
// 読み取りは認証付きリクエストごとに発生し、書き込みはログアウト時のみ発生する。
package revocation

import (
	"context"
	"time"
)

// Store は失効済みトークン集合のインターフェース。
// Revokeは冪等であること。ttlはトークン自身の残り有効期間で、
// バックエンドがエントリの自動削除に利用できる（メモリ実装は無視する）。
type Store interface {
	Revoke(ctx context.Context, tokenString string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenString string) (bool, error)
}
