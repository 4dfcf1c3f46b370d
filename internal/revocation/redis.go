package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// revocationKeyPrefix はRedisキーの名前空間プレフィックス。
const revocationKeyPrefix = "revoked"

// RedisStore はRedisをバックエンドとする失効トークン集合。
// エントリはトークン自身の残り有効期間をTTLとして保存されるため、
// 期限切れトークンのエントリはRedis側で自動削除される。
// 複数ゲートウェイインスタンス間で失効状態を共有する構成でも使用できる。
type RedisStore struct {
	client      *redis.Client
	fallbackTTL time.Duration
}

// NewRedisStore はRedisStoreを生成する。
// fallbackTTLはTTLが不明または非正の場合に使用する保持期間で、
// 通常はリフレッシュトークンの有効期間を渡す（それより長命なトークンは存在しない）。
func NewRedisStore(client *redis.Client, fallbackTTL time.Duration) *RedisStore {
	return &RedisStore{
		client:      client,
		fallbackTTL: fallbackTTL,
	}
}

func (s *RedisStore) key(tokenString string) string {
	return revocationKeyPrefix + ":" + tokenString
}

// Revoke はトークンを失効集合に追加する。冪等。
// ttlが非正の場合はfallbackTTLで保存する。
func (s *RedisStore) Revoke(ctx context.Context, tokenString string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.fallbackTTL
	}
	if err := s.client.Set(ctx, s.key(tokenString), "", ttl).Err(); err != nil {
		return fmt.Errorf("failed to store revocation entry: %w", err)
	}
	return nil
}

// IsRevoked はトークンが失効済みかどうかを返す。
func (s *RedisStore) IsRevoked(ctx context.Context, tokenString string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(tokenString)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation entry: %w", err)
	}
	return n > 0, nil
}
