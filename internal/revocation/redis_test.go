package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, 7*24*time.Hour), mr
}

func TestRedisStore_RevokeAndCheck(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	revoked, err := s.IsRevoked(ctx, "token-a")
	if err != nil {
		t.Fatalf("IsRevoked error: %v", err)
	}
	if revoked {
		t.Error("token-a should not be revoked before Revoke")
	}

	if err := s.Revoke(ctx, "token-a", time.Hour); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}

	revoked, err = s.IsRevoked(ctx, "token-a")
	if err != nil {
		t.Fatalf("IsRevoked error: %v", err)
	}
	if !revoked {
		t.Error("token-a should be revoked after Revoke")
	}
}

func TestRedisStore_EntryExpiresAtTokenExpiry(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	// トークンの残り有効期間をTTLとして保存する
	if err := s.Revoke(ctx, "short-lived", 2*time.Second); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}

	revoked, err := s.IsRevoked(ctx, "short-lived")
	if err != nil {
		t.Fatalf("IsRevoked error: %v", err)
	}
	if !revoked {
		t.Fatal("short-lived should be revoked immediately after Revoke")
	}

	// TTL経過後はエントリが自動削除される（トークン自体も期限切れなので安全）
	mr.FastForward(3 * time.Second)

	revoked, err = s.IsRevoked(ctx, "short-lived")
	if err != nil {
		t.Fatalf("IsRevoked error: %v", err)
	}
	if revoked {
		t.Error("entry should be evicted after its TTL")
	}
}

func TestRedisStore_FallbackTTLForUnknownLifetime(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	if err := s.Revoke(ctx, "token-x", 0); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}

	ttl := mr.TTL("revoked:token-x")
	if ttl != 7*24*time.Hour {
		t.Errorf("TTL = %v, want %v", ttl, 7*24*time.Hour)
	}
}

func TestRedisStore_RevokeIsIdempotent(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Revoke(ctx, "token-a", time.Hour); err != nil {
			t.Fatalf("Revoke error: %v", err)
		}
	}

	revoked, err := s.IsRevoked(ctx, "token-a")
	if err != nil {
		t.Fatalf("IsRevoked error: %v", err)
	}
	if !revoked {
		t.Error("token-a should be revoked")
	}
}
