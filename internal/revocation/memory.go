package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore はプロセス内メモリ上の失効トークン集合。
// エントリの自動削除は行わず、登録されたトークンはプロセス終了まで保持される。
// トークンの有効期間が短い運用を前提としたデフォルトバックエンド。
// 無期限に増加する点が問題になる構成ではRedisStoreを使用すること。
type MemoryStore struct {
	mu      sync.RWMutex
	revoked map[string]struct{}
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		revoked: make(map[string]struct{}),
	}
}

// Revoke はトークンを失効集合に追加する。冪等。ttlは無視される。
func (s *MemoryStore) Revoke(_ context.Context, tokenString string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[tokenString] = struct{}{}
	return nil
}

// IsRevoked はトークンが失効済みかどうかを返す。
func (s *MemoryStore) IsRevoked(_ context.Context, tokenString string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[tokenString]
	return ok, nil
}

// Len は現在保持している失効エントリ数を返す。テストおよびメトリクス用。
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revoked)
}
