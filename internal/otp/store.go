// Package otp はパスワード再設定用ワンタイムコードの発行と検証を提供する。
package otp

import (
	"context"
	"sync"
	"time"
)

// Store は有効期限付きのキー・バリューストア。
// 期限切れのキーは存在しないものとして扱う。
type Store interface {
	// Set はkeyにvalueをttlの有効期限付きで保存する。既存の値は上書きする。
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get はkeyの値を返す。存在しないか期限切れの場合はfalseを返す。
	Get(ctx context.Context, key string) (string, bool, error)
	// Delete はkeyを削除する。存在しなくてもエラーにしない。
	Delete(ctx context.Context, key string) error
	// IncrementAttempts はkeyの検証失敗回数を1増やし、増やした後の回数を返す。
	// 存在しないか期限切れの場合は0を返す。Setすると回数は0に戻る。
	IncrementAttempts(ctx context.Context, key string) (int, error)
}

type memoryItem struct {
	value     string
	expiresAt time.Time
	attempts  int
}

// MemoryStore はプロセス内メモリに保持するStoreの実装。
// 期限切れエントリはバックグラウンドで定期的に削除する。
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore はMemoryStoreを生成し、cleanupIntervalごとの掃除を開始する。
// cleanupIntervalが0以下の場合は掃除を行わない（Get時の期限判定のみ）。
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		items:  make(map[string]memoryItem),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go s.cleanupLoop(cleanupInterval)
	}
	return s
}

// Set はkeyにvalueを保存する。
func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = memoryItem{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

// Get はkeyの値を返す。
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok {
		return "", false, nil
	}
	if !s.now().Before(item.expiresAt) {
		delete(s.items, key)
		return "", false, nil
	}
	return item.value, true, nil
}

// Delete はkeyを削除する。
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// IncrementAttempts はkeyの検証失敗回数を増やす。
func (s *MemoryStore) IncrementAttempts(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok || !s.now().Before(item.expiresAt) {
		return 0, nil
	}
	item.attempts++
	s.items[key] = item
	return item.attempts, nil
}

// Len は保持しているエントリ数を返す。期限切れで未掃除のものも含む。
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Stop はバックグラウンドの掃除を停止する。複数回呼んでもよい。
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup は期限切れのエントリを削除する。
func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, item := range s.items {
		if !now.Before(item.expiresAt) {
			delete(s.items, key)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
