package storage

import "sync"

// MemoryStorage はメモリ上のClientStorage実装。
// テストおよびCookieを使えないクライアント向けに使用する。
type MemoryStorage struct {
	mu       sync.Mutex
	token    string
	redirect string
}

// NewMemoryStorage はMemoryStorageを生成する。
func NewMemoryStorage(token, pendingRedirect string) *MemoryStorage {
	s := &MemoryStorage{token: token}
	if IsLocalPath(pendingRedirect) {
		s.redirect = pendingRedirect
	}
	return s
}

func (s *MemoryStorage) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *MemoryStorage) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *MemoryStorage) ClearToken() {
	s.SetToken("")
}

func (s *MemoryStorage) PendingRedirect() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redirect
}

// SetPendingRedirect はサイト内パスの場合のみ保存する。
func (s *MemoryStorage) SetPendingRedirect(path string) {
	if !IsLocalPath(path) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirect = path
}

func (s *MemoryStorage) ClearPendingRedirect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirect = ""
}

// compile-time interface check
var _ ClientStorage = (*MemoryStorage)(nil)
