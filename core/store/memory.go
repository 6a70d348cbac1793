package store

import "sync"

// MemoryTokenStore 内存令牌存储，用于测试与一次性运行。
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
	has   bool
}

// NewMemoryTokenStore 创建内存存储。
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) SaveToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.has = token != ""
	return nil
}

func (s *MemoryTokenStore) LoadToken() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.has {
		return "", ErrTokenNotFound
	}
	return s.token, nil
}

func (s *MemoryTokenStore) ClearToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.has = false
	return nil
}
