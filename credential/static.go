package credential

import (
	"context"
	"sync"
)

// StaticStore 是基于内存的 Store ，凭据通常来自配置文件。它是线程安全的。
type StaticStore struct {
	mu sync.RWMutex
	m  map[string]Credential
}

var _ Store = (*StaticStore)(nil)

// NewStaticStore 使用给定的凭据创建 StaticStore 。 AccessKey 重复时，后面的覆盖前面的。
func NewStaticStore(credentials ...Credential) *StaticStore {
	s := &StaticStore{
		m: make(map[string]Credential, len(credentials)),
	}
	for _, c := range credentials {
		s.m[c.AccessKey] = c
	}
	return s
}

// Lookup implements Store.Lookup.
func (s *StaticStore) Lookup(ctx context.Context, accessKey string) (Credential, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.m[accessKey]
	return c, ok, nil
}

// Put 添加或替换一个凭据。
func (s *StaticStore) Put(c Credential) {
	s.mu.Lock()
	s.m[c.AccessKey] = c
	s.mu.Unlock()
}

// Delete 删除一个凭据，不存在时什么也不做。
func (s *StaticStore) Delete(accessKey string) {
	s.mu.Lock()
	delete(s.m, accessKey)
	s.mu.Unlock()
}

// Len 返回凭据的数量。
func (s *StaticStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
