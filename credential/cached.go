package credential

import (
	"context"
	"sync"
	"time"
)

type cachedEntry struct {
	cred   Credential
	found  bool
	expiry time.Time
}

// CachedStore 在一个较慢的 Store （如数据库、 Vault ）前增加一层带过期时间的内存缓存。
// 不存在的 Access Key 也会被缓存，以免无效请求反复穿透到后端；后端出错时不缓存。
type CachedStore struct {
	inner     Store
	ttl       time.Duration
	mu        sync.RWMutex
	entries   map[string]cachedEntry
	stop      chan struct{}
	closeOnce sync.Once

	// now 用于测试中替换当前时间。
	now func() time.Time
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore 创建 CachedStore 。 ttl 须大于 0 ；会启动一个后台 goroutine 定期清理过期项，使用 Close() 停止。
func NewCachedStore(inner Store, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		panic("credential: ttl must be positive")
	}

	c := &CachedStore{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cachedEntry),
		stop:    make(chan struct{}),
		now:     time.Now,
	}

	go func() {
		ticker := time.NewTicker(ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.evict()
			case <-c.stop:
				return
			}
		}
	}()

	return c
}

// Lookup implements Store.Lookup.
func (c *CachedStore) Lookup(ctx context.Context, accessKey string) (Credential, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[accessKey]
	c.mu.RUnlock()

	if ok && c.now().Before(entry.expiry) {
		return entry.cred, entry.found, nil
	}

	cred, found, err := c.inner.Lookup(ctx, accessKey)
	if err != nil {
		return Credential{}, false, err
	}

	c.mu.Lock()
	c.entries[accessKey] = cachedEntry{
		cred:   cred,
		found:  found,
		expiry: c.now().Add(c.ttl),
	}
	c.mu.Unlock()

	return cred, found, nil
}

// Invalidate 删除一个缓存项，用于凭据被修改或删除后立即生效。
func (c *CachedStore) Invalidate(accessKey string) {
	c.mu.Lock()
	delete(c.entries, accessKey)
	c.mu.Unlock()
}

// Close 停止后台的清理过程。可重复调用。
func (c *CachedStore) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
	})
}

func (c *CachedStore) evict() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expiry) {
			delete(c.entries, k)
		}
	}
}
