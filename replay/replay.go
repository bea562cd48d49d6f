// Package replay 记录已使用过的请求签名，用于拒绝重放的请求。
package replay

import (
	"context"
	"sync"
	"time"

	"github.com/cmstar/go-errx"
	"github.com/redis/go-redis/v9"
)

// setNXer 是 RedisGuard 用到的 redis.Cmdable 的方法子集。
type setNXer interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// RedisGuard 基于 Redis 的 SETNX 记录签名，可在多个服务实例间共享。
type RedisGuard struct {
	client setNXer
	prefix string
}

// NewRedisGuard 创建 RedisGuard 。 prefix 会加在每个 key 前面，用于与其他数据区分，可为空。
func NewRedisGuard(client redis.Cmdable, prefix string) *RedisGuard {
	return &RedisGuard{client: client, prefix: prefix}
}

// NewRedisGuardFromURL 解析形如 redis://:password@host:6379/0 的地址，并创建 RedisGuard 。
// 返回的 *redis.Client 需由调用方关闭。
func NewRedisGuardFromURL(rawURL, prefix string) (*RedisGuard, *redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, nil, errx.Wrap("parse redis url", err)
	}

	client := redis.NewClient(opt)
	return NewRedisGuard(client, prefix), client, nil
}

// Seen 记录 key ，有效期为 ttl 。若 key 在有效期内已被记录过，返回 true 。
func (g *RedisGuard) Seen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	set, err := g.client.SetNX(ctx, g.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, errx.Wrap("redis setnx", err)
	}
	return !set, nil
}

// MemoryGuard 在进程内存中记录签名，仅适用于单实例部署。
// 过期的记录由后台 goroutine 定期清理，使用 Close() 停止。
type MemoryGuard struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	stop      chan struct{}
	closeOnce sync.Once

	// now 用于测试中替换当前时间。
	now func() time.Time
}

// memorySweepInterval 是 MemoryGuard 清理过期记录的间隔。
const memorySweepInterval = time.Minute

// NewMemoryGuard 创建 MemoryGuard ，并启动清理过期记录的 goroutine 。
func NewMemoryGuard() *MemoryGuard {
	g := &MemoryGuard{
		entries: make(map[string]time.Time),
		stop:    make(chan struct{}),
		now:     time.Now,
	}

	go func() {
		ticker := time.NewTicker(memorySweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.sweep()
			case <-g.stop:
				return
			}
		}
	}()

	return g
}

// Close 停止后台的清理过程。可重复调用。
func (g *MemoryGuard) Close() {
	g.closeOnce.Do(func() {
		close(g.stop)
	})
}

// Seen 记录 key ，有效期为 ttl 。若 key 在有效期内已被记录过，返回 true 。
func (g *MemoryGuard) Seen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if expiry, ok := g.entries[key]; ok && now.Before(expiry) {
		return true, nil
	}
	g.entries[key] = now.Add(ttl)
	return false, nil
}

func (g *MemoryGuard) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for k, expiry := range g.entries {
		if !now.Before(expiry) {
			delete(g.entries, k)
		}
	}
}

// Len 返回当前记录的数量。
func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
