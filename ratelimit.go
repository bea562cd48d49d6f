package awsapi

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

/*
当前文件提供按调用者限流的中间件。
*/

// RateLimitRejectFunc 在请求被限流时输出回执。不同协议的错误报文格式不同，由协议实现提供。
type RateLimitRejectFunc func(w http.ResponseWriter, r *http.Request)

// RateLimiter 为每个客户端 IP 维护一个令牌桶。
// 限流发生在签名校验之前，请求中的 Access Key 未经验证，不能作为调用者标识。
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*visitorLimiter
	rate     rate.Limit
	burst    int
	stop     chan struct{}
	stopOnce sync.Once

	// UserHostResolver 用于获取客户端 IP 。为 nil 时使用 RemoteAddr 。
	UserHostResolver ApiUserHostResolver

	// OnReject 输出被限流的请求的回执。为 nil 时输出 503 及纯文本的 RequestLimitExceeded 。
	OnReject RateLimitRejectFunc

	// Rejected 在每次拒绝请求时被调用，参数为调用者标识。可用于统计，可为 nil 。
	Rejected func(key string)
}

type visitorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter 创建一个 RateLimiter 。 requestsPerSec 为每个调用者每秒的请求数， burst 为令牌桶容量。
// 会启动一个后台 goroutine 定期清理长时间没有请求的调用者，使用 Close() 停止。
func NewRateLimiter(requestsPerSec float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*visitorLimiter),
		rate:     rate.Limit(requestsPerSec),
		burst:    burst,
		stop:     make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(3 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.cleanup(10 * time.Minute)
			case <-rl.stop:
				return
			}
		}
	}()

	return rl
}

// Close 停止后台的清理过程。可重复调用。
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() {
		close(rl.stop)
	})
}

// UpdateLimits 修改速率和容量。只对新出现的调用者生效，已有的令牌桶在过期重建后才使用新值。
func (rl *RateLimiter) UpdateLimits(requestsPerSec float64, burst int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.rate = rate.Limit(requestsPerSec)
	rl.burst = burst
}

// Allow 判断给定调用者的请求是否放行。
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	v, ok := rl.limiters[key]
	if !ok {
		v = &visitorLimiter{
			limiter: rate.NewLimiter(rl.rate, rl.burst),
		}
		rl.limiters[key] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()

	return v.limiter.Allow()
}

// Len 返回当前跟踪的调用者数量。
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) cleanup(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	for k, v := range rl.limiters {
		if v.lastSeen.Before(cutoff) {
			delete(rl.limiters, k)
		}
	}
}

// Middleware 返回限流的中间件，可通过 ApiEngine.Use() 添加。
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.visitorKey(r)
		if rl.Allow(key) {
			next.ServeHTTP(w, r)
			return
		}

		if rl.Rejected != nil {
			rl.Rejected(key)
		}

		if rl.OnReject != nil {
			rl.OnReject(w, r)
			return
		}

		w.Header().Set(HttpHeaderContentType, ContentTypePlainText)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(ErrorCodeRequestLimitExceeded))
	})
}

// visitorKey 返回限流使用的调用者标识，格式为“ip:{IP}”。
func (rl *RateLimiter) visitorKey(r *http.Request) string {
	if rl.UserHostResolver != nil {
		state := &ApiState{RawRequest: r}
		rl.UserHostResolver.FillUserHost(state)
		if state.UserHost != "" {
			return "ip:" + state.UserHost
		}
	}
	return "ip:" + trimHost(r.RemoteAddr)
}
