package httpclient

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// RateLimiter 在请求发出前按需阻塞。
type RateLimiter interface {
	Wait(ctx context.Context, req *http.Request) error
}

// TokenBucketLimiter 简化版令牌桶限流，所有请求共享一个桶。
// 主要用于限制上传等大请求的突发频率。
type TokenBucketLimiter struct {
	mu     sync.Mutex
	qps    float64
	burst  int
	tokens float64
	last   time.Time
}

// NewTokenBucketLimiter 创建限流器，qps<=0 表示不限流。
func NewTokenBucketLimiter(qps float64, burst int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		qps:    qps,
		burst:  burst,
		tokens: float64(burst),
		last:   time.Now(),
	}
}

// Wait 阻塞直到获得令牌或上下文取消。
func (l *TokenBucketLimiter) Wait(ctx context.Context, _ *http.Request) error {
	if l == nil || l.qps <= 0 {
		return nil
	}
	for {
		wait := l.reserve(time.Now())
		if wait <= 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *TokenBucketLimiter) reserve(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := now.Sub(l.last).Seconds()
	l.tokens += elapsed * l.qps
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}
	l.last = now
	if l.tokens >= 1 {
		l.tokens -= 1
		return 0
	}
	need := 1 - l.tokens
	return time.Duration(need / l.qps * float64(time.Second))
}
