package httpclient

import (
	"errors"
	"net/http"
	"time"
)

// RetryPolicy 定义重试策略。
type RetryPolicy interface {
	ShouldRetry(req *http.Request, resp *http.Response, err error, attempt int) (bool, time.Duration)
}

// RetryConfig 配置指数退避重试。
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Logger     Logger
}

// DefaultRetryConfig 返回默认重试配置。
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   2 * time.Second,
	}
}

// ExponentialBackoffRetry 实现指数退避重试。
// 只对网络错误和 5xx 重试；4xx 与业务失败交由上层处理。
type ExponentialBackoffRetry struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     Logger
}

// NewExponentialBackoffRetry 创建重试策略。
func NewExponentialBackoffRetry(cfg RetryConfig) *ExponentialBackoffRetry {
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	return &ExponentialBackoffRetry{
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		logger:     logger,
	}
}

// ShouldRetry 根据错误类型、状态码决定是否重试。
func (r *ExponentialBackoffRetry) ShouldRetry(req *http.Request, resp *http.Response, err error, attempt int) (bool, time.Duration) {
	if r == nil {
		return false, 0
	}
	if attempt >= r.maxRetries {
		return false, 0
	}
	delay := r.backoff(attempt)

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		r.logger.Debugf("网络错误，第 %d 次重试", attempt+1)
		return true, delay
	}
	if err != nil {
		return false, 0
	}
	if resp != nil && resp.StatusCode >= http.StatusInternalServerError {
		r.logger.Debugf("服务端错误(status=%d)，第 %d 次重试", resp.StatusCode, attempt+1)
		return true, delay
	}
	return false, 0
}

func (r *ExponentialBackoffRetry) backoff(attempt int) time.Duration {
	base := r.baseDelay
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	max := r.maxDelay
	if max <= 0 {
		max = 2 * time.Second
	}
	delay := base << attempt
	if delay > max {
		delay = max
	}
	return delay
}
