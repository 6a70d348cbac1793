package httpclient

import (
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// DefaultTimeout 默认请求超时时间，与移动端体验约定一致。
const DefaultTimeout = 10 * time.Second

// Logger 由外部注入，满足 core 层无输出原则。
type Logger interface {
	Debugf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger 默认空日志实现。
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Errorf(string, ...any) {}

// Client 为统一 HTTP 客户端封装，负责中间件、限流与重试。
// 响应体的解码与业务语义归一化由上层（core/api）负责。
type Client struct {
	HTTP    *http.Client
	Jar     http.CookieJar
	Prepare PrepareChain
	Retry   RetryPolicy
	Limiter RateLimiter
	Logger  Logger
}

// Option 配置客户端。
type Option func(*Client)

// WithHTTPClient 自定义 http.Client。
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.HTTP = httpClient
	}
}

// WithTimeout 设置整体请求超时。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if c.HTTP != nil && d > 0 {
			c.HTTP.Timeout = d
		}
	}
}

// WithCookieJar 设置 CookieJar（后端走 Set-Cookie 会话登录时需要）。
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) {
		c.Jar = jar
	}
}

// WithRetryPolicy 设置重试策略。
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.Retry = policy
	}
}

// WithRateLimiter 设置限流。
func WithRateLimiter(limiter RateLimiter) Option {
	return func(c *Client) {
		c.Limiter = limiter
	}
}

// WithLogger 注入日志。
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.Logger = logger
	}
}

// WithMiddlewares 设置请求中间件链。
func WithMiddlewares(mw ...Middleware) Option {
	return func(c *Client) {
		c.Prepare = append(c.Prepare, mw...)
	}
}

// NewClient 创建带默认超时、重试与 CookieJar 的客户端。
func NewClient(opts ...Option) *Client {
	// cookiejar.New(nil) 传入 nil 时不会返回错误，可以安全忽略
	jar, _ := cookiejar.New(nil)
	client := &Client{
		HTTP:    &http.Client{Jar: jar, Timeout: DefaultTimeout},
		Jar:     jar,
		Prepare: PrepareChain{},
		Logger:  NopLogger{},
	}
	client.Retry = NewExponentialBackoffRetry(DefaultRetryConfig())
	for _, opt := range opts {
		opt(client)
	}
	if client.HTTP == nil {
		client.HTTP = &http.Client{Timeout: DefaultTimeout}
	}
	if client.Logger == nil {
		client.Logger = NopLogger{}
	}
	if client.Jar == nil {
		client.Jar = client.HTTP.Jar
	}
	if client.HTTP.Jar == nil {
		client.HTTP.Jar = client.Jar
	}
	return client
}

// Use 添加中间件。
func (c *Client) Use(mw ...Middleware) {
	c.Prepare = append(c.Prepare, mw...)
}

// Do 发送请求，包含中间件、限流与重试，返回原始响应。
// 返回的错误只会是 *ConfigError 或 *NetworkError；
// 非 2xx 状态码不在这里判错，由上层读取响应体后归一化。
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, &ConfigError{Err: errors.New("httpclient: 请求为空")}
	}
	if c.HTTP == nil {
		return nil, &ConfigError{Err: errors.New("httpclient: http.Client 未配置")}
	}
	attempt := 0
	for {
		clonedReq, cloneErr := c.cloneRequest(req, attempt)
		if cloneErr != nil {
			return nil, cloneErr
		}
		resp, err := c.execute(clonedReq)
		if c.Retry == nil {
			return resp, err
		}
		retry, wait := c.Retry.ShouldRetry(clonedReq, resp, err, attempt)
		if !retry {
			return resp, err
		}
		// 重试前丢弃上一次的响应体，避免连接泄漏
		if resp != nil && resp.Body != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		attempt++
		if wait > 0 {
			time.Sleep(wait)
		}
	}
}

func (c *Client) execute(req *http.Request) (*http.Response, error) {
	if c.Prepare != nil {
		if err := c.Prepare.Apply(req); err != nil {
			return nil, &ConfigError{Err: err}
		}
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(req.Context(), req); err != nil {
			return nil, &ConfigError{Err: err}
		}
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	return resp, nil
}

func (c *Client) cloneRequest(req *http.Request, attempt int) (*http.Request, error) {
	cloned := req.Clone(req.Context())
	cloned.Header = req.Header.Clone()
	cloned.GetBody = req.GetBody
	cloned.ContentLength = req.ContentLength
	if req.Body != nil {
		if attempt == 0 {
			cloned.Body = req.Body
		} else {
			if req.GetBody == nil {
				return nil, &ConfigError{Err: errors.New("httpclient: 请求体不可重试")}
			}
			body, err := req.GetBody()
			if err != nil {
				return nil, &ConfigError{Err: err}
			}
			cloned.Body = body
		}
	}
	return cloned, nil
}
