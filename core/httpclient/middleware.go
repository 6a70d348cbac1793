package httpclient

import "net/http"

// Middleware 是请求预处理钩子，用于注入鉴权头、UA、Content-Type 等。
type Middleware func(req *http.Request) error

// PrepareChain 代表按顺序执行的中间件集合。
type PrepareChain []Middleware

// Apply 依次执行链路中的中间件，遇到错误立即返回。
func (c PrepareChain) Apply(req *http.Request) error {
	for _, mw := range c {
		if mw == nil {
			continue
		}
		if err := mw(req); err != nil {
			return err
		}
	}
	return nil
}

// WithHeader 设置请求头。
func WithHeader(key, value string) Middleware {
	return func(req *http.Request) error {
		req.Header.Set(key, value)
		return nil
	}
}

// WithUserAgent 设置 User-Agent。
func WithUserAgent(ua string) Middleware {
	return WithHeader("User-Agent", ua)
}

// TokenSource 提供当前鉴权令牌。
// 中间件在每次发送时实时读取，保证登录/登出交错执行后
// 后续请求携带的始终是最新令牌，而不是构造时捕获的快照。
type TokenSource interface {
	Token() string
}

// TokenSourceFunc 以函数形式实现 TokenSource。
type TokenSourceFunc func() string

// Token 实现 TokenSource。
func (f TokenSourceFunc) Token() string {
	return f()
}

// WithBearerToken 注入 Authorization 头。令牌为空时不改动请求。
func WithBearerToken(src TokenSource) Middleware {
	return func(req *http.Request) error {
		if src == nil {
			return nil
		}
		if token := src.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return nil
	}
}
