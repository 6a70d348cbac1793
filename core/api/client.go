package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dnslin/essaymate-desktop/core/httpclient"
)

// Client 是面向批改后端的类型化请求门面。
// 调用方只会拿到 Envelope 或统一的错误类型，永远不直接接触 HTTP 状态码。
type Client struct {
	http           *httpclient.Client
	baseURL        string
	logger         httpclient.Logger
	onUnauthorized func()
}

// Option 自定义客户端配置。
type Option func(*Client)

// WithHTTPClient 注入自定义 httpclient.Client。
func WithHTTPClient(cli *httpclient.Client) Option {
	return func(c *Client) {
		if cli != nil {
			c.http = cli
		}
	}
}

// WithLogger 注入日志接口。
func WithLogger(logger httpclient.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
			if c.http != nil {
				c.http.Logger = logger
			}
		}
	}
}

// WithTokenSource 注册鉴权令牌来源，令牌在每次发送时实时读取。
func WithTokenSource(src httpclient.TokenSource) Option {
	return func(c *Client) {
		if c.http != nil {
			c.http.Use(httpclient.WithBearerToken(src))
		}
	}
}

// WithOnUnauthorized 注册 401 回调。回调在错误向上传播之前执行，
// 由 core/auth 挂接用于清理失效会话。
func WithOnUnauthorized(fn func()) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// NewClient 创建客户端，baseURL 为后端基础地址。
func NewClient(baseURL string, opts ...Option) *Client {
	cli := &Client{
		http:    httpclient.NewClient(),
		baseURL: baseURL,
		logger:  httpclient.NopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cli)
		}
	}
	if cli.http == nil {
		cli.http = httpclient.NewClient()
	}
	if cli.logger == nil {
		cli.logger = httpclient.NopLogger{}
	}
	cli.http.Logger = cli.logger
	return cli
}

// Get 发送 GET 请求并归一化响应。
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Envelope, error) {
	env, _, err := c.do(ctx, http.MethodGet, path, query, nil)
	return env, err
}

// Post 发送 JSON POST 请求并归一化响应。
func (c *Client) Post(ctx context.Context, path string, body any) (*Envelope, error) {
	env, _, err := c.do(ctx, http.MethodPost, path, nil, body)
	return env, err
}

// Patch 发送 JSON PATCH 请求并归一化响应。
func (c *Client) Patch(ctx context.Context, path string, body any) (*Envelope, error) {
	env, _, err := c.do(ctx, http.MethodPatch, path, nil, body)
	return env, err
}

// Delete 发送 DELETE 请求并归一化响应。
func (c *Client) Delete(ctx context.Context, path string, query url.Values) (*Envelope, error) {
	env, _, err := c.do(ctx, http.MethodDelete, path, query, nil)
	return env, err
}

// GetData 发送 GET 请求，业务失败转为 *BusinessError，成功载荷解码为 T。
func GetData[T any](ctx context.Context, c *Client, path string, query url.Values) (T, *Envelope, error) {
	env, err := c.Get(ctx, path, query)
	return decodeEnvelope[T](env, err)
}

// PostData 发送 JSON POST 请求，业务失败转为 *BusinessError，成功载荷解码为 T。
func PostData[T any](ctx context.Context, c *Client, path string, body any) (T, *Envelope, error) {
	env, err := c.Post(ctx, path, body)
	return decodeEnvelope[T](env, err)
}

func decodeEnvelope[T any](env *Envelope, err error) (T, *Envelope, error) {
	var zero T
	if err != nil {
		return zero, nil, err
	}
	if !env.Success {
		return zero, env, &BusinessError{Code: env.Code, Message: env.Message}
	}
	out, err := DecodeData[T](env)
	if err != nil {
		return zero, env, err
	}
	return out, env, nil
}

// do 执行一次请求，返回归一化后的 Envelope 与原始响应体。
// 原始响应体供列表提取等需要看到包装前形态的调用方使用。
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*Envelope, []byte, error) {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, nil, err
	}
	return c.send(req)
}

// send 发出已构造好的请求并归一化响应，SubmitEssay 等自建请求的入口也走这里。
func (c *Client) send(req *http.Request) (*Envelope, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &httpclient.NetworkError{Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		statusErr := &httpclient.StatusError{
			Status:  resp.StatusCode,
			Message: extractErrorMessage(raw),
		}
		if statusErr.Unauthorized() && c.onUnauthorized != nil {
			c.logger.Debugf("api: 收到 401，触发会话清理")
			c.onUnauthorized()
		}
		return nil, nil, statusErr
	}
	env, err := Normalize(raw)
	if err != nil {
		return nil, nil, err
	}
	return env, raw, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := joinURL(c.baseURL, path)
	if len(query) > 0 {
		if strings.Contains(u, "?") {
			u += "&" + query.Encode()
		} else {
			u += "?" + query.Encode()
		}
	}
	var reader io.Reader
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, &httpclient.ConfigError{Err: err}
		}
		payload = encoded
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, &httpclient.ConfigError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(payload)), nil
		}
	}
	return req, nil
}

// extractErrorMessage 从错误响应体中提取 message（回退 msg）。
func extractErrorMessage(raw []byte) string {
	var fields rawFields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	return messageField(fields)
}

func joinURL(base, path string) string {
	if base == "" {
		return path
	}
	base = strings.TrimSuffix(base, "/")
	if path == "" {
		return base
	}
	if strings.HasPrefix(path, "/") {
		return base + path
	}
	return base + "/" + path
}
