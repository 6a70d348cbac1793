package httpclient

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type flakyTransport struct {
	failures int
	inner    http.RoundTripper
	attempts int
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.attempts++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("模拟网络失败")
	}
	return f.inner.RoundTrip(req)
}

func jsonResponse(status int, body string) *http.Response {
	rec := httptest.NewRecorder()
	rec.Header().Set("Content-Type", "application/json")
	rec.WriteHeader(status)
	rec.Body.WriteString(body)
	return rec.Result()
}

func TestDoSuccess(t *testing.T) {
	client := NewClient(WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"success":true}`), nil
		}),
	}))
	req, _ := http.NewRequest(http.MethodGet, "http://mock/success", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("预期成功，得到错误: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("状态码不符: %d", resp.StatusCode)
	}
}

func TestNetworkErrorRetry(t *testing.T) {
	transport := &flakyTransport{
		failures: 1,
		inner: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{}`), nil
		}),
	}
	policy := NewExponentialBackoffRetry(RetryConfig{
		MaxRetries: 1,
		BaseDelay:  1 * time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	})
	client := NewClient(
		WithHTTPClient(&http.Client{Transport: transport}),
		WithRetryPolicy(policy),
	)
	req, _ := http.NewRequest(http.MethodGet, "http://mock/network", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("网络错误后应重试成功: %v", err)
	}
	resp.Body.Close()
	if transport.attempts != 2 {
		t.Fatalf("应尝试 2 次，实际 %d", transport.attempts)
	}
}

func TestNetworkErrorExhausted(t *testing.T) {
	client := NewClient(
		WithHTTPClient(&http.Client{Transport: &flakyTransport{failures: 10}}),
		WithRetryPolicy(NewExponentialBackoffRetry(RetryConfig{
			MaxRetries: 1,
			BaseDelay:  1 * time.Millisecond,
		})),
	)
	req, _ := http.NewRequest(http.MethodGet, "http://mock/down", nil)
	_, err := client.Do(req)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("错误类型应为 NetworkError，实际: %v", err)
	}
}

func TestServerErrorRetry(t *testing.T) {
	var calls int32
	client := NewClient(
		WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return jsonResponse(http.StatusBadGateway, ``), nil
			}
			return jsonResponse(http.StatusOK, `{}`), nil
		})}),
		WithRetryPolicy(NewExponentialBackoffRetry(RetryConfig{
			MaxRetries: 1,
			BaseDelay:  1 * time.Millisecond,
		})),
	)
	req, _ := http.NewRequest(http.MethodGet, "http://mock/5xx", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("5xx 后应重试成功: %v", err)
	}
	resp.Body.Close()
	if calls != 2 {
		t.Fatalf("应尝试 2 次，实际 %d", calls)
	}
}

func TestClientErrorNoRetry(t *testing.T) {
	var calls int32
	client := NewClient(WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			atomic.AddInt32(&calls, 1)
			return jsonResponse(http.StatusBadRequest, `{"message":"参数错误"}`), nil
		}),
	}))
	req, _ := http.NewRequest(http.MethodGet, "http://mock/4xx", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("4xx 不应在传输层判错: %v", err)
	}
	resp.Body.Close()
	if calls != 1 {
		t.Fatalf("4xx 不应重试，实际请求 %d 次", calls)
	}
}

func TestBearerTokenLiveRead(t *testing.T) {
	token := "first"
	var seen []string
	client := NewClient(
		WithMiddlewares(WithBearerToken(TokenSourceFunc(func() string { return token }))),
		WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			seen = append(seen, req.Header.Get("Authorization"))
			return jsonResponse(http.StatusOK, `{}`), nil
		})}),
	)
	send := func() {
		req, _ := http.NewRequest(http.MethodGet, "http://mock/token", nil)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("请求失败: %v", err)
		}
		resp.Body.Close()
	}
	send()
	token = "second"
	send()
	token = ""
	send()
	if seen[0] != "Bearer first" || seen[1] != "Bearer second" {
		t.Fatalf("令牌应在发送时实时读取，实际: %v", seen)
	}
	if seen[2] != "" {
		t.Fatalf("令牌为空时不应携带 Authorization 头: %q", seen[2])
	}
}

func TestMiddlewareErrorIsConfigError(t *testing.T) {
	client := NewClient(
		WithMiddlewares(func(*http.Request) error { return errors.New("签名失败") }),
		WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			t.Fatal("中间件失败后不应触达网络")
			return nil, nil
		})}),
	)
	req, _ := http.NewRequest(http.MethodGet, "http://mock/mw", nil)
	_, err := client.Do(req)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("错误类型应为 ConfigError，实际: %v", err)
	}
}

func TestBodyWithoutGetBodyCannotRetry(t *testing.T) {
	policy := NewExponentialBackoffRetry(RetryConfig{
		MaxRetries: 1,
		BaseDelay:  1 * time.Millisecond,
	})
	client := NewClient(
		WithRetryPolicy(policy),
		WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusInternalServerError, ``), nil
		})}),
	)
	req, _ := http.NewRequest(http.MethodPost, "http://mock/body", io.NopCloser(errReader{}))
	req.GetBody = nil // 模拟无法重试的场景
	_, err := client.Do(req)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("预期因请求体不可重试失败，实际: %v", err)
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewTokenBucketLimiter(5, 1)
	client := NewClient(
		WithRateLimiter(limiter),
		WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{}`), nil
		})}),
	)
	start := time.Now()
	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodGet, "http://mock/ratelimit", nil)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("限流请求失败: %v", err)
		}
		resp.Body.Close()
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("限流未生效，耗时过短: %v", elapsed)
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, errors.New("一次性请求体")
}
