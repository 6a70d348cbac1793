package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dnslin/essaymate-desktop/core/httpclient"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	rec := httptest.NewRecorder()
	rec.Header().Set("Content-Type", "application/json")
	rec.WriteHeader(status)
	rec.Body.WriteString(body)
	return rec.Result()
}

// newTestClient 构造直连假传输层的客户端，不重试以便断言请求次数。
func newTestClient(base string, rt http.RoundTripper, opts ...Option) *Client {
	inner := httpclient.NewClient(
		httpclient.WithHTTPClient(&http.Client{Transport: rt}),
		httpclient.WithRetryPolicy(nil),
	)
	opts = append([]Option{WithHTTPClient(inner)}, opts...)
	return NewClient(base, opts...)
}

func decodeRequestBody(req *http.Request, out any) error {
	defer req.Body.Close()
	return json.NewDecoder(req.Body).Decode(out)
}

func TestGetNormalizesEnvelope(t *testing.T) {
	client := newTestClient("http://mock/api", roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.String() != "http://mock/api/user/info" {
			t.Fatalf("URL 拼接错误: %s", req.URL)
		}
		if req.Header.Get("Accept") != "application/json" {
			t.Fatalf("缺少 Accept 头")
		}
		return jsonResponse(http.StatusOK, `{"success":true,"data":{"uid":1,"username":"u"}}`), nil
	}))
	env, err := client.UserInfo(context.Background(), "")
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	user, err := DecodeData[UserProfile](env)
	if err != nil || user.UID != 1 {
		t.Fatalf("载荷不符: %+v, %v", user, err)
	}
}

func TestPostSendsJSONBody(t *testing.T) {
	client := newTestClient("http://mock/api", roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if ct := req.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("Content-Type 不符: %s", ct)
		}
		var creds Credentials
		if err := decodeRequestBody(req, &creds); err != nil {
			t.Fatalf("请求体解码失败: %v", err)
		}
		if creds.Username != "u" || creds.Password != "p" {
			t.Fatalf("请求体不符: %+v", creds)
		}
		return jsonResponse(http.StatusOK, `{"success":true,"data":{"token":"tok123"}}`), nil
	}))
	env, err := client.Login(context.Background(), Credentials{Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("登录请求失败: %v", err)
	}
	result, err := DecodeData[LoginResult](env)
	if err != nil || result.Token != "tok123" {
		t.Fatalf("登录载荷不符: %+v, %v", result, err)
	}
}

func TestHTTPErrorExtractsBackendMessage(t *testing.T) {
	client := newTestClient("http://mock/api", roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusForbidden, `{"message":"无权限"}`), nil
	}))
	_, err := client.Get(context.Background(), "/review-tasks", nil)
	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("错误类型应为 StatusError，实际: %v", err)
	}
	if statusErr.Message != "无权限" || statusErr.Status != http.StatusForbidden {
		t.Fatalf("错误信息不符: %+v", statusErr)
	}
}

func TestHTTPErrorWithoutBodyFallsBack(t *testing.T) {
	client := newTestClient("http://mock/api", roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadGateway, ``), nil
	}))
	_, err := client.Get(context.Background(), "/x", nil)
	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("错误类型应为 StatusError，实际: %v", err)
	}
	if statusErr.Message != "" {
		t.Fatalf("无响应体时不应有后端消息: %q", statusErr.Message)
	}
}

func TestUnauthorizedTriggersCallback(t *testing.T) {
	invalidated := 0
	client := newTestClient("http://mock/api",
		roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusUnauthorized, `{"message":"token 已过期"}`), nil
		}),
		WithOnUnauthorized(func() { invalidated++ }),
	)
	_, err := client.Get(context.Background(), "/user/info", nil)
	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) || !statusErr.Unauthorized() {
		t.Fatalf("应得到 401 StatusError: %v", err)
	}
	if invalidated != 1 {
		t.Fatalf("401 回调应执行一次，实际 %d", invalidated)
	}
}

func TestNetworkErrorPropagates(t *testing.T) {
	client := newTestClient("http://mock/api", roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("连接被拒绝")
	}))
	_, err := client.Get(context.Background(), "/x", nil)
	var netErr *httpclient.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("错误类型应为 NetworkError，实际: %v", err)
	}
}

func TestPostDataDecodesPayload(t *testing.T) {
	client := newTestClient("http://mock/api", roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"success":true,"data":{"token":"tok"}}`), nil
	}))
	result, env, err := PostData[LoginResult](context.Background(), client, "/user/login", Credentials{})
	if err != nil || result.Token != "tok" {
		t.Fatalf("载荷解码不符: %+v, %v", result, err)
	}
	if env == nil || !env.Success {
		t.Fatalf("应同时返回 Envelope: %+v", env)
	}
}

func TestGetDataBusinessFailure(t *testing.T) {
	client := newTestClient("http://mock/api", roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"code":7,"msg":"积分不足"}`), nil
	}))
	_, env, err := GetData[*EssayReport](context.Background(), client, "/essay-analysis/latest", nil)
	bizErr, ok := err.(*BusinessError)
	if !ok || bizErr.Code != 7 || bizErr.Message != "积分不足" {
		t.Fatalf("业务失败应转为 BusinessError: %v", err)
	}
	if env == nil || env.Success {
		t.Fatalf("失败时也应返回原始 Envelope: %+v", env)
	}
}

func TestJoinURL(t *testing.T) {
	cases := []struct {
		base, path, want string
	}{
		{"http://h/api", "/x", "http://h/api/x"},
		{"http://h/api/", "/x", "http://h/api/x"},
		{"http://h/api", "x", "http://h/api/x"},
		{"", "/x", "/x"},
		{"http://h", "", "http://h"},
	}
	for _, c := range cases {
		if got := joinURL(c.base, c.path); got != c.want {
			t.Fatalf("joinURL(%q,%q)=%q，期望 %q", c.base, c.path, got, c.want)
		}
	}
}
