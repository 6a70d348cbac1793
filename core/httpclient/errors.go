package httpclient

import (
	"fmt"
	"net/http"
)

// NetworkError 表示请求已发出但没有收到响应（断网、超时、DNS 失败等）。
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "网络异常，请检查网络连接"
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ConfigError 表示请求在构造阶段失败（中间件出错、请求体不可重试等），
// 尚未触碰网络。
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "请求配置错误"
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// StatusError 表示服务端返回了非 2xx 状态码。
// Message 为从响应体提取到的后端提示，可能为空。
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if text := http.StatusText(e.Status); text != "" {
		return fmt.Sprintf("后端请求失败: %s", text)
	}
	return "后端请求失败"
}

// Unauthorized 判断是否为未认证状态码。
func (e *StatusError) Unauthorized() bool {
	return e != nil && e.Status == http.StatusUnauthorized
}
