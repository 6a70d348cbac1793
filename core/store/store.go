package store

import "errors"

// ErrTokenNotFound 用于标记存储中不存在令牌。
var ErrTokenNotFound = errors.New("store: 未找到令牌")

// TokenStore 抽象鉴权令牌的持久化。
// 读取是同步操作，进程启动与每次请求都可能触发。
type TokenStore interface {
	SaveToken(token string) error
	LoadToken() (string, error)
	ClearToken() error
}
