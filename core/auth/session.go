package auth

import "github.com/dnslin/essaymate-desktop/core/api"

// Session 是某一时刻的会话快照。
// Loading 表示启动时的初始刷新尚未结束；是否已登录由 User 推导，不单独存储。
type Session struct {
	Token   string
	User    *api.UserProfile
	Loading bool
}

// IsAuthenticated 判断是否已登录。
func (s Session) IsAuthenticated() bool {
	return s.User != nil
}

// Clone 返回会话的拷贝，避免调用方拿到内部指针。
func (s Session) Clone() Session {
	cp := s
	if s.User != nil {
		user := *s.User
		cp.User = &user
	}
	return cp
}
