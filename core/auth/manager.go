package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/dnslin/essaymate-desktop/core/api"
	"github.com/dnslin/essaymate-desktop/core/httpclient"
	"github.com/dnslin/essaymate-desktop/core/store"
)

var (
	// ErrBackendNil 在未挂接后端客户端时返回。
	ErrBackendNil = errors.New("auth: 未挂接后端客户端")
	// ErrSessionLoading 表示初始刷新尚未结束，受保护的视图应展示加载态。
	ErrSessionLoading = errors.New("auth: 会话加载中")
	// ErrUnauthenticated 表示当前未登录，受保护的视图应跳转匿名入口。
	ErrUnauthenticated = errors.New("auth: 未登录")
)

// AuthenticationError 登录失败，Message 为后端返回的原文。
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	if e == nil || e.Message == "" {
		return "登录失败"
	}
	return e.Message
}

// Backend 是会话管理器需要的后端能力子集，api.Client 即满足。
type Backend interface {
	Login(ctx context.Context, creds api.Credentials) (*api.Envelope, error)
	UserInfo(ctx context.Context, id string) (*api.Envelope, error)
	Logout(ctx context.Context) error
}

// Manager 持有进程级会话状态，是令牌与用户信息的唯一写入方。
// 其余读取方（请求中间件、UI）通过 Token/Current 拿快照。
type Manager struct {
	mu      sync.RWMutex
	session Session

	tokens  store.TokenStore
	backend Backend
	logger  httpclient.Logger
}

// ManagerOption 配置会话管理器。
type ManagerOption func(*Manager)

// WithLogger 注入日志。
func WithLogger(logger httpclient.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager 创建会话管理器。backend 可先为 nil，
// 等 api.Client 以本管理器为令牌来源构造完成后再 AttachBackend。
func NewManager(tokens store.TokenStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		session: Session{Loading: true},
		tokens:  tokens,
		logger:  httpclient.NopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// AttachBackend 挂接后端客户端。
func (m *Manager) AttachBackend(backend Backend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backend = backend
}

// Token 返回当前令牌，实现 httpclient.TokenSource。
// 中间件每次发送请求时调用，保证读到的是最新值。
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Token
}

// Current 返回当前会话快照。
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Clone()
}

// IsAuthenticated 判断当前是否已登录。
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.IsAuthenticated()
}

// Bootstrap 进程启动时执行一次：读取持久化令牌，
// 存在则尝试刷新用户信息，无论结果如何都结束加载态。
func (m *Manager) Bootstrap(ctx context.Context) {
	defer m.endLoading()

	token, err := m.tokens.LoadToken()
	if err != nil {
		if !errors.Is(err, store.ErrTokenNotFound) {
			m.logger.Errorf("auth: 读取持久化令牌失败: %v", err)
		}
		return
	}
	m.mu.Lock()
	m.session.Token = token
	m.mu.Unlock()
	if err := m.RefreshUser(ctx); err != nil {
		m.logger.Debugf("auth: 启动刷新用户信息失败: %v", err)
	}
}

func (m *Manager) endLoading() {
	m.mu.Lock()
	m.session.Loading = false
	m.mu.Unlock()
}

// Login 用户名密码登录。后端包装标记失败时返回 *AuthenticationError，
// 消息原样透传；成功后持久化令牌（若有）并刷新用户信息。
func (m *Manager) Login(ctx context.Context, creds api.Credentials) error {
	backend := m.currentBackend()
	if backend == nil {
		return ErrBackendNil
	}
	env, err := backend.Login(ctx, creds)
	if err != nil {
		return err
	}
	if !env.Success {
		return &AuthenticationError{Message: env.Message}
	}
	result, err := api.DecodeData[api.LoginResult](env)
	if err != nil {
		return &AuthenticationError{Message: "登录返回格式不正确"}
	}
	if result.Token != "" {
		if err := m.tokens.SaveToken(result.Token); err != nil {
			// 持久化失败不阻断本次登录，重启后需要重新登录
			m.logger.Errorf("auth: 持久化令牌失败: %v", err)
		}
		m.mu.Lock()
		m.session.Token = result.Token
		m.mu.Unlock()
	}
	// 没有 token 的成功视为 Set-Cookie 会话登录，直接刷新用户信息
	return m.RefreshUser(ctx)
}

// RefreshUser 拉取当前用户信息并整体替换。
// 任何失败（网络、包装失败、载荷损坏）都会清除本地与持久化令牌，
// 这是失效令牌从客户端被清理的唯一路径。
func (m *Manager) RefreshUser(ctx context.Context) error {
	backend := m.currentBackend()
	if backend == nil {
		return ErrBackendNil
	}
	env, err := backend.UserInfo(ctx, "")
	if err != nil {
		m.Invalidate()
		return err
	}
	if !env.Success {
		m.Invalidate()
		msg := env.Message
		if msg == "" {
			msg = "未认证"
		}
		return &AuthenticationError{Message: msg}
	}
	user, err := api.DecodeData[*api.UserProfile](env)
	if err != nil {
		m.Invalidate()
		return err
	}
	m.mu.Lock()
	m.session.User = user
	m.mu.Unlock()
	return nil
}

// Logout 清理本地会话，并尽力通知后端。
// 通知失败只记录日志，不影响本地登出结果。
func (m *Manager) Logout(ctx context.Context) {
	backend := m.currentBackend()
	m.Invalidate()
	if backend == nil {
		return
	}
	if err := backend.Logout(ctx); err != nil {
		m.logger.Debugf("auth: 通知后端登出失败: %v", err)
	}
}

// Invalidate 清除持久化令牌与内存会话。
// 也被 api.Client 的 401 回调触发，必须可重入。
func (m *Manager) Invalidate() {
	if err := m.tokens.ClearToken(); err != nil {
		m.logger.Errorf("auth: 清除持久化令牌失败: %v", err)
	}
	m.mu.Lock()
	m.session.Token = ""
	m.session.User = nil
	m.mu.Unlock()
}

// RequireUser 供受保护入口使用：加载中与未登录分别返回对应哨兵错误。
func (m *Manager) RequireUser() (*api.UserProfile, error) {
	snapshot := m.Current()
	if snapshot.Loading {
		return nil, ErrSessionLoading
	}
	if !snapshot.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}
	return snapshot.User, nil
}

func (m *Manager) currentBackend() Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backend
}
