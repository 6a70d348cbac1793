package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/dnslin/essaymate-desktop/core/api"
	"github.com/dnslin/essaymate-desktop/core/httpclient"
)

// DefaultTTL 缓存有效期。
const DefaultTTL = 30 * time.Second

// AnonymousKey 未登录时的缓存键后缀。
const AnonymousKey = "__anon"

// CacheKey 由用户标识推导缓存键，未登录统一落到匿名键。
func CacheKey(userID string) string {
	if userID == "" {
		userID = AnonymousKey
	}
	return "review_tasks:" + userID
}

// FetchFunc 实际的网络拉取。
type FetchFunc func(ctx context.Context) ([]api.ReviewTask, error)

// call 表示一次进行中的拉取，等待方共享同一个结果。
type call struct {
	done  chan struct{}
	tasks []api.ReviewTask
	err   error
}

// entry 是每个缓存键对应的槽位。
// 不变式：任一时刻 inflight 至多一个；拉取成功时 tasks 与 fetchedAt
// 在同一临界区内写入并清除 inflight；失败时只清除 inflight，已有数据保持原样。
type entry struct {
	tasks     []api.ReviewTask
	fetchedAt time.Time
	inflight  *call
}

// Cache 是进程级任务列表缓存，带 TTL 与进行中请求合并。
// 对同一个键，无论多少并发调用方，系统内同时至多只有一个网络请求。
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	now     func() time.Time
	logger  httpclient.Logger
}

// CacheOption 配置缓存。
type CacheOption func(*Cache)

// WithTTL 设置缓存有效期。
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithNow 替换时间来源，便于测试。
func WithNow(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCacheLogger 注入日志。
func WithCacheLogger(logger httpclient.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCache 创建缓存。
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  httpclient.NopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Get 返回某个键下的任务列表。
// 命中新鲜缓存时直接返回（fromCache=true），不触网；
// 已有进行中的拉取时等待并共享其结果；否则发起新的拉取。
// 新拉取在持锁期间注册到槽位中，先登记、后等待，
// 并发调用方不可能都错过缓存而各自触网。
func (c *Cache) Get(ctx context.Context, key string, fetch FetchFunc) (tasks []api.ReviewTask, fromCache bool, err error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	if e.tasks != nil && c.now().Sub(e.fetchedAt) < c.ttl {
		cached := cloneTasks(e.tasks)
		c.mu.Unlock()
		return cached, true, nil
	}
	if e.inflight != nil {
		cl := e.inflight
		c.mu.Unlock()
		c.logger.Debugf("tasks: 复用进行中的拉取 key=%s", key)
		return c.await(ctx, cl)
	}
	cl := &call{done: make(chan struct{})}
	e.inflight = cl
	c.mu.Unlock()

	// 拉取在独立的 goroutine 中完成并写回缓存；
	// 发起方放弃等待（如视图卸载）时请求照常完成，结果对后续调用方仍然有效。
	go c.run(context.WithoutCancel(ctx), key, cl, fetch)
	return c.await(ctx, cl)
}

func (c *Cache) run(ctx context.Context, key string, cl *call, fetch FetchFunc) {
	tasks, err := fetch(ctx)
	c.mu.Lock()
	e := c.entries[key]
	if e != nil && e.inflight == cl {
		e.inflight = nil
		if err == nil {
			e.tasks = cloneTasks(tasks)
			e.fetchedAt = c.now()
		}
	}
	c.mu.Unlock()
	if err != nil {
		c.logger.Debugf("tasks: 拉取失败 key=%s: %v", key, err)
	}
	cl.tasks = tasks
	cl.err = err
	close(cl.done)
}

func (c *Cache) await(ctx context.Context, cl *call) ([]api.ReviewTask, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-cl.done:
		if cl.err != nil {
			return nil, false, cl.err
		}
		return cloneTasks(cl.tasks), false, nil
	}
}

// Invalidate 丢弃某个键的缓存数据，进行中的拉取不受影响。
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.tasks = nil
		e.fetchedAt = time.Time{}
	}
}

func cloneTasks(tasks []api.ReviewTask) []api.ReviewTask {
	if tasks == nil {
		return nil
	}
	cp := make([]api.ReviewTask, len(tasks))
	copy(cp, tasks)
	return cp
}
