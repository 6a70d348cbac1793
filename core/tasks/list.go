package tasks

import (
	"context"
	"sort"
	"sync"

	"github.com/dnslin/essaymate-desktop/core/api"
)

// Fetcher 是列表视图需要的后端能力，api.Client 即满足。
type Fetcher interface {
	ReviewTasks(ctx context.Context, userID string) ([]api.ReviewTask, error)
}

// IdentityFunc 返回当前用户标识，未登录时返回空串。
// 每次刷新时调用，登录/登出后缓存键随之切换。
type IdentityFunc func() string

// List 是面向 UI 的任务列表视图：缓存、请求合并、失败兜底。
// 可见列表永远按 createdAt 降序；瞬时网络故障不会让界面变成空白。
type List struct {
	cache    *Cache
	backend  Fetcher
	identity IdentityFunc
	seed     []api.ReviewTask

	mu      sync.Mutex
	items   []api.ReviewTask
	loading bool
	errMsg  string
	closed  bool
}

// NewList 创建列表视图。seed 为没有任何真实数据时的兜底展示。
func NewList(cache *Cache, backend Fetcher, identity IdentityFunc, seed []api.ReviewTask) *List {
	if cache == nil {
		cache = NewCache()
	}
	if identity == nil {
		identity = func() string { return "" }
	}
	return &List{
		cache:    cache,
		backend:  backend,
		identity: identity,
		seed:     cloneTasks(seed),
		items:    sortByCreatedAtDesc(cloneTasks(seed)),
		loading:  true,
	}
}

// Items 返回当前可见列表的拷贝。
func (l *List) Items() []api.ReviewTask {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneTasks(l.items)
}

// Loading 返回是否正在刷新。
func (l *List) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Err 返回最近一次刷新的错误提示，成功时为空串。
func (l *List) Err() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errMsg
}

// Close 标记视图不再使用。之后完成的拉取仍会写入共享缓存，
// 但不再更新本视图的状态。
func (l *List) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}

// Refresh 触发一次刷新。
// 命中新鲜缓存时直接展示；否则等待（可能是共享的）网络拉取：
// 非空结果整体替换展示；空结果视为存疑，不覆盖已有的非空列表；
// 失败时回退种子数据并记录错误提示。
func (l *List) Refresh(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.loading = true
	l.errMsg = ""
	l.mu.Unlock()

	userID := l.identity()
	key := CacheKey(userID)
	tasks, fromCache, err := l.cache.Get(ctx, key, func(ctx context.Context) ([]api.ReviewTask, error) {
		return l.backend.ReviewTasks(ctx, userID)
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return err
	}
	l.loading = false
	if err != nil {
		l.errMsg = errMessage(err)
		l.items = sortByCreatedAtDesc(cloneTasks(l.seed))
		return err
	}
	switch {
	case fromCache:
		l.items = sortByCreatedAtDesc(tasks)
	case len(tasks) > 0:
		l.items = sortByCreatedAtDesc(tasks)
	case len(l.items) == 0:
		l.items = sortByCreatedAtDesc(cloneTasks(l.seed))
	}
	return nil
}

func errMessage(err error) string {
	if err == nil || err.Error() == "" {
		return "获取批改任务失败"
	}
	return err.Error()
}

func sortByCreatedAtDesc(tasks []api.ReviewTask) []api.ReviewTask {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt.Time)
	})
	return tasks
}
