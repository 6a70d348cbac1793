// Package submit 提供作文提交的排队与状态跟踪能力。
package submit

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dnslin/essaymate-desktop/core/api"
	"github.com/dnslin/essaymate-desktop/core/httpclient"
	"github.com/google/uuid"
)

// ErrJobNotFound 提交记录不存在。
var ErrJobNotFound = errors.New("submit: 提交记录不存在")

// Status 提交状态。
type Status int

const (
	// StatusPending 等待中。
	StatusPending Status = iota
	// StatusRunning 上传中。
	StatusRunning
	// StatusCompleted 已完成。
	StatusCompleted
	// StatusFailed 失败。
	StatusFailed
)

// String 返回状态的字符串表示。
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Job 表示一次作文提交。
type Job struct {
	ID        string
	Status    Status
	Receipt   *api.SubmitReceipt
	Err       error
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Submitter 执行实际上传，api.Client 即满足。
type Submitter interface {
	SubmitEssay(ctx context.Context, sub api.Submission) (*api.SubmitReceipt, error)
}

// ProgressCallback 状态变化回调，收到的是快照。
type ProgressCallback func(job Job)

// Tracker 管理提交任务的并发执行与生命周期。
type Tracker struct {
	mu        sync.RWMutex
	jobs      map[string]*jobState
	callbacks []ProgressCallback

	submitter     Submitter
	maxConcurrent int
	semaphore     chan struct{}
	logger        httpclient.Logger
}

type jobState struct {
	job  Job
	done chan struct{}
}

// TrackerOption 配置跟踪器。
type TrackerOption func(*Tracker)

// WithMaxConcurrent 设置最大并发上传数。
func WithMaxConcurrent(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.maxConcurrent = n
		}
	}
}

// WithLogger 注入日志。
func WithLogger(logger httpclient.Logger) TrackerOption {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTracker 创建跟踪器。
func NewTracker(submitter Submitter, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		jobs:          make(map[string]*jobState),
		submitter:     submitter,
		maxConcurrent: 2,
		logger:        httpclient.NopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	t.semaphore = make(chan struct{}, t.maxConcurrent)
	return t
}

// Enqueue 校验并入队一次提交，返回记录 ID。
// 前置校验失败时不触网也不产生任何记录。
func (t *Tracker) Enqueue(ctx context.Context, sub api.Submission) (string, error) {
	if err := sub.Validate(); err != nil {
		return "", err
	}
	now := time.Now()
	state := &jobState{
		job: Job{
			ID:        uuid.New().String(),
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		done: make(chan struct{}),
	}
	t.mu.Lock()
	t.jobs[state.job.ID] = state
	t.mu.Unlock()

	go t.run(ctx, state, sub)
	return state.job.ID, nil
}

func (t *Tracker) run(ctx context.Context, state *jobState, sub api.Submission) {
	defer close(state.done)

	select {
	case t.semaphore <- struct{}{}:
	case <-ctx.Done():
		t.update(state, func(j *Job) {
			j.Status = StatusFailed
			j.Err = ctx.Err()
		})
		return
	}
	defer func() { <-t.semaphore }()

	t.update(state, func(j *Job) {
		j.Status = StatusRunning
	})

	receipt, err := t.submitter.SubmitEssay(ctx, sub)
	if err != nil {
		t.logger.Errorf("submit: 提交失败 id=%s: %v", state.job.ID, err)
		t.update(state, func(j *Job) {
			j.Status = StatusFailed
			j.Err = err
		})
		return
	}
	t.update(state, func(j *Job) {
		j.Status = StatusCompleted
		j.Receipt = receipt
	})
}

func (t *Tracker) update(state *jobState, mutate func(*Job)) {
	t.mu.Lock()
	mutate(&state.job)
	state.job.UpdatedAt = time.Now()
	snapshot := state.job
	callbacks := make([]ProgressCallback, len(t.callbacks))
	copy(callbacks, t.callbacks)
	t.mu.Unlock()

	for _, cb := range callbacks {
		cb(snapshot)
	}
}

// Job 返回指定提交记录的快照。
func (t *Tracker) Job(id string) (Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, ok := t.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return state.job, nil
}

// Jobs 返回全部提交记录快照，按创建时间降序。
func (t *Tracker) Jobs() []Job {
	t.mu.RLock()
	result := make([]Job, 0, len(t.jobs))
	for _, state := range t.jobs {
		result = append(result, state.job)
	}
	t.mu.RUnlock()
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Subscribe 订阅状态变化。
func (t *Tracker) Subscribe(cb ProgressCallback) {
	if cb == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callbacks = append(t.callbacks, cb)
}

// Wait 阻塞等待某次提交结束，返回终态快照。
func (t *Tracker) Wait(ctx context.Context, id string) (Job, error) {
	t.mu.RLock()
	state, ok := t.jobs[id]
	t.mu.RUnlock()
	if !ok {
		return Job{}, ErrJobNotFound
	}
	select {
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case <-state.done:
		return t.Job(id)
	}
}
