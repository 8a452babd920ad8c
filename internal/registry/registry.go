package registry

import (
	"sync"
)

// Signals 单个任务的控制信号三元组
// cancelled 与 accepted 同时置位时 cancelled 优先
type Signals struct {
	Paused    bool
	Accepted  bool
	Cancelled bool
}

type entry struct {
	signals Signals
	changed chan struct{}
}

// Registry 任务控制信号注册表（进程内）
// 条目在任务提交时创建、终态清理时删除，对缺失条目置位会被拒绝
type Registry struct {
	mu      sync.RWMutex
	entries map[int64]*entry
}

func New() *Registry {
	return &Registry{
		entries: make(map[int64]*entry),
	}
}

// Create 建立任务的控制条目，重复创建为幂等操作
func (r *Registry) Create(jobID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[jobID]; ok {
		return
	}
	r.entries[jobID] = &entry{changed: make(chan struct{})}
}

// Delete 删除任务的控制条目，终态清理时调用以回收内存
func (r *Registry) Delete(jobID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[jobID]; ok {
		close(e.changed)
		delete(r.entries, jobID)
	}
}

// Get 读取当前信号快照
func (r *Registry) Get(jobID int64) (Signals, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[jobID]
	if !ok {
		return Signals{}, false
	}
	return e.signals, true
}

// SetPaused 置位/清除暂停信号，条目不存在返回 false
func (r *Registry) SetPaused(jobID int64, paused bool) bool {
	return r.mutate(jobID, func(s *Signals) {
		s.Paused = paused
	})
}

// SetAccepted 置位接受信号，幂等
func (r *Registry) SetAccepted(jobID int64) bool {
	return r.mutate(jobID, func(s *Signals) {
		s.Accepted = true
	})
}

// SetCancelled 置位取消信号，幂等
func (r *Registry) SetCancelled(jobID int64) bool {
	return r.mutate(jobID, func(s *Signals) {
		s.Cancelled = true
	})
}

// Changed 返回变更通知通道，任一信号变化时关闭并替换
// 暂停等待据此实现可中断等待，取消无需等到下一次轮询
func (r *Registry) Changed(jobID int64) <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[jobID]
	if !ok {
		// 条目已删除，返回已关闭通道避免等待方阻塞
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return e.changed
}

// Size 当前条目数，用于观测泄漏
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) mutate(jobID int64, fn func(*Signals)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[jobID]
	if !ok {
		return false
	}

	fn(&e.signals)

	// 广播变更
	close(e.changed)
	e.changed = make(chan struct{})
	return true
}
