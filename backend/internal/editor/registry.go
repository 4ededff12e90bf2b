package editor

import (
	"fmt"
	"sync"
)

// 页面上可编辑区域的初始描述，来自页面标记
type Block struct {
	Key     string
	Content string
}

// Registry 记录每个 block 当前显示的内容。
// 启动时从页面标记一次性建立，之后只会更新内容，不会增删 key。
type Registry struct {
	mu      sync.RWMutex
	order   []string
	content map[string]string
}

// 重复的 key 以第一次出现为准
func NewRegistry(blocks []Block) *Registry {
	r := &Registry{content: make(map[string]string, len(blocks))}
	for _, b := range blocks {
		if _, dup := r.content[b.Key]; dup {
			continue
		}
		r.order = append(r.order, b.Key)
		r.content[b.Key] = b.Content
	}
	return r
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Keys 按页面中的出现顺序返回
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.content[key]
	return ok
}

func (r *Registry) Get(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.content[key]
	return v, ok
}

func (r *Registry) Set(key, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.content[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBlock, key)
	}
	r.content[key] = content
	return nil
}

// Snapshot 返回所有 block 当前内容的拷贝
func (r *Registry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.content))
	for k, v := range r.content {
		out[k] = v
	}
	return out
}
