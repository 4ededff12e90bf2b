package editor

import (
	"sync"
	"time"
)

// Debouncer 在安静期结束后执行 fn。
// 每次 Trigger 都会取消尚未触发的定时器并重新计时，只有最后一次会真正执行。
type Debouncer struct {
	mu    sync.Mutex
	wait  time.Duration
	fn    func()
	timer *time.Timer
	// 每次重排都递增；已经触发但被替换掉的旧回调据此放弃执行
	gen uint64
}

func NewDebouncer(wait time.Duration, fn func()) *Debouncer {
	return &Debouncer{wait: wait, fn: fn}
}

func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.wait, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}

// Pending 是否有尚未执行的调度
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop 取消尚未执行的调度，返回是否真的取消了一次
func (d *Debouncer) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	return true
}

// Flush 若有待执行的调度，立即在当前 goroutine 执行
func (d *Debouncer) Flush() bool {
	if !d.Stop() {
		return false
	}
	d.fn()
	return true
}
