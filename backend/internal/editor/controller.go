package editor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	DefaultQuietInterval = 500 * time.Millisecond
	DefaultStatusLinger  = 1200 * time.Millisecond
	DefaultSaveTimeout   = 10 * time.Second
)

const (
	StatusNone   = ""
	StatusSaving = "Saving…"
	StatusSaved  = "Saved"
)

type State int

const (
	Idle State = iota
	Editing
)

func (s State) String() string {
	if s == Editing {
		return "editing"
	}
	return "idle"
}

// Backend 是服务端文档存储的客户端视角
type Backend interface {
	Fetch(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, blocks map[string]string) error
}

type Config struct {
	Transform     Transform
	QuietInterval time.Duration
	StatusLinger  time.Duration
	SaveTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Transform:     RichTransform{},
		QuietInterval: DefaultQuietInterval,
		StatusLinger:  DefaultStatusLinger,
		SaveTimeout:   DefaultSaveTimeout,
	}
}

// Controller 管理单页上的编辑会话：同一时刻最多一个 block 处于编辑状态，
// 输入后经过安静期把整页所有 block 一次性保存。
type Controller struct {
	cfg      Config
	registry *Registry
	backend  Backend
	surface  Surface
	debounce *Debouncer

	mu          sync.Mutex
	state       State
	active      string
	dirty       bool
	status      string
	statusTimer *time.Timer
	// 每次 flush 递增；只有最新一次保存的成功才显示 Saved
	flushSeq uint64

	inflight sync.WaitGroup
}

func NewController(reg *Registry, backend Backend, surface Surface, cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.Transform == nil {
		cfg.Transform = def.Transform
	}
	if cfg.QuietInterval <= 0 {
		cfg.QuietInterval = def.QuietInterval
	}
	if cfg.StatusLinger <= 0 {
		cfg.StatusLinger = def.StatusLinger
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = def.SaveTimeout
	}
	if surface == nil {
		surface = NopSurface{}
	}
	c := &Controller{
		cfg:      cfg,
		registry: reg,
		backend:  backend,
		surface:  surface,
	}
	c.debounce = NewDebouncer(cfg.QuietInterval, c.flush)
	return c
}

func (c *Controller) Registry() *Registry { return c.registry }
func (c *Controller) Mode() string        { return c.cfg.Transform.Mode() }

// Start 拉取一次完整文档，把已存在的 key 回填到 registry 和界面上。
// 文档里没有的 key 保留页面自带的默认内容。重复调用结果相同。
func (c *Controller) Start(ctx context.Context) error {
	doc, err := c.backend.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("hydrate: %w", err)
	}
	for _, key := range c.registry.Keys() {
		stored, ok := doc[key]
		if !ok {
			continue
		}
		display := c.cfg.Transform.ToDisplay(stored)
		if err := c.registry.Set(key, display); err != nil {
			return err
		}
		c.surface.Render(key, display)
	}
	return nil
}

// State 返回当前状态和正在编辑的 key
func (c *Controller) State() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.active
}

func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Open 进入编辑。若另一个 block 正在编辑，先将其关闭（会安排一次保存）。
func (c *Controller) Open(key string) error {
	if !c.registry.Has(key) {
		return fmt.Errorf("%w: %q", ErrUnknownBlock, key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Editing {
		if c.active == key {
			return nil
		}
		c.closeLocked()
	}
	c.state = Editing
	c.active = key
	c.surface.SetEditable(key, true)
	c.surface.SetToolbarVisible(key, true)
	c.setStatusLocked(StatusNone)
	return nil
}

// Close 对应失焦、Done、Escape 等结束编辑的动作。空闲时什么也不做。
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Editing {
		return
	}
	c.closeLocked()
}

func (c *Controller) closeLocked() {
	key := c.active
	c.surface.SetEditable(key, false)
	c.surface.SetToolbarVisible(key, false)
	c.state = Idle
	c.active = ""
	c.debounce.Trigger()
}

// Input 记录正在编辑的 block 的新内容
func (c *Controller) Input(key, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Editing || c.active != key {
		return fmt.Errorf("%w: %q", ErrBlockNotOpen, key)
	}
	if err := c.registry.Set(key, content); err != nil {
		return err
	}
	c.dirty = true
	c.setStatusLocked(StatusSaving)
	c.debounce.Trigger()
	return nil
}

// Format 把格式命令交给 Surface 执行。plain 模式下只允许插入纯文本。
func (c *Controller) Format(cmd Command, arg string) error {
	c.mu.Lock()
	state, key := c.state, c.active
	c.mu.Unlock()
	if state != Editing {
		return ErrBlockNotOpen
	}
	switch cmd {
	case CmdBold, CmdItalic, CmdRemoveFormat:
	case CmdCreateLink:
		if arg == "" {
			return ErrMissingLinkURL
		}
	case CmdInsertPlainText:
		if c.cfg.Transform.Mode() == ModePlain {
			arg = StripTags(arg)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, string(cmd))
	}
	if c.cfg.Transform.Mode() == ModePlain && cmd != CmdInsertPlainText {
		return fmt.Errorf("%w: %s in plain mode", ErrCommandNotAllowed, cmd)
	}
	return c.surface.Exec(key, cmd, arg)
}

type KeyEvent struct {
	Key   string
	Shift bool
	Ctrl  bool
	Meta  bool
}

// HandleKey 处理编辑中的快捷键，返回 true 表示已消费。
//   - Escape：结束编辑
//   - Ctrl/Cmd+Enter：结束编辑
//   - Enter（无 Shift）：rich 模式下结束编辑，plain 模式下是换行
//   - Ctrl/Cmd+B、Ctrl/Cmd+I：rich 模式下加粗、斜体
func (c *Controller) HandleKey(ev KeyEvent) bool {
	state, _ := c.State()
	if state != Editing {
		return false
	}
	rich := c.cfg.Transform.Mode() == ModeRich
	mod := ev.Ctrl || ev.Meta
	switch ev.Key {
	case "Escape":
		c.Close()
		return true
	case "Enter":
		if mod || (rich && !ev.Shift) {
			c.Close()
			return true
		}
	case "b", "B":
		if mod && rich {
			return c.Format(CmdBold, "") == nil
		}
	case "i", "I":
		if mod && rich {
			return c.Format(CmdItalic, "") == nil
		}
	}
	return false
}

// SaveNow 跳过安静期立即保存；没有待保存的调度时返回 false
func (c *Controller) SaveNow() bool {
	return c.debounce.Flush()
}

// Shutdown 立刻执行挂起的保存，并等待所有在途请求结束
func (c *Controller) Shutdown(ctx context.Context) error {
	c.debounce.Flush()
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.mu.Lock()
	if c.statusTimer != nil {
		c.statusTimer.Stop()
		c.statusTimer = nil
	}
	c.mu.Unlock()
	return nil
}

// flush 在安静期结束时运行：取整页快照，后台发送，不等待结果
func (c *Controller) flush() {
	snap := c.registry.Snapshot()
	payload := make(map[string]string, len(snap))
	for k, v := range snap {
		payload[k] = c.cfg.Transform.ToStorage(v)
	}
	c.mu.Lock()
	c.dirty = false
	c.flushSeq++
	seq := c.flushSeq
	c.mu.Unlock()

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.save(seq, payload)
	}()
}

func (c *Controller) save(seq uint64, payload map[string]string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.SaveTimeout)
	defer cancel()
	if err := c.backend.Save(ctx, payload); err != nil {
		// 状态停留在 Saving…，不重试
		log.Printf("[editor] save %d blocks failed: %v", len(payload), err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// 之后还有新的输入或新的保存，状态保持 Saving…
	if seq != c.flushSeq || c.dirty {
		return
	}
	c.setStatusLocked(StatusSaved)
	if c.statusTimer != nil {
		c.statusTimer.Stop()
	}
	c.statusTimer = time.AfterFunc(c.cfg.StatusLinger, c.clearSaved)
}

func (c *Controller) clearSaved() {
	c.mu.Lock()
	defer c.mu.Unlock()
	// 期间有新输入时不要把 Saving… 清掉
	if c.status == StatusSaved {
		c.setStatusLocked(StatusNone)
	}
}

func (c *Controller) setStatusLocked(s string) {
	c.status = s
	c.surface.SetStatus(s)
}
