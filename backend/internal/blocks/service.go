package blocks

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"copyEditor/backend/internal/cache"
	"copyEditor/backend/internal/events"
	"copyEditor/backend/internal/store"
)

// 文档服务接口：HTTP 层只依赖它
type Service interface {
	// Load 返回完整的 key→content 映射
	Load(ctx context.Context) (map[string]string, error)
	// Merge 按 key last-write-wins 合并，返回时已持久化
	Merge(ctx context.Context, blocks map[string]string) error
}

// 合并事件的下游（kafka）
type Publisher interface {
	Enqueue(ctx context.Context, evt events.BlocksMergedEvent) error
}

// 合并事件的实时推送（websocket）
type Notifier interface {
	BroadcastMerged(evt events.BlocksMergedEvent)
}

type Options struct {
	// 文档名，用于缓存键和事件 key
	Document string
	// 本实例标识，写入事件的 origin；为空时随机生成
	Instance string
	// 以下均可为 nil
	Cache     cache.DocumentCache
	Publisher Publisher
	Notifier  Notifier
	// 入队 kafka 的最长等待
	EnqueueTimeout time.Duration
}

type service struct {
	// 读共享、写独占
	mu    sync.RWMutex
	store store.Store
	opt   Options

	// 合并后 Invalidate 失败时置位：缓存里可能是旧快照，读请求直接回源，
	// 直到下一次 Invalidate 成功
	cacheSuspect atomic.Bool
}

func NewService(st store.Store, opt Options) Service {
	if opt.Document == "" {
		opt.Document = "default"
	}
	if opt.Instance == "" {
		opt.Instance = uuid.NewString()
	}
	if opt.EnqueueTimeout <= 0 {
		opt.EnqueueTimeout = 200 * time.Millisecond
	}
	return &service{store: st, opt: opt}
}

func (s *service) Load(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.opt.Cache != nil && !s.cacheSuspect.Load() {
		return s.opt.Cache.GetOrLoad(ctx, s.loadFromStore)
	}
	return s.loadFromStore(ctx)
}

func (s *service) loadFromStore(ctx context.Context) (map[string]string, error) {
	doc, err := s.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Blocks, nil
}

func (s *service) Merge(ctx context.Context, blocks map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Merge(ctx, blocks); err != nil {
		return err
	}

	// 以下旁路失败只记日志：存储已经接受了这次写入
	if s.opt.Cache != nil {
		// 只失效不回写，由下一次读按版本号回填
		if err := s.opt.Cache.Invalidate(ctx); err != nil {
			log.Printf("cache invalidate failed, reads bypass cache until next success: %v", err)
			s.cacheSuspect.Store(true)
		} else {
			s.cacheSuspect.Store(false)
		}
	}

	evt := events.NewBlocksMergedEvent(s.opt.Document, blocks)
	evt.Origin = s.opt.Instance

	if s.opt.Publisher != nil {
		enqueueCtx, cancel := context.WithTimeout(ctx, s.opt.EnqueueTimeout)
		if err := s.opt.Publisher.Enqueue(enqueueCtx, evt); err != nil {
			log.Printf("enqueue merge event failed id=%s: %v", evt.EventID, err)
		}
		cancel()
	}
	if s.opt.Notifier != nil {
		s.opt.Notifier.BroadcastMerged(evt)
	}
	if s.opt.Cache != nil {
		if b, err := json.Marshal(evt); err == nil {
			if err := s.opt.Cache.Publish(ctx, b); err != nil {
				log.Printf("publish merge event failed id=%s: %v", evt.EventID, err)
			}
		}
	}
	return nil
}
