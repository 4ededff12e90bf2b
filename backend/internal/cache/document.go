package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// 回填时发现版本已变化
var errStaleFill = errors.New("document changed while loading")

type DocumentCache interface {
	// Get 未命中时返回 (nil, false, nil)
	Get(ctx context.Context) (map[string]string, bool, error)
	// Invalidate 递增版本号并删除快照；合并写入之后调用
	Invalidate(ctx context.Context) error
	// GetOrLoad 未命中时回源 load 并回填，同一时刻只有一个回源。
	// 回源期间版本号变化（有合并发生）时不回填，避免旧数据覆盖新数据。
	GetOrLoad(ctx context.Context, load func(ctx context.Context) (map[string]string, error)) (map[string]string, error)
	// Publish 通知其他实例文档已变更
	Publish(ctx context.Context, payload []byte) error
	// Subscribe 阻塞接收其他实例的变更通知，直到 ctx 结束
	Subscribe(ctx context.Context, handle func(payload []byte)) error
}

// 具体实现：基于 redis 的 DocumentCache
// UniversalClient 同时覆盖单节点和集群
type redisDocument struct {
	rdb  redis.UniversalClient
	name string
	sf   singleflight.Group
}

func NewRedisDocument(rdb redis.UniversalClient, name string) DocumentCache {
	if name == "" {
		name = "default"
	}
	return &redisDocument{rdb: rdb, name: name}
}

func (c *redisDocument) Get(ctx context.Context) (map[string]string, bool, error) {
	b, err := c.rdb.Get(ctx, documentKey(c.name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var blocks map[string]string
	if err := json.Unmarshal(b, &blocks); err != nil {
		// 脏数据当作未命中，回源后会被覆盖
		return nil, false, nil
	}
	if blocks == nil {
		blocks = make(map[string]string)
	}
	return blocks, true, nil
}

func (c *redisDocument) Invalidate(ctx context.Context) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(c.name))
		pipe.Del(ctx, documentKey(c.name))
		return nil
	})
	return err
}

func (c *redisDocument) version(ctx context.Context, get func(ctx context.Context, key string) *redis.StringCmd) (int64, error) {
	v, err := get(ctx, versionKey(c.name)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// fill 仅当版本号仍为 ver 时写入快照
func (c *redisDocument) fill(ctx context.Context, ver int64, blocks map[string]string) error {
	if blocks == nil {
		blocks = make(map[string]string)
	}
	b, err := json.Marshal(blocks)
	if err != nil {
		return err
	}
	return c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := c.version(ctx, tx.Get)
		if err != nil {
			return err
		}
		if cur != ver {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, documentKey(c.name), b, getRandomTTL())
			return nil
		})
		return err
	}, versionKey(c.name))
}

func (c *redisDocument) GetOrLoad(ctx context.Context, load func(ctx context.Context) (map[string]string, error)) (map[string]string, error) {
	v, err, _ := c.sf.Do(c.name, func() (interface{}, error) {
		blocks, hit, err := c.Get(ctx)
		if err == nil && hit {
			return blocks, nil
		}
		// 先取版本号再回源；取不到版本号（redis 不可用）就只回源不回填
		ver, verErr := c.version(ctx, c.rdb.Get)
		blocks, err = load(ctx)
		if err != nil {
			return nil, err
		}
		if verErr == nil {
			if err := c.fill(ctx, ver, blocks); err != nil &&
				!errors.Is(err, errStaleFill) && !errors.Is(err, redis.TxFailedErr) {
				log.Printf("cache fill failed doc=%s: %v", c.name, err)
			}
		}
		return blocks, nil
	})
	if err != nil {
		return nil, err
	}
	blocks, ok := v.(map[string]string)
	if !ok {
		return nil, errors.New("internal type error")
	}
	// singleflight 的结果被多个调用方共享，各自拿一份拷贝
	out := make(map[string]string, len(blocks))
	for k, val := range blocks {
		out[k] = val
	}
	return out, nil
}

func (c *redisDocument) Publish(ctx context.Context, payload []byte) error {
	return c.rdb.Publish(ctx, updatesChannel(c.name), payload).Err()
}

func (c *redisDocument) Subscribe(ctx context.Context, handle func(payload []byte)) error {
	pubsub := c.rdb.Subscribe(ctx, updatesChannel(c.name))
	defer pubsub.Close()
	// 确认订阅成功后再开始转发
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handle([]byte(msg.Payload))
		}
	}
}
