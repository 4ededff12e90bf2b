package cache

import (
	"math/rand"
	"time"
)

const (
	BaseTTL = 24 * time.Hour   // 基础过期时间
	Jitter  = 60 * time.Minute // 随机抖动范围
)

// 随机 TTL，防止缓存同时过期
func getRandomTTL() time.Duration {
	return BaseTTL + time.Duration(rand.Int63n(int64(Jitter)))
}
