package ws

import (
	"encoding/json"
	"log"
	"sync"

	"copyEditor/backend/internal/events"
)

// Hub 维护所有订阅了文档变更的连接。只有一份文档，所以不分房间。
type Hub struct {
	mu    sync.RWMutex
	conns map[*Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[*Conn]struct{})}
}

func (h *Hub) Join(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *Hub) Leave(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) Broadcast(msg ServerMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		c.Enqueue(msg)
	}
}

// BroadcastMerged 把一次合并写入通知给所有订阅者
func (h *Hub) BroadcastMerged(evt events.BlocksMergedEvent) {
	at := evt.MergedAt
	h.Broadcast(ServerMessage{
		Type:     TypeBlocksMerged,
		Document: evt.Document,
		EventID:  evt.EventID,
		Keys:     evt.Keys,
		MergedAt: &at,
	})
}

// RelayMerged 返回 redis pub/sub 的回调：把其他实例发布的合并事件推给本实例的订阅者。
// self 是本实例标识，自己发布的事件已经在本地广播过，跳过。
func (h *Hub) RelayMerged(self string) func(payload []byte) {
	return func(payload []byte) {
		var evt events.BlocksMergedEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			log.Printf("relay: bad merge event: %v", err)
			return
		}
		if evt.EventType != events.EventBlocksMerged || evt.Origin == self {
			return
		}
		h.BroadcastMerged(evt)
	}
}
