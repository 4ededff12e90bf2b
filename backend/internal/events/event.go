package events

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

const EventBlocksMerged = "BLOCKS_MERGED"

type BlocksMergedEvent struct {
	EventType string    `json:"eventType"` // 固定 "BLOCKS_MERGED"
	EventID   string    `json:"eventId"`
	Document  string    `json:"document"`
	Keys      []string  `json:"keys"` // 本次写入涉及的 block key（已排序）
	MergedAt  time.Time `json:"mergedAt"`
	Origin    string    `json:"origin,omitempty"` // 产生该事件的服务实例
}

func NewBlocksMergedEvent(document string, blocks map[string]string) BlocksMergedEvent {
	keys := make([]string, 0, len(blocks))
	for k := range blocks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return BlocksMergedEvent{
		EventType: EventBlocksMerged,
		EventID:   uuid.NewString(),
		Document:  document,
		Keys:      keys,
		MergedAt:  time.Now().UTC(),
	}
}
