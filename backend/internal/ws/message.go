package ws

import "time"

const (
	TypeWelcome      = "welcome"
	TypeBlocksMerged = "blocks_merged"
)

type ServerMessage struct {
	Type     string     `json:"type"`
	Document string     `json:"document,omitempty"`
	EventID  string     `json:"eventId,omitempty"`
	Keys     []string   `json:"keys,omitempty"`
	MergedAt *time.Time `json:"mergedAt,omitempty"`
	Content  string     `json:"content,omitempty"`
}
