package ws

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

const sendQueueSize = 32

type Conn struct {
	ws   *websocket.Conn
	hub  *Hub
	send chan ServerMessage

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func NewConn(ws *websocket.Conn, hub *Hub) *Conn {
	return &Conn{ws: ws, hub: hub, send: make(chan ServerMessage, sendQueueSize)}
}

// Enqueue 非阻塞入队，队列满时丢弃（慢订阅者不能拖住保存请求）
func (c *Conn) Enqueue(msg ServerMessage) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		c.hub.Leave(c)
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
}

// readLoop 只用来感知断开，客户端发来的内容全部忽略
func (c *Conn) readLoop() {
	defer c.close()
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws read error: %v", err)
			}
			return
		}
	}
}

func (c *Conn) writeLoop() {
	for msg := range c.send {
		if err := c.ws.WriteJSON(msg); err != nil {
			log.Printf("ws write error: %v", err)
			_ = c.ws.Close()
			return
		}
	}
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
