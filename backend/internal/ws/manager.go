package ws

import (
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// originAllowed 判断 websocket 握手的 Origin：
// 无 Origin（非浏览器客户端）、同 host、回环地址、或在 allowed 列表中（"*" 表示全部）
func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(strings.TrimRight(a, "/"), origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type Manager struct {
	h        *Hub
	upgrader websocket.Upgrader
}

// allowedOrigins 为额外放行的页面来源，例如 https://www.example.com
func NewManager(h *Hub, allowedOrigins []string) *Manager {
	m := &Manager{h: h}
	m.upgrader.CheckOrigin = func(r *http.Request) bool {
		return originAllowed(r, allowedOrigins)
	}
	return m
}

func (m *Manager) WebSocketConnect(c *gin.Context) {
	conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v (origin=%s)", err, c.Request.Header.Get("Origin"))
		return
	}
	defer conn.Close()

	wsConn := NewConn(conn, m.h)
	m.h.Join(wsConn)

	// 先启动写循环，再发 welcome
	go wsConn.writeLoop()
	wsConn.Enqueue(ServerMessage{Type: TypeWelcome, Content: "subscribed to copy updates"})

	// 阻塞至连接关闭
	wsConn.readLoop()
}
