package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"copyEditor/backend/internal/blocks"
	"copyEditor/backend/internal/httpapi/handlers"
	"copyEditor/backend/internal/httpapi/middleware"
	"copyEditor/backend/internal/ws"
)

type RouterOptions struct {
	EnableCORS   bool
	MaxBodyBytes int64
	// websocket 额外放行的 Origin
	WSOrigins []string
	// 关闭请求日志（测试用）
	Quiet bool
}

// NewRouter 组装 /api/copy、/api/copy/ws 与 /healthz
// hub 为 nil 时不挂载 websocket 路由
func NewRouter(svc blocks.Service, hub *ws.Hub, opt RouterOptions) *gin.Engine {
	r := gin.New()
	if !opt.Quiet {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	if opt.EnableCORS {
		r.Use(middleware.CORS())
	}

	h := handlers.NewCopyHandler(svc, opt.MaxBodyBytes)
	api := r.Group("/api")
	{
		api.GET("/copy", h.GetCopy())
		api.POST("/copy", h.PostCopy())
		if hub != nil {
			api.GET("/copy/ws", ws.NewManager(hub, opt.WSOrigins).WebSocketConnect)
		}
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}
