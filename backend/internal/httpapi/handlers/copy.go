package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"copyEditor/backend/internal/blocks"
)

const DefaultMaxBodyBytes int64 = 2 << 20

const (
	expectedBody = "Expected JSON body: { blocks: { [id]: string } }"
	// 存储错误的细节（文件路径、DSN 等）只写日志
	readFailed  = "failed to read document"
	writeFailed = "failed to save document"
)

type CopyHandler struct {
	svc     blocks.Service
	maxBody int64
}

func NewCopyHandler(svc blocks.Service, maxBody int64) *CopyHandler {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &CopyHandler{svc: svc, maxBody: maxBody}
}

// blocks 缺失、为 null、不是对象、或值不是字符串时绑定失败
type copyReq struct {
	Blocks map[string]string `json:"blocks" binding:"required"`
}

// GET /api/copy
func (h *CopyHandler) GetCopy() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := h.svc.Load(c.Request.Context())
		if err != nil {
			log.Printf("GET /api/copy: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": readFailed})
			return
		}
		if doc == nil {
			doc = map[string]string{}
		}
		// PureJSON 不转义 <>，内容本身就是 HTML
		c.PureJSON(http.StatusOK, gin.H{"blocks": doc})
	}
}

// POST /api/copy
func (h *CopyHandler) PostCopy() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)

		var req copyReq
		if err := c.ShouldBindJSON(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": expectedBody})
			return
		}

		if err := h.svc.Merge(c.Request.Context(), req.Blocks); err != nil {
			log.Printf("POST /api/copy: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": writeFailed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
