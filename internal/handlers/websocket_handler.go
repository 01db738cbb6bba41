package handlers

import (
	"github.com/gin-gonic/gin"

	"twister-backend/internal/services"
)

// WebSocketHandler streams coordinator transitions
type WebSocketHandler struct {
	pushService *services.WebSocketPushService
}

func NewWebSocketHandler(pushService *services.WebSocketPushService) *WebSocketHandler {
	return &WebSocketHandler{pushService: pushService}
}

// HandleWebSocket GET /api/ws
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	h.pushService.HandleWebSocket(c.Writer, c.Request)
}
