package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/wfunc/countdown-game/internal/config"
	"github.com/wfunc/countdown-game/internal/middleware"
	ws "github.com/wfunc/countdown-game/internal/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler WebSocket处理器
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *ws.Hub, cfg config.WebSocketConfig, logger *zap.Logger) *WebSocketHandler {
	readSize, writeSize := cfg.ReadBufferSize, cfg.WriteBufferSize
	if readSize <= 0 {
		readSize = 1024
	}
	if writeSize <= 0 {
		writeSize = 1024
	}
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readSize,
			WriteBufferSize: writeSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// Connect 建立推送连接，session_id 查询参数指定订阅的对局
func (h *WebSocketHandler) Connect(c *gin.Context) {
	playerID, _ := middleware.GetPlayerID(c)
	sessionID := c.Query("session_id")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket升级失败",
			zap.String("player_id", playerID),
			zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, playerID, sessionID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
