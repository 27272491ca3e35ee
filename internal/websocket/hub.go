package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/wfunc/countdown-game/internal/game"
	"go.uber.org/zap"
)

// Message WebSocket消息
type Message struct {
	Type      string          `json:"type"` // 消息类型
	PlayerID  string          `json:"player_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"` // 消息数据
	Timestamp int64           `json:"timestamp"`      // 时间戳
}

// 系统消息类型，对局消息直接使用 game.EventType
const (
	MessageTypeConnected = "connected"
	MessageTypeSubscribe = "subscribe"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"
)

// Hub WebSocket连接管理中心，按对局分组推送协调器通知
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	sessions map[string]map[string]*Client

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	heartbeat time.Duration
	logger    *zap.Logger
}

// NewHub 创建Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		sessions:   make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		heartbeat:  30 * time.Second,
		logger:     logger,
	}
}

// Run 运行Hub，ctx 取消后关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.heartbeat)
	defer func() {
		ticker.Stop()
		close(h.done)
		h.closeAll()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case <-ticker.C:
			h.broadcast(&Message{Type: MessageTypePing, Timestamp: time.Now().Unix()})
		}
	}
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	sessionID := client.SessionID
	if sessionID != "" {
		h.joinLocked(client, sessionID)
	}
	h.mu.Unlock()

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.String("player_id", client.PlayerID),
		zap.String("session_id", sessionID))

	data, _ := json.Marshal(map[string]string{"client_id": client.ID})
	h.SendToClient(client.ID, &Message{
		Type:      MessageTypeConnected,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		h.leaveLocked(client)
		close(client.Send)
	}
	h.mu.Unlock()

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID),
		zap.String("player_id", client.PlayerID))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.Send)
	}
	h.sessions = make(map[string]map[string]*Client)
}

func (h *Hub) joinLocked(client *Client, sessionID string) {
	members, ok := h.sessions[sessionID]
	if !ok {
		members = make(map[string]*Client)
		h.sessions[sessionID] = members
	}
	members[client.ID] = client
	client.SessionID = sessionID
}

func (h *Hub) leaveLocked(client *Client) {
	if client.SessionID == "" {
		return
	}
	if members, ok := h.sessions[client.SessionID]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.sessions, client.SessionID)
		}
	}
	client.SessionID = ""
}

// Subscribe 把客户端切换到指定对局
func (h *Hub) Subscribe(client *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	h.leaveLocked(client)
	h.joinLocked(client, sessionID)
}

// OnEvent 实现 game.Listener，把通知推送给订阅该对局的客户端
func (h *Hub) OnEvent(n game.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		h.logger.Error("序列化通知失败", zap.Error(err))
		return
	}
	h.SendToSession(n.SessionID, &Message{
		Type:      string(n.Type),
		PlayerID:  n.PlayerID,
		SessionID: n.SessionID,
		Data:      data,
		Timestamp: n.Timestamp.Unix(),
	})
}

// SendToClient 发送消息给指定客户端
func (h *Hub) SendToClient(clientID string, message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}
	select {
	case client.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// SendToSession 发送消息给订阅对局的所有客户端，返回送达数
func (h *Hub) SendToSession(sessionID string, message *Message) int {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("序列化消息失败", zap.Error(err))
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for _, client := range h.sessions[sessionID] {
		select {
		case client.Send <- data:
			sent++
		default:
			h.logger.Warn("会话客户端发送缓冲区满",
				zap.String("client_id", client.ID),
				zap.String("session_id", sessionID))
		}
	}
	return sent
}

func (h *Hub) broadcast(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
		}
	}
}

// OnlineCount 在线连接数
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SessionCount 订阅指定对局的连接数
func (h *Hub) SessionCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}
