package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"messenger/internal/identity"
	"messenger/internal/protocol"
	"messenger/internal/status"

	"go.uber.org/zap"
)

var ErrHubClosed = errors.New("hub closed")

// Presence 记录用户的 WebSocket 在线状态
type Presence interface {
	SetOnline(ctx context.Context, user identity.StorageKey, connType string, online bool) error
}

// 更新在线状态的超时
const presenceTimeout = 2 * time.Second

// Hub 管理本实例上的连接，一个用户可以有多个连接
type Hub struct {
	mu      sync.RWMutex
	clients map[identity.StorageKey]map[*Client]struct{}
	closed  bool

	presence Presence
	log      *zap.SugaredLogger
}

// NewHub 创建一个新的Hub实例，presence 可以为 nil
func NewHub(presence Presence, log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:  make(map[identity.StorageKey]map[*Client]struct{}),
		presence: presence,
		log:      log,
	}
}

// Register 注册连接
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	set, ok := h.clients[c.user]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.user] = set
	}
	set[c] = struct{}{}
	n := len(set)
	h.mu.Unlock()

	h.log.Infow("客户端已注册", "user", c.user, "connections", n)
	if n == 1 {
		h.setPresence(c.user, true)
	}
	return nil
}

// Unregister 注销连接并关闭它。可以重复调用
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.user]
	if !ok {
		h.mu.Unlock()
		c.close()
		return
	}
	_, present := set[c]
	delete(set, c)
	remaining := len(set)
	if remaining == 0 {
		delete(h.clients, c.user)
	}
	h.mu.Unlock()

	c.close()
	if !present {
		return
	}
	h.log.Infow("客户端已注销", "user", c.user, "connections", remaining)
	if remaining == 0 {
		h.setPresence(c.user, false)
	}
}

func (h *Hub) setPresence(user identity.StorageKey, online bool) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	if err := h.presence.SetOnline(ctx, user, status.ConnWebSocket, online); err != nil {
		h.log.Warnw("更新在线状态失败", "user", user, "online", online, "error", err)
	}
}

// Connected 返回用户在本实例上的连接数
func (h *Hub) Connected(user identity.StorageKey) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[user])
}

// Deliver 把事件推送给接收者的所有连接，返回成功放入发送缓冲的连接数
func (h *Hub) Deliver(event protocol.Event) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[identity.StorageKey(event.RecipientID)]))
	for c := range h.clients[identity.StorageKey(event.RecipientID)] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	frame := Frame{Type: FrameEvent, Event: &event, Timestamp: time.Now().Unix()}
	delivered := 0
	for _, c := range targets {
		if c.enqueue(frame) {
			delivered++
		}
	}
	return delivered
}

// Close 关闭所有连接，之后的注册会失败
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*Client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	for _, c := range all {
		h.Unregister(c)
	}
	h.log.Infow("Hub已关闭", "connections", len(all))
}
