package ws

import (
	"sync"
	"time"

	"messenger/internal/identity"
	"messenger/internal/protocol"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// 连接参数
const (
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 10000
	sendBuffer     = 256
)

// 帧类型
const (
	FrameEvent = "event"
	FramePing  = "ping"
	FramePong  = "pong"
	FrameError = "error"
)

// Frame 服务端与客户端之间的 JSON 帧
type Frame struct {
	Type      string          `json:"type"`
	Event     *protocol.Event `json:"event,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Client 一个 WebSocket 连接
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	user identity.StorageKey
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(hub *Hub, conn *websocket.Conn, user identity.StorageKey) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		user: user,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// User 连接所属账户
func (c *Client) User() identity.StorageKey { return c.user }

// enqueue 放入发送缓冲，连接已关闭或缓冲已满时返回 false
func (c *Client) enqueue(frame Frame) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		c.hub.log.Warnw("序列化帧失败", "user", c.user, "error", err)
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	default:
		c.hub.log.Warnw("发送缓冲区已满", "user", c.user)
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump 读取客户端帧。客户端只发送 ping，消息通过 HTTP 接口发送
func (c *Client) readPump() {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warnw("WebSocket读取错误", "user", c.user, "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.enqueue(Frame{Type: FrameError, Error: "无效的帧", Timestamp: time.Now().Unix()})
			continue
		}

		switch frame.Type {
		case FramePing:
			c.enqueue(Frame{Type: FramePong, Timestamp: time.Now().Unix()})
		default:
			c.enqueue(Frame{Type: FrameError, Error: "不支持的帧类型: " + frame.Type, Timestamp: time.Now().Unix()})
		}
	}
}

// writePump 把发送缓冲写到连接，并定期发送 ping 帧
func (c *Client) writePump() {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.hub.log.Warnw("WebSocket写入失败", "user", c.user, "error", err)
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
