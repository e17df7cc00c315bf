package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"courier/internal/message"
	"courier/internal/relay"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one realtime connection. It is the connection handle the relay
// binds identities to. Outbound frames wait in an unbounded queue until the
// write pump picks them up, so a push only fails once the client is closed.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	queue   [][]byte
	notify  chan struct{}
	id      string
	session *relay.Session
	closed  bool
	mu      sync.Mutex
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		notify: make(chan struct{}, 1),
		id:     uuid.NewString(),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Deliver queues a chat message for the write pump.
func (c *Client) Deliver(msg message.Message) error {
	return c.SendMessage(&WSMessage{
		Type: TypeMessage,
		Payload: MessagePayload{
			SenderEmail: msg.SenderKey,
			Message:     msg.Body,
			Timestamp:   msg.Timestamp,
		},
	})
}

func (c *Client) Authenticated(success bool) error {
	return c.SendMessage(&WSMessage{
		Type:    TypeAuthentication,
		Payload: AuthenticationPayload{Success: success},
	})
}

func (c *Client) SendError(code, text string) error {
	return c.SendMessage(&WSMessage{
		Type: TypeError,
		Payload: ErrorPayload{
			Code:    code,
			Message: text,
		},
	})
}

// SendMessage never blocks. It fails only after Close.
func (c *Client) SendMessage(msg *WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.queue = append(c.queue, data)
	c.mu.Unlock()

	c.wake()
	return nil
}

func (c *Client) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// take hands the write pump everything queued so far.
func (c *Client) take() ([][]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	frames := c.queue
	c.queue = nil
	return frames, c.closed
}

func (c *Client) queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug().Err(err).Str("conn", c.id).Msg("read error")
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.SendError(CodeInvalidJSON, "Invalid JSON message")
			continue
		}

		c.hub.HandleMessage(c, &msg)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.notify:
			frames, closed := c.take()
			for _, data := range frames {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			}
			if closed {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close stops the write pump. It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.wake()
}
