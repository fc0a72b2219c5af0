package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	realtimeTypes "github.com/shaneholloman/automaker/pkg/realtime"
)

const (
	outboundBufferSize = 64
	writeWait          = 10 * time.Second
)

// Client is one WebSocket connection with its topic subscriptions and a
// bounded outbound queue. Queue never blocks; the hub drops the client
// when the queue overflows.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan realtimeTypes.ServerEnvelope
	mu     sync.RWMutex
	topics map[string]struct{}
	close  sync.Once
}

func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		id:     id,
		conn:   conn,
		send:   make(chan realtimeTypes.ServerEnvelope, outboundBufferSize),
		topics: make(map[string]struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Queue(msg realtimeTypes.ServerEnvelope) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// WriteLoop drains the outbound queue onto the connection. It returns on
// the first write failure; the read side notices the closed connection
// and unregisters the client.
func (c *Client) WriteLoop() {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (c *Client) Close() {
	c.close.Do(func() {
		_ = c.conn.Close()
		close(c.send)
	})
}

func (c *Client) Subscribe(topics []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, topic := range topics {
		c.topics[topic] = struct{}{}
	}
}

func (c *Client) Unsubscribe(topics []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, topic := range topics {
		delete(c.topics, topic)
	}
}

func (c *Client) IsSubscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.topics[topic]
	return ok
}
