package ws

import "sync"

// Client is one websocket session. The send queue is bounded and drained by
// a single writer goroutine; it is never closed, done signals shutdown.
type Client struct {
	Info ConnInfo

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(info ConnInfo, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = sendQueueSize
	}
	return &Client{
		Info: info,
		send: make(chan []byte, queueSize),
		done: make(chan struct{}),
	}
}

// Enqueue hands payload to the writer without blocking. It reports false when
// the client is closed or its queue is full.
func (c *Client) Enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close is idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
