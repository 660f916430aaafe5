// Package websocket implements transport.Socket over a gorilla websocket
// connection to the session relay endpoint.
package websocket

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/ljubanic/parley-core/core/events"
	"github.com/ljubanic/parley-core/core/transport"
)

type Client struct {
	baseURL string
	header  http.Header

	connMu sync.Mutex
	conn   *websocket.Conn

	eventsCh chan events.Event
	closed   chan struct{}
	once     sync.Once
}

type ClientOption func(*Client)

func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		c.header = header
	}
}

// NewClient creates a disconnected socket for the relay at baseURL
// (ws:// or wss://).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	client := &Client{
		baseURL:  baseURL,
		eventsCh: make(chan events.Event, 32),
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) Connect(ctx context.Context, sessionID string) error {
	socketUrl, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid relay url: %w", err)
	}
	socketUrl = socketUrl.JoinPath("sessions", sessionID)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, socketUrl.String(), c.header)
	if err != nil {
		return fmt.Errorf("failed to open socket connection to relay: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	go c.readAndDecodeMessages(conn)

	return nil
}

func (c *Client) Send(event events.Event) error {
	data, err := transport.Encode(event)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("socket not connected")
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write to relay socket: %w", err)
	}
	return nil
}

// Events returns the inbound event stream. The channel closes when the
// socket disconnects.
func (c *Client) Events() <-chan events.Event {
	return c.eventsCh
}

func (c *Client) Disconnect() error {
	c.once.Do(func() { close(c.closed) })

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close relay socket cleanly: %w", err)
	}
	return nil
}

func (c *Client) readAndDecodeMessages(conn *websocket.Conn) {
	defer close(c.eventsCh)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				log.Println("Failed to read relay socket message", "error", err)
			}

			c.connMu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.connMu.Unlock()
			conn.Close()
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		event, err := transport.Decode(msg)
		if err != nil {
			log.Println("Failed to decode relay event", "error", err)
			continue
		}

		select {
		case c.eventsCh <- event:
		case <-c.closed:
			return
		}
	}
}
