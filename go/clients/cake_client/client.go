package cake_client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/birthdaycake/go/internal/cake/protocol"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned by Send after the connection has closed.
var ErrClosed = errors.New("cake client closed")

// Handler receives connection events. Calls come from a single goroutine.
type Handler interface {
	OnOpen()
	OnClose()
	OnError(err error)
	OnMessage(msg protocol.ServerMessage)
}

// Options configures a Client.
type Options struct {
	URL              string
	Handler          Handler
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// Client is a websocket connection to a cake gateway.
type Client struct {
	conn    *websocket.Conn
	handler Handler
	timeout time.Duration

	writeMu sync.Mutex
	buf     []byte

	closing   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the gateway at opts.URL and starts delivering messages to
// opts.Handler.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.Handler == nil {
		return nil, fmt.Errorf("cake client: handler is required")
	}
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 10 * time.Second
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: opts.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", opts.URL, err)
	}

	c := &Client{
		conn:    conn,
		handler: opts.Handler,
		timeout: opts.WriteTimeout,
		done:    make(chan struct{}),
	}

	log.Info().Str("url", opts.URL).Msg("connected to cake gateway")

	go c.readLoop()
	return c, nil
}

// Send encodes msg and writes it to the gateway.
func (c *Client) Send(msg protocol.ClientMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.buf = protocol.AppendClientMessage(c.buf[:0], msg)
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, c.buf); err != nil {
		return fmt.Errorf("failed to send client message: %w", err)
	}
	return nil
}

// Done is closed once the connection has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close sends a close frame and tears the connection down.
func (c *Client) Close() error {
	if c.closing.Swap(true) {
		return nil
	}
	select {
	case <-c.done:
		return nil
	default:
	}

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	c.shutdown()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("failed to send close frame: %w", err)
	}
	return nil
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
}

func (c *Client) readLoop() {
	defer func() {
		c.shutdown()
		close(c.done)
		c.handler.OnClose()
	}()

	c.handler.OnOpen()

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			expected := errors.As(err, &closeErr) && (closeErr.Code == websocket.CloseNormalClosure ||
				closeErr.Code == websocket.CloseGoingAway ||
				closeErr.Code == websocket.CloseNoStatusReceived)
			if !expected && !c.closing.Load() {
				c.handler.OnError(fmt.Errorf("connection lost: %w", err))
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		msg, err := protocol.DecodeServerMessage(data)
		if err != nil {
			c.handler.OnError(err)
			continue
		}
		c.handler.OnMessage(msg)
	}
}
