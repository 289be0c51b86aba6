package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/transport"
)

// Client dials a WebSocket server and exchanges transport frames.
// Inbound frames are dispatched through a handler registry.
type Client struct {
	url          string
	writeTimeout time.Duration

	registry     *transport.HandlerRegistry
	onDisconnect func(err error)

	conn      *websocket.Conn
	writeMu   sync.Mutex
	connected atomic.Bool

	lifecycleMu sync.Mutex
	wg          sync.WaitGroup

	logger *slog.Logger
}

var _ transport.Conn = (*Client)(nil)

// ClientOption configures optional client behavior.
type ClientOption func(*Client)

// WithRegistry sets the registry inbound frames are dispatched through.
func WithRegistry(r *transport.HandlerRegistry) ClientOption {
	return func(c *Client) { c.registry = r }
}

// WithDisconnectFunc registers a callback fired when the read loop ends.
func WithDisconnectFunc(fn func(err error)) ClientOption {
	return func(c *Client) { c.onDisconnect = fn }
}

// WithWriteTimeout bounds each outbound write.
func WithWriteTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.writeTimeout = d }
}

// NewClient creates a client for the given ws:// or wss:// URL.
func NewClient(url string, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		url:          url,
		writeTimeout: 10 * time.Second,
		logger:       logger.With("component", "websocket_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the server and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.connected.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Client", "Connect", c.url)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return errors.WrapTransient(err, "Client", "Connect", "dial "+c.url)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c.conn = conn
	c.connected.Store(true)

	c.wg.Add(1)
	go c.readLoop(conn)

	c.logger.Info("connected", "url", c.url)
	return nil
}

// IsConnected reports whether the connection is live.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Send writes one frame to the server.
func (c *Client) Send(ctx context.Context, msg transport.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if !c.connected.Load() {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Send", c.url)
	}
	if err := ctx.Err(); err != nil {
		return errors.WrapTransient(err, "Client", "Send", "context done")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return errors.WrapIO(err, "Client", "Send", "encode frame")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.WrapTransient(err, "Client", "Send", "write frame")
	}
	return nil
}

// Close sends a close frame, tears down the connection, and waits for
// the read loop to finish. Safe to call more than once.
func (c *Client) Close() error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if !c.connected.Swap(false) {
		return nil
	}

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	err := c.conn.Close()
	c.wg.Wait()

	if err != nil {
		return errors.WrapTransient(err, "Client", "Close", c.url)
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	var readErr error
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}

		var msg transport.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("malformed frame", "error", err)
			continue
		}
		if c.registry != nil {
			if err := c.registry.Dispatch(msg.Address, msg.Args); err != nil {
				c.logger.Debug("no handler for frame", "address", msg.Address)
			}
		}
	}

	wasConnected := c.connected.Swap(false)
	if c.onDisconnect != nil && wasConnected {
		c.onDisconnect(readErr)
	}
}
