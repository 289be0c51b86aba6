// Package websocket carries bridge messages over WebSocket using
// JSON frames of the form {"address": "...", "args": [...]}.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/c360/maxbridge/config"
	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/security"
	"github.com/c360/maxbridge/transport"
)

// MessageHandler receives each inbound frame with the id of the client
// that sent it.
type MessageHandler func(clientID string, msg transport.Message)

// client is one accepted connection.
type client struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
	once    sync.Once
}

// Server accepts WebSocket connections and fans inbound frames into the
// message handler. Each client gets a generated id used for security
// accounting and targeted sends.
type Server struct {
	addr         string
	path         string
	readTimeout  time.Duration
	writeTimeout time.Duration

	handler      MessageHandler
	policy       *security.Policy
	onConnect    func(clientID string)
	onDisconnect func(clientID string)

	upgrader   websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener

	clients   map[string]*client
	clientsMu sync.RWMutex

	lifecycleMu sync.Mutex
	running     bool
	shutdown    chan struct{}
	wg          sync.WaitGroup

	logger *slog.Logger
}

// ServerOption configures optional server behavior.
type ServerOption func(*Server)

// WithHandler sets the inbound message handler.
func WithHandler(h MessageHandler) ServerOption {
	return func(s *Server) { s.handler = h }
}

// WithPolicy applies a security policy to inbound frames.
func WithPolicy(p *security.Policy) ServerOption {
	return func(s *Server) { s.policy = p }
}

// WithConnectHooks registers callbacks for client connect/disconnect.
func WithConnectHooks(onConnect, onDisconnect func(clientID string)) ServerOption {
	return func(s *Server) {
		s.onConnect = onConnect
		s.onDisconnect = onDisconnect
	}
}

// WithPath overrides the WebSocket endpoint path (default /ws).
func WithPath(path string) ServerOption {
	return func(s *Server) { s.path = path }
}

// NewServer creates a server from the transport configuration.
func NewServer(cfg config.TransportConfig, logger *slog.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:         cfg.ListenAddr,
		path:         "/ws",
		readTimeout:  time.Duration(cfg.ReadTimeout) * time.Millisecond,
		writeTimeout: time.Duration(cfg.WriteTimeout) * time.Millisecond,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
		logger:  logger.With("component", "websocket_server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the listener and begins serving. Non-blocking; the accept
// loop runs in a background goroutine.
func (s *Server) Start() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.running {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Start",
			"websocket server")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.WrapIO(err, "Server", "Start", "bind "+s.addr)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleUpgrade)

	s.listener = ln
	s.httpServer = &http.Server{Handler: mux}
	s.shutdown = make(chan struct{})
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("serve failed", "error", err)
		}
	}()

	s.logger.Info("websocket server started", "addr", ln.Addr().String(), "path", s.path)
	return nil
}

// Addr returns the bound listen address, useful when the configured
// address uses port 0.
func (s *Server) Addr() string {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down and closes every client connection.
func (s *Server) Stop(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.shutdown)

	err := s.httpServer.Shutdown(ctx)

	s.clientsMu.Lock()
	for _, c := range s.clients {
		s.closeClient(c)
	}
	s.clients = make(map[string]*client)
	s.clientsMu.Unlock()

	s.wg.Wait()

	if err != nil {
		return errors.WrapTransient(err, "Server", "Stop", "http shutdown")
	}
	s.logger.Info("websocket server stopped")
	return nil
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Broadcast sends a message to every connected client. Clients that
// fail the write are dropped.
func (s *Server) Broadcast(ctx context.Context, msg transport.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.WrapIO(err, "Server", "Broadcast", "encode frame")
	}

	s.clientsMu.RLock()
	targets := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		targets = append(targets, c)
	}
	s.clientsMu.RUnlock()

	for _, c := range targets {
		select {
		case <-ctx.Done():
			return errors.WrapTransient(ctx.Err(), "Server", "Broadcast", "context done")
		default:
		}
		if err := s.writeTo(c, data); err != nil {
			s.logger.Warn("dropping client after failed write", "client", c.id, "error", err)
			s.removeClient(c)
		}
	}
	return nil
}

// SendTo sends a message to one client.
func (s *Server) SendTo(ctx context.Context, clientID string, msg transport.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.WrapTransient(err, "Server", "SendTo", "context done")
	}

	s.clientsMu.RLock()
	c, ok := s.clients[clientID]
	s.clientsMu.RUnlock()
	if !ok {
		return errors.WrapNotFound(errors.ErrNoConnection, "Server", "SendTo",
			"client "+clientID)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return errors.WrapIO(err, "Server", "SendTo", "encode frame")
	}
	if err := s.writeTo(c, data); err != nil {
		s.removeClient(c)
		return errors.WrapTransient(err, "Server", "SendTo", "write to "+clientID)
	}
	return nil
}

func (s *Server) writeTo(c *client, data []byte) error {
	if c.closed.Load() {
		return errors.ErrConnectionLost
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if s.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)
		return
	}

	c := &client{id: uuid.NewString(), conn: conn}
	if s.policy != nil {
		conn.SetReadLimit(int64(s.policy.MaxMessageSize()))
	}

	s.clientsMu.Lock()
	s.clients[c.id] = c
	s.clientsMu.Unlock()

	s.logger.Debug("client connected", "client", c.id, "remote", r.RemoteAddr)
	if s.onConnect != nil {
		s.onConnect(c.id)
	}

	s.wg.Add(1)
	go s.readLoop(c)
}

func (s *Server) readLoop(c *client) {
	defer s.wg.Done()
	defer s.removeClient(c)

	for {
		select {
		case <-s.shutdown:
			return
		default:
		}

		if s.readTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		if s.policy != nil {
			if err := s.policy.ValidateMessage(c.id, len(data)); err != nil {
				s.logger.Warn("frame rejected", "client", c.id, "error", err)
				if errors.Is(err, errors.ErrRateLimited) {
					continue
				}
				return
			}
		}

		var msg transport.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("malformed frame", "client", c.id, "error", err)
			continue
		}
		if err := msg.Validate(); err != nil {
			s.logger.Warn("invalid frame", "client", c.id, "error", err)
			continue
		}

		if s.handler != nil {
			s.handler(c.id, msg)
		}
	}
}

func (s *Server) removeClient(c *client) {
	c.once.Do(func() {
		c.closed.Store(true)
		_ = c.conn.Close()

		s.clientsMu.Lock()
		delete(s.clients, c.id)
		s.clientsMu.Unlock()

		if s.policy != nil {
			s.policy.ForgetClient(c.id)
		}
		if s.onDisconnect != nil {
			s.onDisconnect(c.id)
		}
		s.logger.Debug("client disconnected", "client", c.id)
	})
}

func (s *Server) closeClient(c *client) {
	c.closed.Store(true)
	_ = c.conn.Close()
}
