// ABOUTME: Gateway orchestrator: websocket accept, authentication gate, lifecycle
// ABOUTME: Owns the registries, the dispatcher queue, and the HTTP server

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/bylexa/bylexa-gateway/internal/auth"
	"github.com/bylexa/bylexa-gateway/internal/config"
	"github.com/bylexa/bylexa-gateway/internal/dedupe"
	"github.com/bylexa/bylexa-gateway/internal/intent"
)

// commandDedupeTTL bounds how long a command's result is replayable
// for retries carrying the same message_id.
const commandDedupeTTL = 5 * time.Minute

// Gateway accepts persistent client connections, authenticates them,
// tracks room membership and event subscriptions, and serializes all
// state-mutating traffic through one ordered queue.
type Gateway struct {
	cfg      *config.Config
	logger   *slog.Logger
	verifier auth.Verifier
	interp   intent.Interpreter

	conns *connRegistry
	rooms *roomRegistry
	subs  *subscriptionRegistry

	queue          chan workItem
	handlers       map[action]handlerFunc
	dedupe         *dedupe.Cache
	shutdownCh     chan struct{}
	dispatcherDone chan struct{}

	httpServer *http.Server
	upgrader   websocket.Upgrader

	baseCtx context.Context
}

// Options configures a Gateway. Config is required; nil Verifier and
// Interpreter are built from the config (Verifier falls back to the
// configured chain, Interpreter to intent.Unconfigured).
type Options struct {
	Config      *config.Config
	Logger      *slog.Logger
	Verifier    auth.Verifier
	Interpreter intent.Interpreter
}

// New creates a Gateway from the given options.
func New(opts Options) (*Gateway, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	verifier := opts.Verifier
	if verifier == nil {
		verifier = VerifierFromConfig(cfg)
	}

	interp := opts.Interpreter
	if interp == nil {
		if cfg.Intent.Endpoint != "" {
			interp = intent.NewHTTPInterpreter(cfg.Intent.Endpoint, cfg.Intent.Timeout, logger)
		} else {
			interp = intent.Unconfigured{}
		}
	}

	g := &Gateway{
		cfg:            cfg,
		logger:         logger.With("component", "gateway"),
		verifier:       verifier,
		interp:         interp,
		conns:          newConnRegistry(),
		rooms:          newRoomRegistry(),
		subs:           newSubscriptionRegistry(),
		queue:          make(chan workItem, cfg.Server.QueueSize),
		dedupe:         dedupe.New(commandDedupeTTL, 100_000),
		shutdownCh:     make(chan struct{}),
		dispatcherDone: make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Clients are devices and scripts, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		baseCtx: context.Background(),
	}
	g.handlers = g.newHandlerTable()

	router := httprouter.New()
	router.GET("/ws", g.handleWS)
	router.HandlerFunc(http.MethodGet, "/health", g.handleHealth)
	router.HandlerFunc(http.MethodGet, "/health/ready", g.handleReady)

	g.httpServer = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// VerifierFromConfig builds the authentication chain the configuration
// asks for: local token, HS256, and the structural shape check.
func VerifierFromConfig(cfg *config.Config) auth.Verifier {
	var verifiers []auth.Verifier
	if cfg.Auth.Token != "" {
		verifiers = append(verifiers, auth.NewStatic(cfg.Auth.Token))
	}
	if cfg.Auth.JWTSecret != "" {
		verifiers = append(verifiers, auth.NewHMAC([]byte(cfg.Auth.JWTSecret)))
	}
	if cfg.Auth.AllowStructural {
		verifiers = append(verifiers, auth.NewStructural())
	}
	return auth.NewChain(verifiers...)
}

// Run starts the dispatcher and the websocket server, blocking until
// the context is canceled or the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	g.baseCtx = ctx

	ln, err := net.Listen("tcp", g.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.cfg.Server.Addr, err)
	}

	go g.runDispatcher()

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("websocket server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the server, cancels the dispatcher, closes every open
// socket, and clears all registries.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	err := g.httpServer.Shutdown(ctx)

	close(g.shutdownCh)
	select {
	case <-g.dispatcherDone:
	case <-ctx.Done():
		// A handler is still running and may touch the registries.
		// Abandon cleanup rather than race it; process exit reclaims
		// the sockets.
		g.logger.Warn("dispatcher did not stop before deadline, skipping cleanup")
		g.dedupe.Close()
		if err != nil {
			return fmt.Errorf("HTTP shutdown: %w", err)
		}
		return fmt.Errorf("waiting for dispatcher: %w", ctx.Err())
	}

	// The dispatcher has stopped; registry access is single-threaded again.
	for _, c := range g.conns.conns {
		c.shutdown()
		c.closeSocket()
	}
	g.conns = newConnRegistry()
	g.rooms = newRoomRegistry()
	g.subs = newSubscriptionRegistry()

	g.dedupe.Close()

	if err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}

// handleWS is the websocket handshake endpoint. The authentication gate
// runs before the receive loop is entered: an unauthenticated client
// gets one error frame and a closed socket, and is never registered.
func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	token, authErr := auth.BearerToken(r)

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	if authErr == "" {
		if err := g.verifier.Verify(token); err != nil {
			authErr = err.Error()
		}
	}
	if authErr != "" {
		g.logger.Warn("authentication failed", "remote", r.RemoteAddr, "reason", authErr)
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = ws.WriteMessage(websocket.TextMessage, marshalFrame(errorFrame{
			Action:  "error",
			Message: "Authentication required",
		}))
		_ = ws.Close()
		return
	}

	c := newConn(ws, r, g.cfg.Server.SendBuffer)
	g.logger.Info("new connection", "connection_id", c.ID, "remote", c.RemoteAddr)

	go c.writePump(g.cfg.Server.PingInterval)
	g.enqueue(workItem{kind: itemConnect, conn: c})
	g.readLoop(c)
}

// readLoop receives frames from one connection until the socket dies,
// then schedules the dispatcher-side cleanup exactly once.
func (g *Gateway) readLoop(c *Conn) {
	defer func() {
		c.closeSocket()
		g.enqueue(workItem{kind: itemDisconnect, conn: c})
	}()

	if g.cfg.Server.PingInterval > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(g.cfg.Server.PongTimeout))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(g.cfg.Server.PongTimeout))
		})
	}

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			g.logger.Debug("connection closed", "connection_id", c.ID, "error", err)
			return
		}
		g.dispatch(c, data)
	}
}

// sendFrame marshals and queues a frame for one connection. A queue
// failure means the peer is slow or gone; it silently starts that
// peer's cleanup and never surfaces to the triggering caller.
func (g *Gateway) sendFrame(c *Conn, frame any) {
	g.deliver(c, marshalFrame(frame))
}

// sendError sends an error frame to the connection.
func (g *Gateway) sendError(c *Conn, message string) {
	g.sendFrame(c, errorFrame{Action: "error", Message: message})
}

// deliver queues pre-marshaled bytes for one connection, handling
// delivery failure by killing the peer's socket. The read loop notices
// and schedules the registry purge.
func (g *Gateway) deliver(c *Conn, data []byte) {
	if err := c.enqueue(data); err != nil {
		g.logger.Warn("delivery failed, dropping connection",
			"connection_id", c.ID,
			"error", err,
		)
		c.closeSocket()
	}
}

// broadcastToRoom delivers pre-marshaled bytes to every room member
// except exclude. One member's delivery failure never aborts the rest.
func (g *Gateway) broadcastToRoom(code string, data []byte, exclude string) {
	for id, member := range g.rooms.members(code) {
		if id == exclude {
			continue
		}
		g.deliver(member, data)
	}
}

// publishEvent delivers an event frame to every subscriber of the type.
func (g *Gateway) publishEvent(eventType string, data map[string]any) {
	subscribers := g.subs.subscribers(eventType)
	if len(subscribers) == 0 {
		return
	}
	frame := marshalFrame(eventFrame{
		Action:    "event",
		EventType: eventType,
		Data:      data,
	})
	for _, subscriber := range subscribers {
		g.deliver(subscriber, frame)
	}
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady reports readiness with the current connection count.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d connections)", g.conns.snapshot())
}
