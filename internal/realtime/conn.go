// Package realtime implements the WebSocket bridge client used by the sync
// cores: one connection per user session, per-destination subscriptions,
// heartbeats, and automatic reconnect with a fixed delay while a
// subscription is still desired.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/VieGym/viegym-sync-client/errors"
	"github.com/VieGym/viegym-sync-client/logger"
	"github.com/VieGym/viegym-sync-client/types"
)

const (
	defaultHeartbeat      = 30 * time.Second
	defaultReconnectDelay = 5 * time.Second
	writeTimeout          = 10 * time.Second
	handshakeTimeout      = 10 * time.Second
)

// TokenProvider supplies the bearer token attached to the connection
// handshake.
type TokenProvider interface {
	Token() string
}

// FrameHandler consumes frames delivered on a subscribed destination.
// Handlers run on the read loop goroutine and must absorb their own errors.
type FrameHandler func(frame types.Frame)

// Options configures a Conn.
type Options struct {
	Endpoint            string
	Heartbeat           time.Duration
	ReconnectDelay      time.Duration
	MaxReconnectsPer10s int
}

// controlFrame is the client-to-broker envelope.
type controlFrame struct {
	Type        string          `json:"type"` // subscribe | unsubscribe | send
	Destination string          `json:"destination"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// Conn is a realtime connection shared by all subscriptions of one user
// session.
type Conn struct {
	log     *zap.SugaredLogger
	opts    Options
	tokens  TokenProvider
	dialer  *websocket.Dialer
	metrics *connMetrics

	mu        sync.Mutex
	conn      *websocket.Conn
	state     types.ConnectionState
	desired   bool
	subs      map[string]map[int]FrameHandler
	nextSubID int
	listeners []func(types.ConnectionState)
	cancel    context.CancelFunc
	runDone   chan struct{}

	// wmu serializes all writes; gorilla connections allow one writer.
	wmu sync.Mutex

	retryBucket *TokenBucket
}

// NewConn creates a connection for the given endpoint. The connection is not
// opened until Connect.
func NewConn(opts Options, tokens TokenProvider) *Conn {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = defaultHeartbeat
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.MaxReconnectsPer10s <= 0 {
		opts.MaxReconnectsPer10s = 3
	}

	return &Conn{
		log:    logger.GetLogger().Named("realtime"),
		opts:   opts,
		tokens: tokens,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
		metrics:     getConnMetrics(),
		state:       types.StateDisconnected,
		subs:        make(map[string]map[int]FrameHandler),
		retryBucket: NewTokenBucket(opts.MaxReconnectsPer10s, 10*time.Second),
	}
}

// State returns the current connection state.
func (c *Conn) State() types.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the connection is established.
func (c *Conn) IsConnected() bool {
	return c.State() == types.StateConnected
}

// OnStateChange registers a listener invoked on every state transition.
func (c *Conn) OnStateChange(fn func(types.ConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Conn) setState(state types.ConnectionState) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	listeners := make([]func(types.ConnectionState), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	if state == types.StateConnected {
		c.metrics.connectionUp.Set(1)
	} else {
		c.metrics.connectionUp.Set(0)
	}

	for _, fn := range listeners {
		fn(state)
	}
}

// Connect opens the connection and starts the read/heartbeat/reconnect loop.
// Connecting while already connected is a no-op.
func (c *Conn) Connect(ctx context.Context) error {
	if c.tokens.Token() == "" {
		return errors.AuthenticationFailed("no auth token available for realtime connection")
	}

	c.mu.Lock()
	if c.desired {
		c.mu.Unlock()
		c.log.Debug("Connect called while already active")
		return nil
	}
	c.desired = true
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.runDone = make(chan struct{})
	done := c.runDone
	c.mu.Unlock()

	go c.run(runCtx, done)
	return nil
}

// Disconnect tears the connection down unconditionally and stops the
// reconnect loop. Idempotent if already disconnected.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	if !c.desired {
		c.mu.Unlock()
		return
	}
	c.desired = false
	cancel := c.cancel
	conn := c.conn
	done := c.runDone
	destinations := make([]string, 0, len(c.subs))
	for dest := range c.subs {
		destinations = append(destinations, dest)
	}
	c.mu.Unlock()

	// Unsubscribe each destination before deactivating so no subscription
	// handle leaks across reconnects.
	if conn != nil {
		for _, dest := range destinations {
			if err := c.writeControl(conn, controlFrame{Type: "unsubscribe", Destination: dest}); err != nil {
				c.log.Debugw("Failed to send unsubscribe on teardown", "destination", dest, "error", err)
			}
		}
	}

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
	c.setState(types.StateDisconnected)
}

// Subscribe registers a handler for a destination and returns an unsubscribe
// function. The subscription survives reconnects until unsubscribed.
func (c *Conn) Subscribe(destination string, handler FrameHandler) func() {
	c.mu.Lock()
	c.nextSubID++
	id := c.nextSubID
	first := len(c.subs[destination]) == 0
	if c.subs[destination] == nil {
		c.subs[destination] = make(map[int]FrameHandler)
	}
	c.subs[destination][id] = handler
	conn := c.conn
	connected := c.state == types.StateConnected
	c.mu.Unlock()

	c.metrics.subscriptions.Inc()

	if first && connected && conn != nil {
		if err := c.writeControl(conn, controlFrame{Type: "subscribe", Destination: destination}); err != nil {
			c.log.Warnw("Failed to send subscribe frame", "destination", destination, "error", err)
		}
	}

	return func() {
		c.mu.Lock()
		handlers := c.subs[destination]
		if handlers == nil {
			c.mu.Unlock()
			return
		}
		if _, ok := handlers[id]; !ok {
			c.mu.Unlock()
			return
		}
		delete(handlers, id)
		last := len(handlers) == 0
		if last {
			delete(c.subs, destination)
		}
		conn := c.conn
		connected := c.state == types.StateConnected
		c.mu.Unlock()

		c.metrics.subscriptions.Dec()

		if last && connected && conn != nil {
			if err := c.writeControl(conn, controlFrame{Type: "unsubscribe", Destination: destination}); err != nil {
				c.log.Debugw("Failed to send unsubscribe frame", "destination", destination, "error", err)
			}
		}
	}
}

// Publish sends a payload to a destination over the open connection.
func (c *Conn) Publish(destination string, body interface{}) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == types.StateConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		return errors.New(errors.TransportError, "not connected", destination)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, errors.PayloadError, "failed to marshal publish body")
	}
	return c.writeControl(conn, controlFrame{Type: "send", Destination: destination, Body: payload})
}

func (c *Conn) writeControl(conn *websocket.Conn, frame controlFrame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return errors.NewTransportError(err, "failed to set write deadline")
	}
	if err := conn.WriteJSON(frame); err != nil {
		return errors.NewTransportError(err, "failed to write frame")
	}
	return nil
}

// run is the connection supervisor: dial, resubscribe, pump frames, and
// reconnect after the fixed delay for as long as the connection is desired.
func (c *Conn) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		if !c.shouldRun(ctx) {
			return
		}

		c.setState(types.StateConnecting)
		conn, err := c.dial(ctx)
		if err != nil {
			c.log.Warnw("Realtime dial failed", "endpoint", c.opts.Endpoint, "error", err)
			c.setState(types.StateError)
			if !c.waitForRetry(ctx) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.setState(types.StateConnected)
		c.log.Infow("Realtime connection established", "endpoint", c.opts.Endpoint)

		c.resubscribe(conn)

		pingCtx, stopPing := context.WithCancel(ctx)
		go c.pingLoop(pingCtx, conn)

		c.readLoop(ctx, conn)

		stopPing()
		_ = conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		if !c.shouldRun(ctx) {
			c.setState(types.StateDisconnected)
			return
		}

		c.setState(types.StateDisconnected)
		if !c.waitForRetry(ctx) {
			return
		}
	}
}

func (c *Conn) shouldRun(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desired
}

func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if token := c.tokens.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.opts.Endpoint, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// waitForRetry sleeps for the fixed reconnect delay, extending it when the
// token bucket signals a reconnect storm. Returns false when the connection
// is no longer desired.
func (c *Conn) waitForRetry(ctx context.Context) bool {
	delay := c.opts.ReconnectDelay
	if !c.retryBucket.Take() {
		c.log.Warnw("Reconnect rate limit exceeded, backing off", "delay", 2*delay)
		delay *= 2
	}
	c.metrics.reconnects.Inc()

	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
	}
	return c.shouldRun(ctx)
}

// resubscribe replays subscribe frames for every registered destination on a
// fresh connection.
func (c *Conn) resubscribe(conn *websocket.Conn) {
	c.mu.Lock()
	destinations := make([]string, 0, len(c.subs))
	for dest := range c.subs {
		destinations = append(destinations, dest)
	}
	c.mu.Unlock()

	for _, dest := range destinations {
		if err := c.writeControl(conn, controlFrame{Type: "subscribe", Destination: dest}); err != nil {
			c.log.Warnw("Failed to resubscribe", "destination", dest, "error", err)
		}
	}
}

func (c *Conn) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.wmu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeTimeout))
			c.wmu.Unlock()
			if err != nil {
				c.log.Warnw("Failed to write ping", "error", err)
				return
			}
		}
	}
}

func (c *Conn) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err) {
				c.log.Infow("Realtime connection closed", "error", err)
			}
			return
		}
		c.dispatch(data)
	}
}

// dispatch parses an inbound frame and fans it out to the destination's
// handlers. Malformed frames are counted, logged and dropped; they never
// tear down the subscription.
func (c *Conn) dispatch(data []byte) {
	c.metrics.framesReceived.Inc()

	var frame types.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.metrics.framesDropped.WithLabelValues("malformed").Inc()
		c.log.Warnw("Dropping malformed realtime frame", "error", err)
		return
	}
	if err := frame.Validate(); err != nil {
		c.metrics.framesDropped.WithLabelValues("invalid_envelope").Inc()
		c.log.Warnw("Dropping invalid realtime frame", "error", err)
		return
	}

	c.mu.Lock()
	handlers := make([]FrameHandler, 0, len(c.subs[frame.Destination]))
	for _, h := range c.subs[frame.Destination] {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	if len(handlers) == 0 {
		c.metrics.framesDropped.WithLabelValues("no_subscriber").Inc()
		c.log.Debugw("No subscriber for frame", "destination", frame.Destination)
		return
	}

	for _, h := range handlers {
		h(frame)
	}
}
