package natsclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/alertstream/errors"
)

// ConnectionStatus is the client's view of the connection.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusCircuitOpen
	StatusClosed
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusCircuitOpen:
		return "circuit-open"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client manages one NATS connection with a circuit breaker on connect.
type Client struct {
	url    string
	logger *slog.Logger

	mu   sync.RWMutex
	conn *nats.Conn
	subs []*nats.Subscription

	status      atomic.Value // ConnectionStatus
	failures    atomic.Int32
	lastFailure atomic.Value // time.Time
	closed      atomic.Bool
	closeMu     sync.Mutex

	// circuit breaker
	circuitFailures  atomic.Int32
	circuitThreshold int32
	circuitResetWait time.Duration

	// connection options
	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	clientName    string
	username      string
	password      string
	token         string

	onHealthChange func(bool)
	onReconnect    func()
}

// NewClient creates a client for the given server URL. The connection is not
// opened until Connect.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	if url == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Client", "NewClient", "url is required")
	}
	c := &Client{
		url:              url,
		logger:           slog.Default().With("component", "natsclient"),
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		pingInterval:     30 * time.Second,
		timeout:          5 * time.Second,
		drainTimeout:     30 * time.Second,
		circuitThreshold: 5,
		circuitResetWait: time.Minute,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}
	c.status.Store(StatusDisconnected)
	c.lastFailure.Store(time.Time{})
	return c, nil
}

// URL returns the configured server URL.
func (c *Client) URL() string { return c.url }

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	return c.status.Load().(ConnectionStatus)
}

// IsHealthy reports whether the connection is up.
func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Failures returns the lifetime connect failure count.
func (c *Client) Failures() int32 { return c.failures.Load() }

func (c *Client) setStatus(status ConnectionStatus) {
	c.status.Store(status)
}

func (c *Client) buildOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.setStatus(StatusDisconnected)
			c.logger.Warn("nats disconnected", "error", err)
			c.notifyHealth(false)
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			c.setStatus(StatusConnected)
			c.logger.Info("nats reconnected", "url", conn.ConnectedUrl())
			c.notifyHealth(true)
			if c.onReconnect != nil {
				c.onReconnect()
			}
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			if !c.closed.Load() {
				c.setStatus(StatusDisconnected)
			}
		}),
	}
	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.clientName != "" {
		opts = append(opts, nats.Name(c.clientName))
	}
	return opts
}

// Connect opens the connection. Repeated failures open the circuit; further
// attempts are rejected until the reset window elapses.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return errors.WrapInvalid(errors.ErrShuttingDown, "Client", "Connect", "client closed")
	}
	if c.circuitOpen() {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Connect", "circuit open")
	}

	c.setStatus(StatusConnecting)
	c.logger.Info("connecting to nats", "url", c.url)

	done := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.buildOptions()...)
		if err != nil {
			done <- err
			return
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			c.recordFailure()
			return errors.WrapTransient(err, "Client", "Connect", "connect to nats")
		}
	case <-ctx.Done():
		c.recordFailure()
		return errors.WrapTransient(ctx.Err(), "Client", "Connect", "connect to nats")
	}

	c.setStatus(StatusConnected)
	c.circuitFailures.Store(0)
	c.notifyHealth(true)
	c.logger.Info("nats connected", "url", c.url)
	return nil
}

func (c *Client) recordFailure() {
	c.failures.Add(1)
	c.lastFailure.Store(time.Now())
	c.setStatus(StatusDisconnected)
	if c.circuitFailures.Add(1) >= c.circuitThreshold {
		c.setStatus(StatusCircuitOpen)
		c.logger.Warn("nats circuit opened", "failures", c.circuitFailures.Load())
	}
}

// circuitOpen reports whether the breaker still blocks connects. The circuit
// half-opens after the reset window so one probe attempt can go through.
func (c *Client) circuitOpen() bool {
	if c.Status() != StatusCircuitOpen {
		return false
	}
	last := c.lastFailure.Load().(time.Time)
	if time.Since(last) >= c.circuitResetWait {
		c.circuitFailures.Store(0)
		c.setStatus(StatusDisconnected)
		return false
	}
	return true
}

// Subscribe registers a handler for a subject. Subscriptions are tracked and
// drained on Close.
func (c *Client) Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Subscribe", subject)
	}
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(ctx, msg.Data)
	})
	if err != nil {
		return errors.WrapTransient(err, "Client", "Subscribe", subject)
	}
	c.subs = append(c.subs, sub)
	c.logger.Debug("subscribed", "subject", subject)
	return nil
}

// Publish sends data to a subject.
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Publish", subject)
	}
	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "Client", "Publish", subject)
	}
	return nil
}

// RTT measures the round trip to the server.
func (c *Client) RTT() (time.Duration, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return 0, errors.WrapTransient(errors.ErrNoConnection, "Client", "RTT", "not connected")
	}
	return conn.RTT()
}

// OnHealthChange registers a callback fired on connect/disconnect edges.
func (c *Client) OnHealthChange(fn func(bool)) {
	c.onHealthChange = fn
}

// OnReconnect registers a callback fired after an automatic reconnect.
func (c *Client) OnReconnect(fn func()) {
	c.onReconnect = fn
}

func (c *Client) notifyHealth(healthy bool) {
	if c.onHealthChange != nil {
		c.onHealthChange(healthy)
	}
}

// Close drains subscriptions and closes the connection. It is safe to call
// more than once.
func (c *Client) Close(ctx context.Context) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed.Load() {
		return nil
	}
	c.closed.Store(true)
	c.setStatus(StatusClosed)

	c.mu.Lock()
	conn := c.conn
	subs := c.subs
	c.conn = nil
	c.subs = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	var firstErr error
	for _, sub := range subs {
		if err := sub.Drain(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("drain subscription %s: %w", sub.Subject, err)
		}
	}

	drained := make(chan error, 1)
	go func() { drained <- conn.Drain() }()
	select {
	case err := <-drained:
		if err != nil && firstErr == nil {
			firstErr = err
		}
	case <-ctx.Done():
		conn.Close()
		if firstErr == nil {
			firstErr = ctx.Err()
		}
	}

	if firstErr != nil {
		return errors.WrapTransient(firstErr, "Client", "Close", "drain connection")
	}
	return nil
}
