package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/c360/alertstream/errors"
	"github.com/c360/alertstream/message"
)

// gatewayEnvelope wraps every frame exchanged with the bridge gateway.
// Supported types:
//   - "send": deliver a message to a channel
//   - "ack": gateway confirmation of a send
//   - "error": gateway rejection of a send
type gatewayEnvelope struct {
	Type      string       `json:"type"`
	ID        string       `json:"id"`
	ChannelID string       `json:"channel_id,omitempty"`
	Timestamp int64        `json:"timestamp"`
	Payload   *wirePayload `json:"payload,omitempty"`
	Reason    string       `json:"reason,omitempty"`
}

// GatewayConfig configures the websocket gateway client.
type GatewayConfig struct {
	// URL of the gateway websocket endpoint, e.g. "wss://bridge:8443/gateway".
	URL string
	// AckTimeout bounds how long a send waits for the gateway's ack.
	AckTimeout time.Duration
	// ReconnectDelay is the initial delay between reconnect attempts; it
	// doubles up to a minute.
	ReconnectDelay time.Duration
	// PingInterval keeps the connection alive through idle periods.
	PingInterval time.Duration
}

func (c *GatewayConfig) withDefaults() GatewayConfig {
	out := *c
	if out.AckTimeout <= 0 {
		out.AckTimeout = 10 * time.Second
	}
	if out.ReconnectDelay <= 0 {
		out.ReconnectDelay = time.Second
	}
	if out.PingInterval <= 0 {
		out.PingInterval = 30 * time.Second
	}
	return out
}

// Gateway is a persistent websocket client that delivers messages through a
// bridge gateway. It reconnects automatically and correlates acks by frame
// ID.
type Gateway struct {
	config GatewayConfig
	logger *slog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex

	pending   map[string]chan *gatewayEnvelope
	pendingMu sync.Mutex

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
	started      atomic.Bool
	cancel       context.CancelFunc

	sendsOK     atomic.Int64
	sendsFailed atomic.Int64
}

var _ Deliverer = (*Gateway)(nil)

// NewGateway creates a gateway client. Start must be called before delivery.
func NewGateway(config GatewayConfig) (*Gateway, error) {
	if config.URL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Gateway", "NewGateway", "URL is required")
	}
	return &Gateway{
		config:   config.withDefaults(),
		logger:   slog.Default().With("component", "gateway"),
		pending:  make(map[string]chan *gatewayEnvelope),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start connects to the gateway and begins the read/reconnect loop.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Gateway", "Start", g.config.URL)
	}

	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel

	if err := g.connect(runCtx); err != nil {
		// First connect failing is not fatal, the loop keeps trying.
		g.logger.Warn("initial gateway connect failed, will retry", "url", g.config.URL, "error", err)
	}
	go g.run(runCtx)
	g.logger.Info("gateway client started", "url", g.config.URL)
	return nil
}

// Stop closes the connection and waits for the loop to exit.
func (g *Gateway) Stop(timeout time.Duration) error {
	if !g.started.Load() {
		return errors.WrapInvalid(errors.ErrNotStarted, "Gateway", "Stop", g.config.URL)
	}
	g.shutdownOnce.Do(func() { close(g.shutdown) })
	if g.cancel != nil {
		g.cancel()
	}

	select {
	case <-g.done:
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrShuttingDown, "Gateway", "Stop", "timed out waiting for read loop")
	}

	g.connMu.Lock()
	if g.conn != nil {
		_ = g.conn.Close()
		g.conn = nil
	}
	g.connMu.Unlock()
	g.started.Store(false)
	return nil
}

func (g *Gateway) connect(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, g.config.URL, nil)
	if err != nil {
		return errors.WrapTransient(err, "Gateway", "connect", "dial gateway")
	}

	g.connMu.Lock()
	if g.conn != nil {
		_ = g.conn.Close()
	}
	g.conn = conn
	g.connMu.Unlock()

	g.logger.Info("gateway connected", "url", g.config.URL)
	return nil
}

// run owns the read loop and reconnects with exponential backoff.
func (g *Gateway) run(ctx context.Context) {
	defer close(g.done)

	pinger := time.NewTicker(g.config.PingInterval)
	defer pinger.Stop()
	go g.pingLoop(ctx, pinger)

	delay := g.config.ReconnectDelay
	for {
		select {
		case <-ctx.Done():
			return
		case <-g.shutdown:
			return
		default:
		}

		g.connMu.Lock()
		conn := g.conn
		g.connMu.Unlock()

		if conn == nil {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			case <-g.shutdown:
				return
			}
			if delay < time.Minute {
				delay *= 2
			}
			if err := g.connect(ctx); err != nil {
				g.logger.Warn("gateway reconnect failed", "error", err)
			}
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			g.logger.Warn("gateway connection lost", "error", err)
			g.connMu.Lock()
			if g.conn == conn {
				_ = g.conn.Close()
				g.conn = nil
			}
			g.connMu.Unlock()
			delay = g.config.ReconnectDelay
			continue
		}
		delay = g.config.ReconnectDelay

		var envelope gatewayEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			g.logger.Warn("dropping malformed gateway frame", "error", err)
			continue
		}
		g.dispatchReply(&envelope)
	}
}

func (g *Gateway) pingLoop(ctx context.Context, ticker *time.Ticker) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-g.shutdown:
			return
		case <-ticker.C:
			g.connMu.Lock()
			if g.conn != nil {
				_ = g.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
			g.connMu.Unlock()
		}
	}
}

func (g *Gateway) dispatchReply(envelope *gatewayEnvelope) {
	if envelope.Type != "ack" && envelope.Type != "error" {
		return
	}
	g.pendingMu.Lock()
	ch, ok := g.pending[envelope.ID]
	if ok {
		delete(g.pending, envelope.ID)
	}
	g.pendingMu.Unlock()
	if ok {
		ch <- envelope
	}
}

// send writes one frame and waits for its ack.
func (g *Gateway) send(ctx context.Context, channel *Channel, payload *wirePayload) error {
	if channel == nil || channel.ID == "" {
		return errors.WrapInvalid(errors.ErrNoChannel, "Gateway", "send", "missing channel")
	}

	g.connMu.Lock()
	conn := g.conn
	g.connMu.Unlock()
	if conn == nil {
		g.sendsFailed.Add(1)
		return errors.WrapTransient(errors.ErrNoConnection, "Gateway", "send", "gateway not connected")
	}

	envelope := gatewayEnvelope{
		Type:      "send",
		ID:        uuid.NewString(),
		ChannelID: channel.ID,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}

	reply := make(chan *gatewayEnvelope, 1)
	g.pendingMu.Lock()
	g.pending[envelope.ID] = reply
	g.pendingMu.Unlock()
	defer func() {
		g.pendingMu.Lock()
		delete(g.pending, envelope.ID)
		g.pendingMu.Unlock()
	}()

	g.connMu.Lock()
	err := conn.WriteJSON(envelope)
	g.connMu.Unlock()
	if err != nil {
		g.sendsFailed.Add(1)
		return errors.WrapTransient(err, "Gateway", "send", "write frame")
	}

	select {
	case response := <-reply:
		if response.Type == "error" {
			g.sendsFailed.Add(1)
			return errors.WrapTransient(errors.ErrDeliveryFailed, "Gateway", "send", response.Reason)
		}
		g.sendsOK.Add(1)
		return nil
	case <-time.After(g.config.AckTimeout):
		g.sendsFailed.Add(1)
		return errors.WrapTransient(errors.ErrDeliveryFailed, "Gateway", "send", "ack timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DeliverDirect implements Deliverer.
func (g *Gateway) DeliverDirect(ctx context.Context, channel *Channel, msg *message.Template) error {
	payload := buildPayload(msg, false)
	return g.send(ctx, channel, &payload)
}

// DeliverWebhook implements Deliverer. The gateway performs the webhook
// impersonation server-side, so the envelope keeps the webhook identity.
func (g *Gateway) DeliverWebhook(ctx context.Context, channel *Channel, msg *message.Template) error {
	payload := buildPayload(msg, true)
	return g.send(ctx, channel, &payload)
}

// Stats reports delivery counters for health reporting.
func (g *Gateway) Stats() (ok, failed int64) {
	return g.sendsOK.Load(), g.sendsFailed.Load()
}
