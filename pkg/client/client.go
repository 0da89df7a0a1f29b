package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatewire/gatewire-go/pkg/identity"
	"github.com/gatewire/gatewire-go/pkg/log"
	"github.com/gatewire/gatewire-go/pkg/transport"
	"github.com/gatewire/gatewire-go/pkg/wire"
)

// ConnectAck is the payload of a successful connect response.
type ConnectAck struct {
	Protocol  int    `json:"protocol,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// connectAttempt is one shared connect sequence. Every EnsureConnected
// caller that arrives while it runs waits on the same attempt.
type connectAttempt struct {
	done chan struct{}
	err  error
}

// Client is the connection manager: it owns the identity, the single
// gateway session, the request queue and the liveness monitor, and it
// reconnects on its own after failures.
type Client struct {
	cfg        Config
	identity   *identity.DeviceIdentity
	signer     *identity.Signer
	instanceID string

	dialer      *transport.Dialer
	corr        *Correlator
	backoff     *Backoff
	broadcaster *Broadcaster
	logger      log.Logger

	mu             sync.Mutex
	state          State
	sess           *transport.Session
	hs             *handshake
	hb             *Heartbeat
	attempt        *connectAttempt
	reconnectTimer *time.Timer
	ack            ConnectAck
	closed         bool

	closedCh chan struct{}
}

// New creates a client. The device identity is loaded (or generated) from
// cfg.IdentityDir immediately; no connection is opened until
// EnsureConnected or the first Request.
func New(cfg Config) (*Client, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := identity.NewStore(cfg.IdentityDir)
	id, err := store.GetIdentity()
	if err != nil {
		return nil, fmt.Errorf("failed to load device identity: %w", err)
	}

	logger := cfg.ProtocolLogger
	if logger == nil {
		logger = &log.NoopLogger{}
	}

	backoffCfg := BackoffConfig{}
	if cfg.Backoff != nil {
		backoffCfg = *cfg.Backoff
	}

	c := &Client{
		cfg:        cfg,
		identity:   id,
		signer:     identity.NewSigner(id),
		instanceID: uuid.New().String(),
		dialer: transport.NewDialer(transport.Config{
			ConnectTimeout: cfg.ConnectTimeout,
			Logger:         cfg.ProtocolLogger,
		}),
		corr:        NewCorrelator(cfg.QueueLimit),
		backoff:     NewBackoffWithConfig(backoffCfg),
		broadcaster: NewBroadcaster(),
		logger:      logger,
		state:       StateDisconnected,
		closedCh:    make(chan struct{}),
	}
	return c, nil
}

// DeviceID returns the stable device identifier presented to gateways.
func (c *Client) DeviceID() string {
	return c.identity.DeviceID
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ack returns the connect acknowledgment of the current (or most recent)
// authenticated connection.
func (c *Client) Ack() ConnectAck {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ack
}

// QueuedRequests returns the number of requests waiting for a connection.
func (c *Client) QueuedRequests() int {
	return c.corr.QueueLen()
}

// OnEvent registers a handler for gateway events and returns its
// unsubscribe function. Handlers run on the read loop goroutine.
func (c *Client) OnEvent(handler EventHandler) func() {
	return c.broadcaster.Subscribe(handler)
}

// EnsureConnected blocks until an authenticated connection is up, the
// handshake attempts are exhausted, ctx ends, or the client shuts down.
// Concurrent callers share a single connect sequence.
func (c *Client) EnsureConnected(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.state == StateAuthenticated {
		c.mu.Unlock()
		return nil
	}
	att := c.attempt
	if att == nil {
		att = &connectAttempt{done: make(chan struct{})}
		c.attempt = att
		go c.runConnect(att)
	}
	c.mu.Unlock()

	select {
	case <-att.done:
		return att.err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closedCh:
		return ErrClientClosed
	}
}

// Request issues an RPC to the gateway. params may be nil, a
// json.RawMessage, or any JSON-marshalable value. Disconnected clients
// queue the request; it goes out after the next successful handshake.
// Ctx cancellation abandons the request without resolving it remotely.
func (c *Client) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if method == "" {
		return nil, fmt.Errorf("request method must not be empty")
	}

	raw, err := wire.MarshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}

	p, err := c.corr.Enqueue(method, raw)
	if err != nil {
		return nil, err
	}

	// Kick the connection machinery: flush immediately when already
	// authenticated, otherwise start (or join) a connect attempt.
	c.mu.Lock()
	closed := c.closed
	authenticated := c.state == StateAuthenticated
	if !closed && !authenticated && c.attempt == nil && c.reconnectTimer == nil {
		att := &connectAttempt{done: make(chan struct{})}
		c.attempt = att
		go c.runConnect(att)
	}
	c.mu.Unlock()

	if closed {
		c.corr.Abandon(p.ID)
		return nil, ErrClientClosed
	}
	if authenticated {
		go c.flush()
	}

	payload, err := p.Wait(ctx)
	if err != nil && errors.Is(err, ctx.Err()) {
		c.corr.Abandon(p.ID)
	}
	return payload, err
}

// Shutdown closes the connection and the client permanently. Queued and
// in-flight requests fail with ErrClientClosed; so does every later call.
func (c *Client) Shutdown() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.changeStateLocked(StateShuttingDown, "shutdown requested")

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	hb := c.hb
	c.hb = nil
	sess := c.sess
	c.sess = nil
	var hsSess *transport.Session
	if c.hs != nil {
		hsSess = c.hs.sess
	}
	close(c.closedCh)
	c.mu.Unlock()

	if hb != nil {
		hb.Stop()
	}

	var err error
	if sess != nil {
		err = sess.Close()
	}
	if hsSess != nil && hsSess != sess {
		hsSess.Close()
	}

	c.corr.Close(ErrClientClosed)

	c.mu.Lock()
	c.changeStateLocked(StateClosed, "shutdown complete")
	c.mu.Unlock()
	return err
}

// runConnect drives one connect attempt: up to 1+HandshakeRetries
// handshakes with a fixed delay between them. Failure arms the backoff
// reconnect timer so the client keeps trying in the background.
func (c *Client) runConnect(att *connectAttempt) {
	var lastErr error

	maxAttempts := 1 + c.cfg.HandshakeRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for i := 0; i < maxAttempts; i++ {
		select {
		case <-c.closedCh:
			c.finishAttempt(att, ErrClientClosed, nil)
			return
		default:
		}

		if i > 0 {
			select {
			case <-time.After(c.cfg.RetryDelay):
			case <-c.closedCh:
				c.finishAttempt(att, ErrClientClosed, nil)
				return
			}
		}

		sess, err := c.performHandshake(context.Background())
		if err == nil {
			c.finishAttempt(att, nil, sess)
			return
		}
		lastErr = err
		c.logError(log.LayerClient, fmt.Sprintf("handshake attempt %d failed", i+1), err)
	}

	c.finishAttempt(att, fmt.Errorf("%w: %w", ErrHandshakeFailed, lastErr), nil)
}

// finishAttempt publishes an attempt's outcome. Success installs the
// session, resets the backoff, starts the heartbeat and drains the queue.
// Failure arms the reconnect timer.
func (c *Client) finishAttempt(att *connectAttempt, err error, sess *transport.Session) {
	c.mu.Lock()
	if c.attempt == att {
		c.attempt = nil
	}
	// The handshake stayed routable past its success so no frame is
	// dropped before the session becomes current; retire it here.
	if sess != nil && c.hs != nil && c.hs.sess == sess {
		c.hs = nil
	}

	if c.closed {
		c.mu.Unlock()
		if sess != nil {
			sess.Close()
		}
		att.err = ErrClientClosed
		close(att.done)
		return
	}

	if err != nil {
		c.mu.Unlock()
		att.err = err
		close(att.done)
		c.scheduleReconnect()
		return
	}

	c.sess = sess
	c.changeStateLocked(StateAuthenticated, "handshake complete")
	c.backoff.Reset()

	hb := NewHeartbeat(HeartbeatConfig{
		ProbeInterval: c.cfg.ProbeInterval,
		AckTimeout:    c.cfg.AckTimeout,
	}, func() error {
		return c.sendProbe(sess)
	}, func() {
		c.handleDisconnect(sess, "heartbeat timeout")
	})
	c.hb = hb
	c.mu.Unlock()

	hb.Start()
	c.flush()

	att.err = nil
	close(att.done)
}

// flush drains the queue onto the current session in FIFO order.
func (c *Client) flush() {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return
	}
	c.corr.Flush(func(frame *wire.RequestFrame) error {
		return c.sendFrame(sess, frame)
	})
}

// sendFrame encodes and sends one request frame, with a wire-layer
// capture event on success.
func (c *Client) sendFrame(sess *transport.Session, frame *wire.RequestFrame) error {
	data, err := wire.EncodeRequest(frame)
	if err != nil {
		return err
	}
	if err := sess.Send(data); err != nil {
		return err
	}
	c.logMessage(sess, log.DirectionOut, &log.MessageEvent{
		Kind:   wire.KindRequest.String(),
		ID:     frame.ID,
		Method: frame.Method,
	})
	return nil
}

// sendProbe registers and sends one ping request. The acknowledgment is
// forwarded to the heartbeat when (and only when) the ping succeeds.
func (c *Client) sendProbe(sess *transport.Session) error {
	p := newPending(wire.MethodPing, nil)
	if err := c.corr.Register(p); err != nil {
		return err
	}

	frame := &wire.RequestFrame{ID: p.ID, Method: p.Method}
	if err := c.sendFrame(sess, frame); err != nil {
		c.corr.Abandon(p.ID)
		return err
	}

	go func() {
		if _, err := p.Wait(context.Background()); err != nil {
			return
		}
		c.mu.Lock()
		hb := c.hb
		live := c.sess == sess
		c.mu.Unlock()
		if live && hb != nil {
			hb.Ack()
		}
	}()
	return nil
}

// handleDisconnect tears down a dead session and arms reconnection.
// Guarded by session identity: a stale session's death (already
// superseded by a newer connection) changes nothing.
func (c *Client) handleDisconnect(sess *transport.Session, reason string) {
	c.mu.Lock()
	if c.closed || c.sess != sess {
		c.mu.Unlock()
		sess.Close()
		return
	}
	c.sess = nil
	hb := c.hb
	c.hb = nil
	c.changeStateLocked(StateDisconnected, reason)
	c.mu.Unlock()

	if hb != nil {
		hb.Stop()
	}
	sess.Close()

	c.corr.RejectInflight(ErrConnectionLost)
	c.scheduleReconnect()
}

// scheduleReconnect arms the backoff timer for a background reconnect.
// No-op when the client is closed, already connected, connecting, or a
// timer is already armed.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.state == StateAuthenticated || c.attempt != nil || c.reconnectTimer != nil {
		return
	}

	delay := c.backoff.Next()
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		if c.closed || c.state == StateAuthenticated || c.attempt != nil {
			c.mu.Unlock()
			return
		}
		att := &connectAttempt{done: make(chan struct{})}
		c.attempt = att
		c.mu.Unlock()
		c.runConnect(att)
	})
}

// onMessage is the read-loop entry point: it decodes one frame and routes
// it to the handshake, the correlator, or the event broadcaster.
func (c *Client) onMessage(sess *transport.Session, data []byte) {
	dec, err := wire.Decode(data)
	if err != nil {
		c.logError(log.LayerWire, "dropping undecodable frame", err)
		return
	}

	c.mu.Lock()
	hs := c.hs
	current := c.sess == sess
	handshaking := hs != nil && hs.sess == sess
	c.mu.Unlock()

	if !current && !handshaking {
		// Stale session still draining; ignore.
		return
	}

	switch dec.Kind {
	case wire.KindEvent:
		ev := dec.Event
		c.logMessage(sess, log.DirectionIn, &log.MessageEvent{
			Kind:  dec.Kind.String(),
			Event: ev.Event,
			Seq:   ev.Seq,
		})
		if ev.Event == wire.EventChallenge && handshaking {
			nonce, err := wire.DecodeChallenge(ev.Payload)
			if err != nil {
				c.logError(log.LayerWire, "bad challenge payload", err)
				return
			}
			select {
			case hs.challengeCh <- nonce:
			default:
			}
			return
		}
		c.broadcaster.Publish(ev)

	case wire.KindResponse:
		resp := dec.Response
		c.logMessage(sess, log.DirectionIn, &log.MessageEvent{
			Kind: dec.Kind.String(),
			ID:   resp.ID,
			OK:   &resp.OK,
		})
		if handshaking && resp.ID == hs.connectID {
			select {
			case hs.respCh <- resp:
			default:
			}
			return
		}
		// Unmatched responses (late frames from a dead request) are
		// ignored by the correlator.
		c.corr.Resolve(resp)

	case wire.KindRequest:
		// Gateways do not issue requests to clients; drop.
		c.logMessage(sess, log.DirectionIn, &log.MessageEvent{
			Kind:   dec.Kind.String(),
			ID:     dec.Request.ID,
			Method: dec.Request.Method,
		})
	}
}

// onSessionClosed reacts to a session's read loop ending.
func (c *Client) onSessionClosed(sess *transport.Session, code int, reason string) {
	if reason == "" {
		reason = fmt.Sprintf("connection closed (code %d)", code)
	}
	c.handleDisconnect(sess, reason)
}

// onSessionError surfaces transport read errors into the capture log.
func (c *Client) onSessionError(sess *transport.Session, err error) {
	c.logError(log.LayerTransport, "transport error", err)
}

// storeConnectAck parses and retains the connect response payload.
func (c *Client) storeConnectAck(payload json.RawMessage) {
	var ack ConnectAck
	if len(payload) > 0 {
		// Tolerate unknown payload shapes from newer gateways.
		_ = json.Unmarshal(payload, &ack)
	}
	c.mu.Lock()
	c.ack = ack
	c.mu.Unlock()
}

// setState changes the connection state with logging.
func (c *Client) setState(s State, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changeStateLocked(s, reason)
}

// changeStateLocked transitions the state and emits a capture event.
// Callers hold c.mu. Terminal Closed state is sticky.
func (c *Client) changeStateLocked(s State, reason string) {
	if c.state == s || c.state == StateClosed {
		return
	}
	old := c.state
	c.state = s

	c.logger.Log(log.Event{
		Timestamp:  time.Now(),
		Layer:      log.LayerClient,
		Category:   log.CategoryState,
		GatewayURL: c.cfg.GatewayURL,
		DeviceID:   c.identity.DeviceID,
		StateChange: &log.StateChangeEvent{
			OldState: old.String(),
			NewState: s.String(),
			Reason:   reason,
		},
	})
}

// logMessage emits a wire-layer capture event for one decoded frame.
func (c *Client) logMessage(sess *transport.Session, dir log.Direction, msg *log.MessageEvent) {
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: sess.ID(),
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		GatewayURL:   c.cfg.GatewayURL,
		DeviceID:     c.identity.DeviceID,
		Message:      msg,
	})
}

// logError emits an error capture event.
func (c *Client) logError(layer log.Layer, context string, err error) {
	c.logger.Log(log.Event{
		Timestamp:  time.Now(),
		Layer:      layer,
		Category:   log.CategoryError,
		GatewayURL: c.cfg.GatewayURL,
		DeviceID:   c.identity.DeviceID,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}
