package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/gatewire/gatewire-go/pkg/log"
)

// Transport defaults.
const (
	// DefaultConnectTimeout bounds the websocket dial.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds a single Send.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultMaxMessageSize is the largest inbound message accepted (1 MB).
	DefaultMaxMessageSize = 1 << 20

	// MaxLogFrameDataSize caps the frame bytes included in capture events.
	MaxLogFrameDataSize = 4096
)

// Transport errors.
var (
	// ErrSessionClosed indicates the session is no longer usable.
	ErrSessionClosed = errors.New("session closed")
)

// Config configures a Dialer.
type Config struct {
	// ConnectTimeout bounds the dial (default: 10s).
	ConnectTimeout time.Duration

	// WriteTimeout bounds each Send (default: 10s).
	WriteTimeout time.Duration

	// MaxMessageSize is the inbound message size limit (default: 1 MB).
	MaxMessageSize int64

	// Logger receives protocol capture events. Nil disables capture.
	Logger log.Logger
}

// Callbacks are raised by a session's read loop. OnMessage runs on the
// read loop goroutine; a blocking handler stalls inbound delivery.
// OnClosed fires exactly once, after the last OnMessage.
type Callbacks struct {
	OnMessage func(s *Session, data []byte)
	OnClosed  func(s *Session, code int, reason string)
	OnError   func(s *Session, err error)
}

// Dialer opens websocket sessions to a gateway.
type Dialer struct {
	config Config
}

// NewDialer creates a dialer with the given configuration.
func NewDialer(config Config) *Dialer {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	return &Dialer{config: config}
}

// Dial opens one duplex websocket to url. No inbound message is
// delivered until Start is called, so the caller can finish wiring its
// routing first. Fails with a transport error if the dial exceeds the
// connect timeout.
func (d *Dialer) Dial(ctx context.Context, url string, cb Callbacks) (*Session, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.ConnectTimeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	conn.SetReadLimit(d.config.MaxMessageSize)

	readCtx, cancelRead := context.WithCancel(context.Background())
	s := &Session{
		id:           uuid.New().String(),
		url:          url,
		conn:         conn,
		cb:           cb,
		writeTimeout: d.config.WriteTimeout,
		logger:       d.config.Logger,
		readCtx:      readCtx,
		cancelRead:   cancelRead,
		closeCh:      make(chan struct{}),
	}
	return s, nil
}

// Session is one live websocket connection to the gateway.
type Session struct {
	id           string
	url          string
	conn         *websocket.Conn
	cb           Callbacks
	writeTimeout time.Duration
	logger       log.Logger

	readCtx    context.Context
	cancelRead context.CancelFunc

	startOnce sync.Once
	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// Start begins the read loop. Messages queued by the peer since the dial
// are delivered in order once Start runs; nothing is dropped before it.
// Calling Start more than once is a no-op.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.readLoop()
	})
}

// ID returns the unique connection id of this session.
func (s *Session) ID() string {
	return s.id
}

// URL returns the gateway URL this session was dialed to.
func (s *Session) URL() string {
	return s.url
}

// Send writes one text message. Fails with ErrSessionClosed once the
// session has closed.
func (s *Session) Send(data []byte) error {
	select {
	case <-s.closeCh:
		return ErrSessionClosed
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}

	s.logFrame(data, log.DirectionOut)
	return nil
}

// Close tears the session down. Safe to call multiple times and
// concurrently with the read loop. The OnClosed callback still fires
// (from the read loop) if it has not already.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.cancelRead()
		err = s.conn.Close(websocket.StatusNormalClosure, "client closing")
	})
	return err
}

// Done is closed when the session is no longer usable.
func (s *Session) Done() <-chan struct{} {
	return s.closeCh
}

// Wait blocks until the read loop has exited.
func (s *Session) Wait() {
	s.wg.Wait()
}

// readLoop delivers inbound messages until the socket dies, then raises
// OnClosed exactly once.
func (s *Session) readLoop() {
	defer s.wg.Done()

	for {
		_, data, err := s.conn.Read(s.readCtx)
		if err != nil {
			code := int(websocket.CloseStatus(err))
			reason := ""
			var closeErr websocket.CloseError
			if errors.As(err, &closeErr) {
				reason = closeErr.Reason
			}

			// Read errors after a local Close are expected teardown noise.
			select {
			case <-s.closeCh:
			default:
				if code < 0 && s.cb.OnError != nil {
					s.cb.OnError(s, err)
				}
			}

			s.closeOnce.Do(func() {
				close(s.closeCh)
				s.cancelRead()
			})

			if s.cb.OnClosed != nil {
				s.cb.OnClosed(s, code, reason)
			}
			return
		}

		s.logFrame(data, log.DirectionIn)
		if s.cb.OnMessage != nil {
			s.cb.OnMessage(s, data)
		}
	}
}

// logFrame emits a transport-layer capture event for one raw frame.
func (s *Session) logFrame(data []byte, direction log.Direction) {
	if s.logger == nil {
		return
	}

	frameData := data
	truncated := false
	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}

	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.id,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		GatewayURL:   s.url,
		Frame: &log.FrameEvent{
			Size:      len(data),
			Data:      frameData,
			Truncated: truncated,
		},
	})
}
