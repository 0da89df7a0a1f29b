package client

import (
	"sync"
	"time"
)

// Heartbeat defaults.
const (
	// DefaultProbeInterval is the time between liveness probes.
	DefaultProbeInterval = 30 * time.Second

	// DefaultAckTimeout is how long to wait for a probe acknowledgment
	// before declaring the connection dead.
	DefaultAckTimeout = 20 * time.Second
)

// HeartbeatConfig configures the liveness monitor.
type HeartbeatConfig struct {
	// ProbeInterval is the time between probes.
	ProbeInterval time.Duration

	// AckTimeout is the acknowledgment window per probe.
	AckTimeout time.Duration
}

// Heartbeat periodically probes connection liveness. A single missed
// acknowledgment, or a probe that cannot be sent, declares the
// connection dead via onDead. The monitor stops itself after onDead.
type Heartbeat struct {
	config HeartbeatConfig

	sendProbe func() error
	onDead    func()

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	ackCh   chan struct{}
}

// NewHeartbeat creates a heartbeat monitor. sendProbe must return an
// error only when the probe could not be put on the wire.
func NewHeartbeat(config HeartbeatConfig, sendProbe func() error, onDead func()) *Heartbeat {
	if config.ProbeInterval == 0 {
		config.ProbeInterval = DefaultProbeInterval
	}
	if config.AckTimeout == 0 {
		config.AckTimeout = DefaultAckTimeout
	}
	return &Heartbeat{
		config:    config,
		sendProbe: sendProbe,
		onDead:    onDead,
		stopCh:    make(chan struct{}),
		ackCh:     make(chan struct{}, 1),
	}
}

// Start begins the monitoring loop. The first probe is sent immediately.
func (h *Heartbeat) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.loop()
}

// Stop halts monitoring and clears all timers. Safe to call more than
// once and concurrently with the loop.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return
	}
	h.running = false
	close(h.stopCh)
}

// Ack records a liveness acknowledgment for the outstanding probe.
func (h *Heartbeat) Ack() {
	select {
	case h.ackCh <- struct{}{}:
	default:
	}
}

// IsRunning reports whether the loop is active.
func (h *Heartbeat) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// loop is the monitoring loop. Each probe starts the ack timer; an ack
// clears it. The timer firing with a probe outstanding, or a probe send
// failure, ends the loop through onDead.
func (h *Heartbeat) loop() {
	ticker := time.NewTicker(h.config.ProbeInterval)
	defer ticker.Stop()

	ackTimer := time.NewTimer(h.config.AckTimeout)
	if !ackTimer.Stop() {
		<-ackTimer.C
	}
	defer ackTimer.Stop()

	pending := false

	probe := func() bool {
		if err := h.sendProbe(); err != nil {
			return false
		}
		pending = true
		if !ackTimer.Stop() {
			select {
			case <-ackTimer.C:
			default:
			}
		}
		ackTimer.Reset(h.config.AckTimeout)
		return true
	}

	if !probe() {
		h.die()
		return
	}

	for {
		select {
		case <-h.stopCh:
			return

		case <-ticker.C:
			if pending {
				// Ack timer is still running; let it decide.
				continue
			}
			if !probe() {
				h.die()
				return
			}

		case <-h.ackCh:
			pending = false
			if !ackTimer.Stop() {
				select {
				case <-ackTimer.C:
				default:
				}
			}

		case <-ackTimer.C:
			if pending {
				h.die()
				return
			}
		}
	}
}

// die stops the monitor and reports the connection dead, unless Stop
// already won the race.
func (h *Heartbeat) die() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	close(h.stopCh)
	h.mu.Unlock()

	if h.onDead != nil {
		h.onDead()
	}
}
