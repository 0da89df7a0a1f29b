package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/gatewire/gatewire-go/pkg/wire"
)

// DefaultQueueLimit bounds the offline request queue. Requests beyond
// the bound fail fast with ErrQueueFull instead of silently dropping
// older queued work.
const DefaultQueueLimit = 1024

// pendingResult is the single outcome of a pending request.
type pendingResult struct {
	payload json.RawMessage
	err     error
}

// Pending is a request accepted by the client and awaiting its outcome.
// Exactly one outcome is delivered per Pending.
type Pending struct {
	ID     string
	Method string
	Params json.RawMessage

	once sync.Once
	ch   chan pendingResult
}

// newPending creates a pending request with a fresh correlation id.
func newPending(method string, params json.RawMessage) *Pending {
	return &Pending{
		ID:     uuid.New().String(),
		Method: method,
		Params: params,
		ch:     make(chan pendingResult, 1),
	}
}

// resolve delivers the outcome. Later calls are no-ops.
func (p *Pending) resolve(payload json.RawMessage, err error) {
	p.once.Do(func() {
		p.ch <- pendingResult{payload: payload, err: err}
	})
}

// Wait blocks until the request resolves or ctx is done.
func (p *Pending) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case r := <-p.ch:
		return r.payload, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Correlator owns the offline request queue and the in-flight map.
// Queued requests are flushed FIFO once a connection authenticates;
// in-flight requests are resolved by id when responses arrive.
type Correlator struct {
	mu       sync.Mutex
	queue    []*Pending
	inflight map[string]*Pending
	limit    int
	closed   bool
}

// NewCorrelator creates a correlator with the given queue bound
// (0 means DefaultQueueLimit).
func NewCorrelator(limit int) *Correlator {
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	return &Correlator{
		inflight: make(map[string]*Pending),
		limit:    limit,
	}
}

// Enqueue appends a new request to the queue in submission order.
func (c *Correlator) Enqueue(method string, params json.RawMessage) (*Pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}
	if len(c.queue) >= c.limit {
		return nil, ErrQueueFull
	}

	p := newPending(method, params)
	c.queue = append(c.queue, p)
	return p, nil
}

// Register places a pending request directly into the in-flight map,
// bypassing the queue. Used for requests sent outside the flush path
// (heartbeat probes).
func (c *Correlator) Register(p *Pending) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	c.inflight[p.ID] = p
	return nil
}

// Flush drains the queue in FIFO order: each request is registered
// in-flight and handed to send. A send failure resolves that one request
// as failed and removes it; it is not re-queued. Call only while
// authenticated.
func (c *Correlator) Flush(send func(*wire.RequestFrame) error) {
	for {
		c.mu.Lock()
		if c.closed || len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		p := c.queue[0]
		c.queue = c.queue[1:]
		c.inflight[p.ID] = p
		c.mu.Unlock()

		frame := &wire.RequestFrame{ID: p.ID, Method: p.Method, Params: p.Params}
		if err := send(frame); err != nil {
			c.remove(p.ID)
			p.resolve(nil, err)
		}
	}
}

// Resolve matches a response frame to its in-flight request. Unmatched
// ids are ignored: duplicate or late frames must not disturb anything.
func (c *Correlator) Resolve(resp *wire.ResponseFrame) bool {
	c.mu.Lock()
	p, ok := c.inflight[resp.ID]
	if ok {
		delete(c.inflight, resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	if err := resp.Err(); err != nil {
		p.resolve(nil, err)
	} else {
		p.resolve(resp.Payload, nil)
	}
	return true
}

// Abandon removes a request from the queue or in-flight map without
// resolving it. Used when a caller stops waiting.
func (c *Correlator) Abandon(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inflight, id)
	for i, p := range c.queue {
		if p.ID == id {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return
		}
	}
}

// RejectInflight fails every in-flight request with err. Queued-but-
// unsent requests stay queued for retry after reconnect.
func (c *Correlator) RejectInflight(err error) {
	c.mu.Lock()
	pending := make([]*Pending, 0, len(c.inflight))
	for _, p := range c.inflight {
		pending = append(pending, p)
	}
	c.inflight = make(map[string]*Pending)
	c.mu.Unlock()

	for _, p := range pending {
		p.resolve(nil, err)
	}
}

// Close rejects everything, queued and in-flight, and fails all future
// Enqueue calls. Used on shutdown.
func (c *Correlator) Close(err error) {
	c.mu.Lock()
	c.closed = true
	pending := make([]*Pending, 0, len(c.inflight)+len(c.queue))
	for _, p := range c.inflight {
		pending = append(pending, p)
	}
	pending = append(pending, c.queue...)
	c.inflight = make(map[string]*Pending)
	c.queue = nil
	c.mu.Unlock()

	for _, p := range pending {
		p.resolve(nil, err)
	}
}

// QueueLen returns the number of queued-but-unsent requests.
func (c *Correlator) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// InflightLen returns the number of requests awaiting responses.
func (c *Correlator) InflightLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// remove deletes an in-flight entry by id.
func (c *Correlator) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, id)
}
