package client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gatewire/gatewire-go/pkg/wire"
)

func TestCorrelatorQueue(t *testing.T) {
	t.Run("flush preserves submission order", func(t *testing.T) {
		c := NewCorrelator(0)

		for _, m := range []string{"first", "second", "third"} {
			if _, err := c.Enqueue(m, nil); err != nil {
				t.Fatalf("enqueue %s: %v", m, err)
			}
		}

		var sent []string
		c.Flush(func(f *wire.RequestFrame) error {
			sent = append(sent, f.Method)
			return nil
		})

		want := []string{"first", "second", "third"}
		if len(sent) != len(want) {
			t.Fatalf("sent %d frames, want %d", len(sent), len(want))
		}
		for i := range want {
			if sent[i] != want[i] {
				t.Fatalf("frame %d method = %s, want %s", i, sent[i], want[i])
			}
		}
		if got := c.QueueLen(); got != 0 {
			t.Fatalf("queue length after flush = %d, want 0", got)
		}
		if got := c.InflightLen(); got != 3 {
			t.Fatalf("in-flight after flush = %d, want 3", got)
		}
	})

	t.Run("queue bound fails fast", func(t *testing.T) {
		c := NewCorrelator(2)

		for i := 0; i < 2; i++ {
			if _, err := c.Enqueue("m", nil); err != nil {
				t.Fatalf("enqueue %d: %v", i, err)
			}
		}
		if _, err := c.Enqueue("m", nil); !errors.Is(err, ErrQueueFull) {
			t.Fatalf("enqueue past bound: err = %v, want ErrQueueFull", err)
		}
	})

	t.Run("send failure resolves without requeue", func(t *testing.T) {
		c := NewCorrelator(0)
		p, _ := c.Enqueue("doomed", nil)

		sendErr := errors.New("socket broke")
		c.Flush(func(*wire.RequestFrame) error { return sendErr })

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if _, err := p.Wait(ctx); !errors.Is(err, sendErr) {
			t.Fatalf("wait: err = %v, want %v", err, sendErr)
		}
		if got := c.QueueLen(); got != 0 {
			t.Fatalf("queue length = %d, want 0", got)
		}
		if got := c.InflightLen(); got != 0 {
			t.Fatalf("in-flight = %d, want 0", got)
		}
	})
}

func TestCorrelatorResolve(t *testing.T) {
	flushAll := func(c *Correlator) {
		c.Flush(func(*wire.RequestFrame) error { return nil })
	}

	t.Run("response payload reaches the waiter", func(t *testing.T) {
		c := NewCorrelator(0)
		p, _ := c.Enqueue("get", nil)
		flushAll(c)

		payload := json.RawMessage(`{"value":42}`)
		if !c.Resolve(&wire.ResponseFrame{ID: p.ID, OK: true, Payload: payload}) {
			t.Fatal("resolve returned false for a known id")
		}

		got, err := p.Wait(context.Background())
		if err != nil {
			t.Fatalf("wait: %v", err)
		}
		if string(got) != string(payload) {
			t.Fatalf("payload = %s, want %s", got, payload)
		}
	})

	t.Run("error response surfaces as wire error", func(t *testing.T) {
		c := NewCorrelator(0)
		p, _ := c.Enqueue("get", nil)
		flushAll(c)

		c.Resolve(&wire.ResponseFrame{
			ID:    p.ID,
			Error: &wire.Error{Code: "not_found", Message: "no such thing"},
		})

		_, err := p.Wait(context.Background())
		var wireErr *wire.Error
		if !errors.As(err, &wireErr) {
			t.Fatalf("wait: err = %v, want *wire.Error", err)
		}
		if wireErr.Code != "not_found" {
			t.Fatalf("error code = %s, want not_found", wireErr.Code)
		}
	})

	t.Run("unknown and duplicate ids are ignored", func(t *testing.T) {
		c := NewCorrelator(0)
		p, _ := c.Enqueue("get", nil)
		flushAll(c)

		if c.Resolve(&wire.ResponseFrame{ID: "no-such-id", OK: true}) {
			t.Fatal("resolve returned true for an unknown id")
		}

		c.Resolve(&wire.ResponseFrame{ID: p.ID, OK: true})
		if c.Resolve(&wire.ResponseFrame{ID: p.ID, OK: true}) {
			t.Fatal("duplicate resolve returned true")
		}
	})

	t.Run("abandon stops matching", func(t *testing.T) {
		c := NewCorrelator(0)
		p, _ := c.Enqueue("get", nil)
		flushAll(c)

		c.Abandon(p.ID)
		if c.Resolve(&wire.ResponseFrame{ID: p.ID, OK: true}) {
			t.Fatal("resolve matched an abandoned request")
		}
	})
}

func TestCorrelatorDisconnect(t *testing.T) {
	t.Run("reject inflight keeps queued requests", func(t *testing.T) {
		c := NewCorrelator(0)
		sent, _ := c.Enqueue("sent", nil)
		c.Flush(func(*wire.RequestFrame) error { return nil })
		queued, _ := c.Enqueue("queued", nil)

		c.RejectInflight(ErrConnectionLost)

		if _, err := sent.Wait(context.Background()); !errors.Is(err, ErrConnectionLost) {
			t.Fatalf("in-flight request: err = %v, want ErrConnectionLost", err)
		}
		if got := c.QueueLen(); got != 1 {
			t.Fatalf("queue length = %d, want 1", got)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		if _, err := queued.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("queued request resolved early: %v", err)
		}
	})

	t.Run("close rejects everything and future enqueues", func(t *testing.T) {
		c := NewCorrelator(0)
		sent, _ := c.Enqueue("sent", nil)
		c.Flush(func(*wire.RequestFrame) error { return nil })
		queued, _ := c.Enqueue("queued", nil)

		c.Close(ErrClientClosed)

		for _, p := range []*Pending{sent, queued} {
			if _, err := p.Wait(context.Background()); !errors.Is(err, ErrClientClosed) {
				t.Fatalf("request %s: err = %v, want ErrClientClosed", p.Method, err)
			}
		}
		if _, err := c.Enqueue("late", nil); !errors.Is(err, ErrClientClosed) {
			t.Fatalf("enqueue after close: err = %v, want ErrClientClosed", err)
		}
	})
}
