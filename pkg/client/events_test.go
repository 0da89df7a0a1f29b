package client

import (
	"testing"

	"github.com/gatewire/gatewire-go/pkg/wire"
)

func TestBroadcaster(t *testing.T) {
	t.Run("delivers in registration order", func(t *testing.T) {
		b := NewBroadcaster()

		var order []string
		b.Subscribe(func(*wire.EventFrame) { order = append(order, "first") })
		b.Subscribe(func(*wire.EventFrame) { order = append(order, "second") })
		b.Subscribe(func(*wire.EventFrame) { order = append(order, "third") })

		b.Publish(&wire.EventFrame{Event: "zone.changed"})

		want := []string{"first", "second", "third"}
		if len(order) != len(want) {
			t.Fatalf("delivered to %d handlers, want %d", len(order), len(want))
		}
		for i := range want {
			if order[i] != want[i] {
				t.Fatalf("delivery %d = %s, want %s", i, order[i], want[i])
			}
		}
	})

	t.Run("unsubscribe stops delivery and is idempotent", func(t *testing.T) {
		b := NewBroadcaster()

		var count int
		unsub := b.Subscribe(func(*wire.EventFrame) { count++ })

		b.Publish(&wire.EventFrame{Event: "e"})
		unsub()
		unsub()
		b.Publish(&wire.EventFrame{Event: "e"})

		if count != 1 {
			t.Fatalf("handler ran %d times, want 1", count)
		}
		if got := b.SubscriberCount(); got != 0 {
			t.Fatalf("subscriber count = %d, want 0", got)
		}
	})

	t.Run("panicking handler does not block the rest", func(t *testing.T) {
		b := NewBroadcaster()

		var reached bool
		b.Subscribe(func(*wire.EventFrame) { panic("bad handler") })
		b.Subscribe(func(*wire.EventFrame) { reached = true })

		b.Publish(&wire.EventFrame{Event: "e"})

		if !reached {
			t.Fatal("handler after the panicking one did not run")
		}
	})
}
