package log

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func sampleEvent(connID string, category Category) Event {
	ev := Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    DirectionOut,
		Layer:        LayerWire,
		Category:     category,
	}
	switch category {
	case CategoryMessage:
		ok := true
		ev.Message = &MessageEvent{Kind: "RESPONSE", ID: "r-1", OK: &ok}
	case CategoryState:
		ev.StateChange = &StateChangeEvent{OldState: "connecting", NewState: "authenticated"}
	case CategoryError:
		ev.Error = &ErrorEventData{Layer: LayerTransport, Message: "socket closed"}
	}
	return ev
}

func TestEncodeDecodeEvent(t *testing.T) {
	original := sampleEvent("c-1", CategoryMessage)
	original.Message.Method = "sessions.send"
	original.GatewayURL = "ws://localhost:18789"

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.ConnectionID != "c-1" {
		t.Errorf("conn id = %q", decoded.ConnectionID)
	}
	if decoded.Message == nil || decoded.Message.Method != "sessions.send" {
		t.Errorf("message = %+v", decoded.Message)
	}
	if decoded.Message.OK == nil || !*decoded.Message.OK {
		t.Error("ok flag lost in round trip")
	}
}

func TestFileLoggerAndReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.glog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	logger.Log(sampleEvent("c-1", CategoryMessage))
	logger.Log(sampleEvent("c-2", CategoryState))
	logger.Log(sampleEvent("c-1", CategoryError))

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Events after Close are dropped, not errors.
	logger.Log(sampleEvent("c-3", CategoryMessage))

	t.Run("ReadAll", func(t *testing.T) {
		r, err := NewReader(path)
		if err != nil {
			t.Fatalf("NewReader failed: %v", err)
		}
		defer r.Close()

		count := 0
		for {
			_, err := r.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("Next failed: %v", err)
			}
			count++
		}
		if count != 3 {
			t.Errorf("read %d events, want 3", count)
		}
	})

	t.Run("FilterByConnection", func(t *testing.T) {
		r, err := NewFilteredReader(path, Filter{ConnectionID: "c-1"})
		if err != nil {
			t.Fatalf("NewFilteredReader failed: %v", err)
		}
		defer r.Close()

		count := 0
		for {
			ev, err := r.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("Next failed: %v", err)
			}
			if ev.ConnectionID != "c-1" {
				t.Errorf("filter leaked event for %q", ev.ConnectionID)
			}
			count++
		}
		if count != 2 {
			t.Errorf("read %d events, want 2", count)
		}
	})

	t.Run("FilterByCategory", func(t *testing.T) {
		cat := CategoryState
		r, err := NewFilteredReader(path, Filter{Category: &cat})
		if err != nil {
			t.Fatal(err)
		}
		defer r.Close()

		ev, err := r.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if ev.StateChange == nil {
			t.Error("state event has no StateChange payload")
		}
		if _, err := r.Next(); err != io.EOF {
			t.Errorf("expected EOF, got %v", err)
		}
	})
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.glog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				logger.Log(sampleEvent("c-1", CategoryMessage))
			}
		}()
	}
	wg.Wait()
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	count := 0
	for {
		if _, err := r.Next(); err != nil {
			break
		}
		count++
	}
	if count != 400 {
		t.Errorf("read %d events, want 400", count)
	}
}

func TestMultiLogger(t *testing.T) {
	var a, b recordingLogger
	m := NewMultiLogger(&a, &b)

	m.Log(sampleEvent("c-1", CategoryMessage))
	m.Log(sampleEvent("c-1", CategoryError))

	if len(a.events) != 2 || len(b.events) != 2 {
		t.Errorf("fan-out counts = %d, %d; want 2, 2", len(a.events), len(b.events))
	}
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	sl := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	adapter := NewSlogAdapter(sl)
	ev := sampleEvent("c-9", CategoryMessage)
	ev.Message.Method = "ping"
	adapter.Log(ev)

	out := buf.String()
	for _, want := range []string{"conn_id=c-9", "method=ping", "kind=RESPONSE"} {
		if !strings.Contains(out, want) {
			t.Errorf("slog output missing %q: %s", want, out)
		}
	}
}

// recordingLogger collects events for assertions.
type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}
