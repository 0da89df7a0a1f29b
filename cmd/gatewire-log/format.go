package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/gatewire/gatewire-go/pkg/log"
)

// formatEvent renders one capture event as a single line.
func formatEvent(event log.Event) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %-3s %-9s",
		event.Timestamp.Format("15:04:05.000"),
		directionArrow(event),
		event.Layer)

	if event.ConnectionID != "" {
		fmt.Fprintf(&b, " [%s]", shortID(event.ConnectionID))
	}

	switch {
	case event.Message != nil:
		m := event.Message
		fmt.Fprintf(&b, " %s", m.Kind)
		if m.Method != "" {
			fmt.Fprintf(&b, " %s", m.Method)
		}
		if m.Event != "" {
			fmt.Fprintf(&b, " %s", m.Event)
			if m.Seq != 0 {
				fmt.Fprintf(&b, " seq=%d", m.Seq)
			}
		}
		if m.ID != "" {
			fmt.Fprintf(&b, " id=%s", shortID(m.ID))
		}
		if m.OK != nil {
			fmt.Fprintf(&b, " ok=%t", *m.OK)
		}

	case event.StateChange != nil:
		s := event.StateChange
		fmt.Fprintf(&b, " %s -> %s", s.OldState, s.NewState)
		if s.Reason != "" {
			fmt.Fprintf(&b, " (%s)", s.Reason)
		}

	case event.Error != nil:
		fmt.Fprintf(&b, " ERROR %s", event.Error.Message)
		if event.Error.Context != "" {
			fmt.Fprintf(&b, " (%s)", event.Error.Context)
		}

	case event.Frame != nil:
		fmt.Fprintf(&b, " frame %d bytes", event.Frame.Size)
		if event.Frame.Truncated {
			b.WriteString(" (truncated)")
		}
	}

	return b.String()
}

func directionArrow(event log.Event) string {
	if event.Category != log.CategoryMessage {
		return ""
	}
	if event.Direction == log.DirectionOut {
		return "-->"
	}
	return "<--"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// exportEvent is the JSONL shape of one capture event.
type exportEvent struct {
	Timestamp    time.Time             `json:"ts"`
	ConnectionID string                `json:"connId,omitempty"`
	Direction    string                `json:"direction,omitempty"`
	Layer        string                `json:"layer"`
	Category     string                `json:"category"`
	GatewayURL   string                `json:"gatewayUrl,omitempty"`
	DeviceID     string                `json:"deviceId,omitempty"`
	Frame        *exportFrame          `json:"frame,omitempty"`
	Message      *log.MessageEvent     `json:"message,omitempty"`
	StateChange  *log.StateChangeEvent `json:"stateChange,omitempty"`
	Error        *log.ErrorEventData   `json:"error,omitempty"`
}

type exportFrame struct {
	Size      int    `json:"size"`
	Data      string `json:"data,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

func newExportEvent(event log.Event) exportEvent {
	out := exportEvent{
		Timestamp:    event.Timestamp,
		ConnectionID: event.ConnectionID,
		Layer:        event.Layer.String(),
		Category:     event.Category.String(),
		GatewayURL:   event.GatewayURL,
		DeviceID:     event.DeviceID,
		Message:      event.Message,
		StateChange:  event.StateChange,
		Error:        event.Error,
	}
	if event.Category == log.CategoryMessage {
		out.Direction = event.Direction.String()
	}
	if event.Frame != nil {
		out.Frame = &exportFrame{
			Size:      event.Frame.Size,
			Data:      string(event.Frame.Data),
			Truncated: event.Frame.Truncated,
		}
	}
	return out
}
