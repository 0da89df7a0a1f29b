package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/gatewire/gatewire-go/pkg/client"
	"github.com/gatewire/gatewire-go/pkg/wire"
)

// console is the interactive command loop.
type console struct {
	c  *client.Client
	rl *readline.Instance

	eventsOn bool
	unsub    func()
}

func newConsole(c *client.Client) (*console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "gatewire> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &console{c: c, rl: rl}, nil
}

// Run starts the command loop; it returns when the user exits or ctx ends.
func (con *console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer con.rl.Close()
	defer con.stopEvents()

	con.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := con.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(con.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			con.printHelp()

		case "req", "r":
			con.cmdRequest(ctx, input, args)

		case "ping":
			con.cmdPing(ctx)

		case "status", "s":
			con.cmdStatus()

		case "events", "ev":
			con.cmdEvents(args)

		case "id":
			fmt.Fprintln(con.rl.Stdout(), con.c.DeviceID())

		case "quit", "exit", "q":
			cancel()
			return

		default:
			fmt.Fprintf(con.rl.Stdout(), "Unknown command: %s (try 'help')\n", cmd)
		}
	}
}

func (con *console) printHelp() {
	out := con.rl.Stdout()
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  req <method> [json-params]  - Issue an RPC request")
	fmt.Fprintln(out, "  ping                        - Round-trip liveness check")
	fmt.Fprintln(out, "  status                      - Show connection status")
	fmt.Fprintln(out, "  events on|off               - Toggle event printing")
	fmt.Fprintln(out, "  id                          - Show the local device id")
	fmt.Fprintln(out, "  quit                        - Exit")
}

// cmdRequest issues one RPC. Everything after the method name is taken
// verbatim as the JSON params.
func (con *console) cmdRequest(ctx context.Context, input string, args []string) {
	out := con.rl.Stdout()
	if len(args) == 0 {
		fmt.Fprintln(out, "Usage: req <method> [json-params]")
		return
	}
	method := args[0]

	var params json.RawMessage
	if idx := strings.Index(input, method); idx >= 0 {
		rest := strings.TrimSpace(input[idx+len(method):])
		if rest != "" {
			if !json.Valid([]byte(rest)) {
				fmt.Fprintf(out, "Invalid JSON params: %s\n", rest)
				return
			}
			params = json.RawMessage(rest)
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	payload, err := con.c.Request(reqCtx, method, params)
	if err != nil {
		var wireErr *wire.Error
		if errors.As(err, &wireErr) {
			fmt.Fprintf(out, "Gateway error [%s]: %s\n", wireErr.Code, wireErr.Message)
			return
		}
		fmt.Fprintf(out, "Request failed: %v\n", err)
		return
	}

	fmt.Fprintf(out, "OK (%s)\n", time.Since(start).Round(time.Millisecond))
	if len(payload) > 0 {
		fmt.Fprintln(out, prettyJSON(payload))
	}
}

func (con *console) cmdPing(ctx context.Context) {
	out := con.rl.Stdout()

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	if _, err := con.c.Request(reqCtx, "ping", nil); err != nil {
		fmt.Fprintf(out, "Ping failed: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Pong in %s\n", time.Since(start).Round(time.Millisecond))
}

func (con *console) cmdStatus() {
	out := con.rl.Stdout()
	fmt.Fprintf(out, "State:    %s\n", con.c.State())
	fmt.Fprintf(out, "Device:   %s\n", con.c.DeviceID())
	fmt.Fprintf(out, "Queued:   %d request(s)\n", con.c.QueuedRequests())
	if ack := con.c.Ack(); ack.SessionID != "" {
		fmt.Fprintf(out, "Session:  %s (protocol %d)\n", ack.SessionID, ack.Protocol)
	}
}

func (con *console) cmdEvents(args []string) {
	out := con.rl.Stdout()
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		fmt.Fprintln(out, "Usage: events on|off")
		return
	}

	if args[0] == "off" {
		con.stopEvents()
		fmt.Fprintln(out, "Event printing off.")
		return
	}
	if con.eventsOn {
		return
	}
	con.eventsOn = true
	con.unsub = con.c.OnEvent(func(ev *wire.EventFrame) {
		fmt.Fprintf(out, "\n[event] %s", ev.Event)
		if ev.Seq != 0 {
			fmt.Fprintf(out, " (seq %d)", ev.Seq)
		}
		fmt.Fprintln(out)
		if len(ev.Payload) > 0 {
			fmt.Fprintln(out, prettyJSON(ev.Payload))
		}
	})
	fmt.Fprintln(out, "Event printing on.")
}

func (con *console) stopEvents() {
	if con.unsub != nil {
		con.unsub()
		con.unsub = nil
	}
	con.eventsOn = false
}

func prettyJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
