// Command gatewire-log views and analyzes protocol capture files.
//
// Capture files (.glog) are produced by passing a capture path to
// gatewire-cli or by wiring a log.FileLogger into a client.
//
// Usage:
//
//	gatewire-log <command> [flags] <file.glog>
//
// Commands:
//
//	view     View a capture file in human-readable form
//	stats    Show per-category and per-method counts
//	export   Export a capture file as JSON lines
//
// Examples:
//
//	# View all events
//	gatewire-log view session.glog
//
//	# View only wire-layer inbound messages
//	gatewire-log view -layer wire -direction in session.glog
//
//	# Count events by method
//	gatewire-log stats session.glog
//
//	# Export as JSONL for other tooling
//	gatewire-log export session.glog > session.jsonl
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/gatewire/gatewire-go/pkg/log"
)

const usage = `gatewire-log - Protocol capture analyzer

Usage:
  gatewire-log <command> [flags] <file.glog>

Commands:
  view     View a capture file in human-readable form
  stats    Show per-category and per-method counts
  export   Export a capture file as JSON lines

Use "gatewire-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "view":
		err = runView(args)
	case "stats":
		err = runStats(args)
	case "export":
		err = runExport(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runView(args []string) error {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	layer := fs.String("layer", "", "Filter by layer (transport, wire, client)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (message, state, error)")
	connID := fs.String("conn-id", "", "Filter by connection id")
	method := fs.String("method", "", "Filter by request method")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter, err := buildFilter(*layer, *direction, *category, *connID, *method)
	if err != nil {
		return err
	}

	path, err := capturePath(fs)
	if err != nil {
		return err
	}
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(formatEvent(event))
	}
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := capturePath(fs)
	if err != nil {
		return err
	}

	reader, err := log.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	total := 0
	byCategory := make(map[string]int)
	byMethod := make(map[string]int)
	connections := make(map[string]bool)

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		total++
		byCategory[event.Category.String()]++
		if event.ConnectionID != "" {
			connections[event.ConnectionID] = true
		}
		if event.Message != nil && event.Message.Method != "" {
			byMethod[event.Message.Method]++
		}
	}

	fmt.Printf("Events:      %d\n", total)
	fmt.Printf("Connections: %d\n", len(connections))
	fmt.Println("By category:")
	for _, k := range sortedKeys(byCategory) {
		fmt.Printf("  %-10s %d\n", k, byCategory[k])
	}
	if len(byMethod) > 0 {
		fmt.Println("By method:")
		for _, k := range sortedKeys(byMethod) {
			fmt.Printf("  %-20s %d\n", k, byMethod[k])
		}
	}
	return nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := capturePath(fs)
	if err != nil {
		return err
	}

	reader, err := log.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	enc := json.NewEncoder(os.Stdout)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := enc.Encode(newExportEvent(event)); err != nil {
			return err
		}
	}
}

func capturePath(fs *flag.FlagSet) (string, error) {
	if fs.NArg() < 1 {
		return "", fmt.Errorf("capture file path required")
	}
	return fs.Arg(0), nil
}

func buildFilter(layer, direction, category, connID, method string) (log.Filter, error) {
	filter := log.Filter{ConnectionID: connID, Method: method}

	switch layer {
	case "":
	case "transport":
		l := log.LayerTransport
		filter.Layer = &l
	case "wire":
		l := log.LayerWire
		filter.Layer = &l
	case "client":
		l := log.LayerClient
		filter.Layer = &l
	default:
		return filter, fmt.Errorf("unknown layer %q", layer)
	}

	switch direction {
	case "":
	case "in":
		d := log.DirectionIn
		filter.Direction = &d
	case "out":
		d := log.DirectionOut
		filter.Direction = &d
	default:
		return filter, fmt.Errorf("unknown direction %q", direction)
	}

	switch category {
	case "":
	case "message":
		c := log.CategoryMessage
		filter.Category = &c
	case "state":
		c := log.CategoryState
		filter.Category = &c
	case "error":
		c := log.CategoryError
		filter.Category = &c
	default:
		return filter, fmt.Errorf("unknown category %q", category)
	}

	return filter, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
