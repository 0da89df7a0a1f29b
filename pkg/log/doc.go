// Package log provides structured protocol capture for the gateway client.
//
// It defines the Logger interface and Event types for recording
// protocol-level activity at each layer (transport, wire, client). It is
// separate from operational logging (slog): protocol capture produces a
// complete machine-readable trace of one connection for debugging.
//
// # Basic Usage
//
//	// Development: events on the console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Production: binary capture file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/gatewire/client.glog")
//
//	// Both at once
//	cfg.ProtocolLogger = log.NewMultiLogger(slogAdapter, fileLogger)
//
// # File Format
//
// Capture files are a stream of CBOR-encoded Event records (.glog). Reader
// iterates a file with optional filtering.
package log
