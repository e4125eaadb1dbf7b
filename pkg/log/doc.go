// Package log provides the protocol trace for the positioner driver.
//
// The trace is separate from operational logging (slog): it records every
// line written to or read from a transceiver, every decoded frame, and the
// lifecycle of every request, so a session can be replayed and analysed
// after the fact.
//
// # Basic Usage
//
// Components accept a Logger; pass nil or NoopLogger to disable tracing:
//
//	// Development: trace to the console through slog
//	tracer := log.NewSlogAdapter(slog.Default())
//
//	// Production: binary trace file
//	tracer, _ := log.NewFileLogger("/var/log/tendo/bench.plog")
//
//	// Both
//	tracer := log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fileLogger)
//
// # Event Types
//
// Events are captured at several layers:
//   - Transport: raw ASCII lines (LineEvent)
//   - Frame: decoded protocol frames (FrameEvent)
//   - Dispatch: request lifecycle (RequestEvent)
//   - Device: transceiver, dispatcher and upgrade state (StateChangeEvent)
//
// Errors at any layer use ErrorEventData.
//
// # File Format
//
// Trace files are a sequence of CBOR encoded events with integer keys and
// the .plog extension. The poslog tool views, filters and summarises them.
package log
