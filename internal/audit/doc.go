// Package audit holds the canonical authentication event model and its
// asynchronous delivery to external sinks.
//
// # Components
//
//   - [Event], [Action]: the record appended to the event log for every tracked occurrence.
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//
// # Architecture boundaries
//
// This package owns the event shape and sink delivery. It does NOT decide which events
// to record, persist the log, or evaluate policy; that belongs to internal/tracking.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import sxpauth or any sibling internal package.
package audit
