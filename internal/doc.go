// Package internal contains helpers that are intentionally private to sxpauth,
// including secure random token generation.
//
// # Sub-packages
//
//   - audit: event model and async dispatch (Dispatcher + Sink implementations)
//   - tracking: event log, recorder queue, lockout policy, heuristics, statistics
//   - device: User-Agent sniffing for event metadata
//   - stores: Redis-backed users, tokens and sessions
//
// # What this package must NOT do
//
//   - Export types that appear in the public sxpauth API except through aliases.
//   - Be imported by any package outside the sxpauth module.
package internal
