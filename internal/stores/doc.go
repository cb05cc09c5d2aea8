// Package stores provides the Redis-backed records behind the auth facade:
// user accounts, single-use verification/reset tokens, and login sessions.
//
// # Design
//
// Each record is stored as a JSON document under a prefixed key. Read-modify-write
// operations (token verification, user updates) use WATCH/MULTI optimistic
// transactions with bounded retry on contention. Email uniqueness is enforced with
// SETNX on an index key so concurrent sign-ups cannot create duplicates.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control. It does NOT validate
// input, hash passwords, record auth events, or make authentication decisions;
// those belong to the sxpauth Engine.
//
// # What this package must NOT do
//
//   - Import sxpauth or any sibling internal package except internal (token generation).
//   - Log or expose password hashes beyond the records it returns.
package stores
