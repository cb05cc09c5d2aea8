// Package tracking implements the authentication event log: the recorder,
// the trailing-window lockout policy, the suspicious-activity heuristics and
// the statistics aggregator.
//
// The log is an append-only slice guarded by a mutex and mirrored to Redis
// after every append. Events leave the log only through retention pruning or
// an explicit Clear.
package tracking
