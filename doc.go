// Package sxpauth is the account and authentication layer of SXP Optimizer:
// sign-up, login with lockout, email verification, password reset, and an
// append-only log of every authentication event.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build]. A [Client] wraps an Engine for one caller and exposes the
// anonymous, authenticating and authenticated states.
//
// # Event log
//
// Every flow records its outcome as an event. The log is the only input to
// the lockout decision and to the suspicious-activity heuristics, which may
// append follow-up events of their own. Recording never fails the flow that
// triggered it; storage problems are logged.
//
// # Architecture boundaries
//
// sxpauth is the public surface. Event tracking, Redis stores and device
// parsing live under internal/. Password hashing, session tokens, mail and
// metrics are importable sub-packages with no dependency back on sxpauth.
//
// # Request context
//
// [WithClientIP], [WithUserAgent], [WithTimezone] and [WithSessionID] attach
// request details that are copied onto recorded events.
package sxpauth
