// Package middleware adapts HTTP requests to the sxpauth engine.
//
// # Middleware
//
//   - [RequestContext] copies client IP, User-Agent, timezone and client
//     session id onto the request context, where the engine picks them up
//     for recorded events.
//   - [RequireSession] resolves the bearer token to a user with
//     Engine.ValidateSession.
//   - [RequireAdminToken] guards operator routes with a shared token.
//
// This package translates HTTP semantics into Engine calls. It does not
// make authentication decisions of its own.
package middleware
