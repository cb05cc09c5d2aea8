package sxpauth

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type timezoneContextKey struct{}
type sessionIDContextKey struct{}
type requestIDContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. It is copied onto
// every event recorded for the request.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. Events derive
// their device info from it.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithTimezone attaches the caller's IANA timezone name. Logins from a new
// timezone are flagged as suspicious.
func WithTimezone(ctx context.Context, timezone string) context.Context {
	return context.WithValue(ctx, timezoneContextKey{}, timezone)
}

// WithSessionID attaches the client session id used to correlate events
// from one browser tab or device.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey{}, sessionID)
}

// WithRequestID attaches a per-request id. Events recorded without a client
// session id use it instead, so one request's events still correlate.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

func stringFromContext(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func ClientIPFromContext(ctx context.Context) string {
	return stringFromContext(ctx, clientIPContextKey{})
}

func UserAgentFromContext(ctx context.Context) string {
	return stringFromContext(ctx, userAgentContextKey{})
}

func TimezoneFromContext(ctx context.Context) string {
	return stringFromContext(ctx, timezoneContextKey{})
}

func SessionIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, sessionIDContextKey{})
}

func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, requestIDContextKey{})
}
