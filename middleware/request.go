package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/sxpoptimizer/sxpauth"
)

// Headers read by RequestContext.
const (
	HeaderTimezone  = "X-Timezone"
	HeaderSessionID = "X-Session-ID"
)

const maxHeaderValue = 256

// RequestContext attaches the request environment the engine records on
// every event. Client IP comes from RemoteAddr; put chi's RealIP in front of
// it when running behind a trusted proxy. The request id is chi's when its
// RequestID middleware ran first, otherwise a fresh uuid.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		rid := chimw.GetReqID(ctx)
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx = sxpauth.WithRequestID(ctx, rid)

		if ip := remoteIP(r.RemoteAddr); ip != "" {
			ctx = sxpauth.WithClientIP(ctx, ip)
		}
		if ua := r.Header.Get("User-Agent"); ua != "" {
			ctx = sxpauth.WithUserAgent(ctx, ua)
		}
		if tz := headerValue(r, HeaderTimezone); tz != "" {
			if _, err := time.LoadLocation(tz); err == nil {
				ctx = sxpauth.WithTimezone(ctx, tz)
			}
		}
		if sid := headerValue(r, HeaderSessionID); sid != "" {
			ctx = sxpauth.WithSessionID(ctx, sid)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func headerValue(r *http.Request, name string) string {
	v := strings.TrimSpace(r.Header.Get(name))
	if len(v) > maxHeaderValue {
		return ""
	}
	return v
}

func remoteIP(addr string) string {
	if addr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		// chi's RealIP stores a bare address
		return addr
	}
	return host
}
