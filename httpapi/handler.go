package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sxpoptimizer/sxpauth"
	"github.com/sxpoptimizer/sxpauth/middleware"
)

// Options tunes the router.
type Options struct {
	// AdminToken enables the /admin routes when non-empty.
	AdminToken string
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
}

// Handler holds the engine behind every route.
type Handler struct {
	engine *sxpauth.Engine
	logger *slog.Logger
	opts   Options
}

func New(engine *sxpauth.Engine, logger *slog.Logger, opts Options) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine: engine,
		logger: logger,
		opts:   opts,
	}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if h.opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestContext)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", h.engine.Metrics().Handler())

	h.registerAuth(r)
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(h.opts.AdminToken, h.logger))
		h.registerAdmin(r)
	})

	return r
}
