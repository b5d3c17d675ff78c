package routes

import (
	"net/http"

	"github.com/storepulse/analytics-backend/internal/api/handlers"
	"github.com/storepulse/analytics-backend/internal/api/middleware"
	"github.com/storepulse/analytics-backend/internal/infrastructure/observability"
)

// Router holds all route handlers

type Router struct {
	mux *http.ServeMux

	trackHandler *handlers.TrackHandler

	liveHandler *handlers.LiveHandler

	streamHandler *handlers.StreamHandler

	dashboardToken string
	metrics        *observability.Metrics
}

// NewRouter creates a new router

func NewRouter(
	trackHandler *handlers.TrackHandler,
	liveHandler *handlers.LiveHandler,
	streamHandler *handlers.StreamHandler,
	dashboardToken string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux: http.NewServeMux(),

		trackHandler: trackHandler,

		liveHandler: liveHandler,

		streamHandler: streamHandler,

		dashboardToken: dashboardToken,
		metrics:        metrics,
	}
}

// SetupRoutes configures all application routes

func (r *Router) SetupRoutes() http.Handler {

	// Health check endpoint

	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {

		w.WriteHeader(http.StatusOK)

		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}

	})

	// Ingest endpoint, open to the storefront pixel

	r.mux.HandleFunc("POST /api/track", r.trackHandler.Track)

	// Dashboard endpoints sit behind the bearer token

	auth := middleware.BearerAuthMiddleware(r.dashboardToken)

	r.mux.Handle("GET /api/live/stats", auth(http.HandlerFunc(r.liveHandler.GetStats)))

	r.mux.Handle("GET /api/live/visitors", auth(http.HandlerFunc(r.liveHandler.GetVisitors)))

	r.mux.Handle("GET /api/live/events", auth(http.HandlerFunc(r.liveHandler.GetEvents)))

	r.mux.Handle("GET /api/live/stream", auth(http.HandlerFunc(r.streamHandler.Stream)))

	r.mux.Handle("POST /api/live/increment", auth(http.HandlerFunc(r.liveHandler.Increment)))

	// Apply middleware in reverse order (last middleware wraps first)
	// CORS must be outermost so error responses also get CORS headers.

	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	handler = middleware.CORSMiddleware(handler)

	return handler
}
