package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/sharescan/internal/logger"
	"github.com/marmos91/sharescan/pkg/api/auth"
	"github.com/marmos91/sharescan/pkg/api/handlers"
	apiMiddleware "github.com/marmos91/sharescan/pkg/api/middleware"
)

// NewRouter creates the chi router serving the health probe and the
// /api/v1 routes. When jwtService is nil, /api/v1 is unauthenticated.
//
// Routes:
//   - GET    /health
//   - GET    /api/v1/scan
//   - POST   /api/v1/scan
//   - GET    /api/v1/shares
//   - DELETE /api/v1/shares
//   - GET    /api/v1/shares/export.csv
//   - POST   /api/v1/export
func NewRouter(rt handlers.Runtime, jwtService *auth.JWTService, version string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(version)
	scanHandler := handlers.NewScanHandler(rt)
	sharesHandler := handlers.NewSharesHandler(rt)

	r.Get("/health", healthHandler.Liveness)

	r.Route("/api/v1", func(r chi.Router) {
		if jwtService != nil {
			r.Use(apiMiddleware.JWTAuth(jwtService))
		}

		r.Route("/scan", func(r chi.Router) {
			r.Get("/", scanHandler.Status)
			r.Post("/", scanHandler.Start)
		})

		r.Route("/shares", func(r chi.Router) {
			r.Get("/", sharesHandler.List)
			r.Delete("/", sharesHandler.Clear)
			r.Get("/export.csv", sharesHandler.CSV)
		})

		r.Post("/export", sharesHandler.Export)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger logs each request using the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
