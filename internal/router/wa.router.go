package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	hrest "whatsapp-service/internal/handler/http"
	wshandler "whatsapp-service/internal/handler/ws"
	"whatsapp-service/pkg/middleware"
	"whatsapp-service/pkg/response"
)

type Options struct {
	AllowedOrigins  []string
	RateLimit       int
	RateLimitWindow time.Duration
}

// SetupRoutes configures the HTTP routes for the whatsapp service. rdb may
// be nil, which disables rate limiting.
func SetupRoutes(
	r chi.Router,
	h *hrest.MessagingHandler,
	wsHandler *wshandler.StatusHandler,
	auth *middleware.Verifier,
	rdb redis.UniversalClient,
	opts Options,
	logger *zap.Logger,
) chi.Router {
	// ---- Global Middleware ----
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
		},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"service": "whatsapp"})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Require)
		if rdb != nil && opts.RateLimit > 0 {
			r.Use(middleware.RateLimiter(rdb, opts.RateLimit, opts.RateLimitWindow, 10*time.Minute, "wa", logger))
		}

		r.Route("/api/messages", func(r chi.Router) {
			r.Get("/status", h.Status)
			r.Post("/pairing", h.RequestPairingCode)
			r.Post("/qr", h.RequestQR)
			r.Post("/reset", h.Reset)

			r.Post("/send", h.Send)
			r.Post("/bulk", h.BulkSend)
			r.Get("/recent", h.Recent)
			r.Get("/web-link", h.WebLink)

			// WebSocket endpoint
			r.Get("/ws", wsHandler.HandleStatus)
		})

		r.Route("/api/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Post("/", h.CreateTemplate)
			r.Delete("/{id}", h.DeleteTemplate)
		})
	})
	return r
}
