package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wvdi-ph/drivebot/internal/conversation"
	httpmiddleware "github.com/wvdi-ph/drivebot/internal/http/middleware"
	"github.com/wvdi-ph/drivebot/internal/leads"
	"github.com/wvdi-ph/drivebot/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	LeadsHandler        *leads.Handler
	MetricsHandler      http.Handler
}

// New creates the Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(httpmiddleware.CORS)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", cfg.ConversationHandler.Health)
		api.Post("/chat", cfg.ConversationHandler.Chat)
		api.Post("/leads", cfg.LeadsHandler.Submit)
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
