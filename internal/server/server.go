package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"b2b-analyst/internal/config"
	"b2b-analyst/internal/handlers"
	"b2b-analyst/internal/middleware"
	"b2b-analyst/internal/observability"
	"b2b-analyst/internal/services"
	"b2b-analyst/internal/ui/templates"
)

const renderTimeout = 10 * time.Second

type Server struct {
	router      chi.Router
	analytics   *services.Analytics
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type Options struct {
	Config    *config.Config
	Analytics *services.Analytics
	Agent     handlers.Chatter
	Metrics   *observability.Metrics
	Version   string
	Logger    *slog.Logger
}

func NewServer(opts Options) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		analytics:   opts.Analytics,
		logger:      opts.Logger,
		apiHandlers: handlers.NewAPIHandlers(opts.Analytics, opts.Agent, opts.Version, opts.Logger),
		sseHandlers: handlers.NewSSEHandlers(opts.Analytics, opts.Agent, opts.Logger),
	}

	rateLimiter := middleware.NewRateLimiter(opts.Config.Security)
	s.router.Use(
		middleware.Recovery(opts.Logger),
		middleware.RequestID(),
		middleware.Logger(opts.Logger),
		middleware.Tracing(),
		middleware.Metrics(opts.Metrics),
		middleware.SecurityHeaders(),
		middleware.CORS(opts.Config.Security),
		middleware.TrustedProxy(opts.Config.Security),
		middleware.RateLimit(rateLimiter, opts.Logger),
	)
	s.setupRoutes(opts.Metrics)
	return s
}

func (s *Server) setupRoutes(metrics *observability.Metrics) {
	s.router.Get("/", s.handleIndex)
	s.router.Get("/health", s.apiHandlers.HandleHealth)
	s.router.Get("/admin/stats", s.apiHandlers.HandleStats)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.apiHandlers.HandleChat)
		r.Post("/reset", s.apiHandlers.HandleReset)
		r.Get("/summary", s.apiHandlers.HandleSummary)

		r.Get("/search/products", s.apiHandlers.HandleSearchProducts)
		r.Get("/search/customers", s.apiHandlers.HandleSearchCustomers)

		r.Get("/analytics/product/{code}", s.apiHandlers.HandleProductAnalysis)
		r.Get("/analytics/trends", s.apiHandlers.HandleTrends)
		r.Get("/analytics/marketing", s.apiHandlers.HandleMarketing)
	})

	// Datastar SSE endpoints
	s.router.Post("/sse/chat", s.sseHandlers.HandleChat)
	s.router.Get("/sse/summary", s.sseHandlers.HandleSummary)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Index(s.analytics.SalesSummary()).Render(ctx, w); err != nil {
		s.logger.Error("render index", "error", err)
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
