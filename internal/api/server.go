// Package api provides the HTTP API consumed by the SleepWell storefront.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sleepwell/sleepwell-server/internal/cache"
	"github.com/sleepwell/sleepwell-server/internal/config"
	"github.com/sleepwell/sleepwell-server/internal/connectivity"
	"github.com/sleepwell/sleepwell-server/internal/ratelimit"
	"github.com/sleepwell/sleepwell-server/internal/service"
	"github.com/sleepwell/sleepwell-server/internal/sse"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// Services groups the business services used by the API server.
type Services struct {
	Catalog     *service.CatalogService
	Search      *service.SearchService
	Profile     *service.ProfileService
	Measurement *service.MeasurementService
	Chat        *service.ChatService
	Cart        *service.CartService
	Sync        *service.SyncService
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services   *Services
	monitor    *connectivity.Monitor
	cache      *cache.Store
	sseManager *sse.Manager
	sseHandler *sse.Handler
	limiter    *ratelimit.KeyedRateLimiter
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(cfg config.ServerConfig, services *Services, monitor *connectivity.Monitor, store *cache.Store, sseManager *sse.Manager, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		services:   services,
		monitor:    monitor,
		cache:      store,
		sseManager: sseManager,
		router:     router,
		logger:     logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = cfg.RateLimit
		}
		s.limiter = ratelimit.New(float64(cfg.RateLimit), burst)
	}

	s.setupMiddleware(cfg)

	humaConfig := huma.DefaultConfig("SleepWell API", Version)
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	if sseManager != nil {
		s.sseHandler = sse.NewHandler(sseManager, logger)
		if monitor != nil {
			s.sseHandler.SetInitial(func() sse.Event {
				v := monitor.Last()
				return sse.NewConnectivityChangedEvent(v, v)
			})
		}
	}

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases the rate limiter.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

func (s *Server) setupMiddleware(cfg config.ServerConfig) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{syncOutcomeHeader},
		MaxAge:         300,
	}))
	if s.limiter != nil {
		s.router.Use(rateLimitMiddleware(s.limiter, s.logger))
	}
}

func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerConnectivityRoutes()
	s.registerProductRoutes()
	s.registerBrandRoutes()
	s.registerSearchRoutes()
	s.registerMeasurementRoutes()
	s.registerProfileRoutes()
	s.registerChatRoutes()
	s.registerCartRoutes()
	s.registerScoreRoutes()
	s.registerSyncRoutes()

	// SSE is served by chi directly, huma does not stream.
	if s.sseHandler != nil {
		s.router.Get("/api/v1/connectivity/stream", s.sseHandler.ServeHTTP)
	}
}
