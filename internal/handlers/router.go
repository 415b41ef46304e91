package handlers

import (
	"net/http"
	"time"

	"brain2-canvas/internal/middleware"
	"brain2-canvas/internal/observability"
	apperrors "brain2-canvas/pkg/errors"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RouterConfig carries the settings the router needs.
type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	Auth           middleware.AuthConfig
}

// Router creates and configures the HTTP router
type Router struct {
	config       RouterConfig
	canvas       *CanvasHandler
	stream       *StreamHandler
	health       *HealthHandler
	metrics      *observability.Collector
	tracer       trace.Tracer
	logger       *zap.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewRouter creates a new router instance
func NewRouter(
	config RouterConfig,
	canvas *CanvasHandler,
	stream *StreamHandler,
	health *HealthHandler,
	metrics *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
	errorHandler *apperrors.ErrorHandler,
) *Router {
	if tracer == nil {
		tracer = observability.NoopTracer()
	}
	return &Router{
		config:       config,
		canvas:       canvas,
		stream:       stream,
		health:       health,
		metrics:      metrics,
		tracer:       tracer,
		logger:       logger,
		errorHandler: errorHandler,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Recovery(rt.logger))
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Tracing(rt.tracer))
	router.Use(middleware.Metrics(rt.metrics))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader, middleware.DevUserHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	router.Get("/health", rt.health.Check)
	router.Get("/ready", rt.health.Ready)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.config.Auth, rt.errorHandler, rt.logger))

		// Push channel. Long-lived, so no request timeout.
		r.Route("/stream", func(r chi.Router) {
			r.Get("/ws", rt.stream.WebSocket)
			r.Get("/sse", rt.stream.SSE)
			r.Get("/connections", rt.stream.Connections)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.CircuitBreaker(middleware.DefaultCircuitBreakerConfig("canvas-api"), rt.logger))
			if rt.config.RequestTimeout > 0 {
				r.Use(middleware.Timeout(rt.config.RequestTimeout, rt.logger))
			}

			r.Get("/canvas", rt.canvas.Snapshot)
			r.Get("/stats", rt.canvas.Stats)

			r.Route("/dots", func(r chi.Router) {
				r.Get("/", rt.canvas.ListDots)
				r.Put("/{dotID}/wheel", rt.canvas.MapDotToWheel)
				r.Put("/{dotID}/chakra", rt.canvas.MapDotToChakra)
			})

			r.Route("/wheels", func(r chi.Router) {
				r.Get("/", rt.canvas.ListWheels)
				r.Put("/{wheelID}/chakra", rt.canvas.MapWheelToChakra)
			})

			r.Get("/chakras", rt.canvas.ListChakras)

			r.Route("/positions", func(r chi.Router) {
				r.Post("/batch", rt.canvas.BatchSavePosition)
				r.Put("/{kind}/{id}", rt.canvas.SavePosition)
			})
		})
	})

	return router
}
