package api

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/guardian/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/guardian/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/guardian/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/guardian/internal/audit"
	"github.com/saturnino-fabrica-de-software/guardian/internal/ws"
)

type Dependencies struct {
	DB        handler.Pinger
	Emergency handler.EmergencyService
	Tracker   handler.LocationTracker
	Receipts  handler.ReceiptProcessor
	Live      *ws.Hub
	Watch     ws.IncidentChecker
	Audit     audit.Logger

	ReceiptSecret      string
	TrackingBaseURL    string
	APIKeys            []string
	RateLimitPerMinute int
	PipelineTimeout    time.Duration
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Guardian API",
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Guardian-Signature",
	}))

	// Swagger documentation (no auth required)
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	// Prometheus scrape endpoint
	r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Health check endpoints (no auth required)
	var db handler.Pinger
	if r.deps != nil {
		db = r.deps.DB
	}
	healthHandler := handler.NewHealthHandler(db)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	// Only configure API routes if dependencies were provided
	if r.deps == nil {
		return
	}

	r.rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Max:    r.deps.RateLimitPerMinute,
		Window: time.Minute,
	})
	v1 := r.app.Group("/v1", r.rateLimiter.Handler())

	// Operator routes require an API key
	auth := middleware.Auth(r.deps.APIKeys)
	if countKeys(r.deps.APIKeys) == 0 {
		r.logger.Warn("no operator API keys configured, operator routes are open")
	}

	emergencyHandler := handler.NewEmergencyHandler(r.deps.Emergency, r.deps.PipelineTimeout, r.logger).
		WithAudit(r.deps.Audit).
		WithTrackingBaseURL(r.deps.TrackingBaseURL)

	v1.Post("/assessments", auth, emergencyHandler.Assess)

	v1.Post("/emergencies/trigger", auth, emergencyHandler.Trigger)
	v1.Post("/emergencies/:assessment_id/decide", auth, emergencyHandler.Decide)
	v1.Get("/emergencies/:id", auth, emergencyHandler.Get)
	v1.Post("/emergencies/:id/resolve", auth, emergencyHandler.Resolve)
	v1.Post("/emergencies/:id/cancel", auth, emergencyHandler.Cancel)
	v1.Post("/emergencies/:id/false-alarm", auth, emergencyHandler.FalseAlarm)
	v1.Get("/emergencies/:id/deliveries", auth, emergencyHandler.Deliveries)

	v1.Post("/incidents", auth, emergencyHandler.OpenIncident)

	// Device and responder routes; the incident id is the credential
	trackingHandler := handler.NewTrackingHandler(r.deps.Tracker, r.logger)
	v1.Post("/tracking/:incident_id/location", trackingHandler.UpdateLocation)
	v1.Get("/tracking/:incident_id/location", trackingHandler.GetLocation)
	v1.Get("/tracking/:incident_id/history", trackingHandler.History)
	if r.deps.Live != nil && r.deps.Watch != nil {
		v1.Get("/tracking/:incident_id/live", ws.UpgradeMiddleware(r.deps.Watch), ws.Handler(r.deps.Live))
	}

	// Provider callbacks are authenticated by signature
	receiptHandler := handler.NewReceiptHandler(r.deps.ReceiptSecret, r.deps.Receipts, r.logger)
	v1.Post("/notifications/receipts", receiptHandler.Receive)
}

func countKeys(keys []string) int {
	n := 0
	for _, k := range keys {
		if strings.TrimSpace(k) != "" {
			n++
		}
	}
	return n
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
