// Package httpapi wires the Gin transport to the lead qualification
// handlers and the cross-cutting middleware.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. Logger (redacting)
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. CORS, security headers, gzip
//
// Route-specific guards (rate limits, idempotency key validation, webhook
// signature, admin token) are attached per group.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/lead-qualifier/internal/config"
	"github.com/tbourn/lead-qualifier/internal/docs"
	"github.com/tbourn/lead-qualifier/internal/http/handlers"
	"github.com/tbourn/lead-qualifier/internal/http/middleware"
)

const maxBodyBytes = 1 << 20

// Options carries what the router needs besides the handlers.
type Options struct {
	// Registerer receives the HTTP collectors; nil uses the default.
	Registerer prometheus.Registerer
	// Gatherer backs /metrics; nil uses the default.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes attaches middleware and endpoints to r. Routes whose
// collaborators are missing from d are not mounted: the WhatsApp webhook
// needs d.WhatsApp, the lead routes need d.Leads and an admin token, and the
// form proxy needs d.CRM.
func RegisterRoutes(r *gin.Engine, d handlers.Deps, cfg config.Config, o Options) {
	r.HandleMethodNotAllowed = true
	if o.Registerer == nil {
		o.Registerer = prometheus.DefaultRegisterer
	}
	if o.Gatherer == nil {
		o.Gatherer = prometheus.DefaultGatherer
	}

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(middleware.NewRedactor(middleware.RedactOptions{})))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(middleware.NewHTTPMetrics(o.Registerer).Handler())
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeInvalidRequest, "method not allowed")
	})

	h := handlers.New(d)

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(o.Gatherer, promhttp.HandlerOpts{})))

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		webRL := middleware.NewRateLimiter(cfg.WebRate.RPS, cfg.WebRate.Burst, middleware.KeyByIP())
		api.POST("/chat",
			webRL.Handler(),
			middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}),
			h.PostChat,
		)
		api.GET("/chat/history/:sessionId", h.GetHistory)

		if d.Leads != nil && cfg.Security.AdminAPIToken != "" {
			admin := api.Group("/leads", middleware.AdminAuth(cfg.Security.AdminAPIToken))
			admin.GET("", h.ListLeads)
			admin.PATCH("/:id", h.UpdateLead)
		}
		if d.CRM != nil {
			api.POST("/crm/forms", webRL.Handler(), h.SubmitForm)
		}
	}

	if d.WhatsApp != nil {
		r.POST("/webhook/whatsapp", middleware.WebhookSignature(cfg.Security.WebhookSecret), h.WhatsAppWebhook)
	}
}

// corsMiddleware allows any origin when none is configured; the widget is
// embedded on third-party landing pages and sends no credentials.
func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "Retry-After", "ETag", "Idempotency-Replayed"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}

// limitBody caps request bodies; reads past maxBytes fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
