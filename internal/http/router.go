// Package httpapi wires the HTTP transport (Gin) to the message pipeline,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/kchalkias/go-chat-client/internal/ai"
	"github.com/kchalkias/go-chat-client/internal/chat"
	"github.com/kchalkias/go-chat-client/internal/config"
	"github.com/kchalkias/go-chat-client/internal/domain"
	"github.com/kchalkias/go-chat-client/internal/http/handlers"
	"github.com/kchalkias/go-chat-client/internal/http/middleware"
	"github.com/kchalkias/go-chat-client/internal/repo"
	"github.com/kchalkias/go-chat-client/internal/session"
)

// storeShim adapts the repository free functions to the chat.Store interface
// expected by the persistence service. This keeps the pipeline decoupled from
// the concrete repo package while reusing existing functions.
type storeShim struct{}

// CreateRoom proxies repo.CreateRoom.
func (storeShim) CreateRoom(ctx context.Context, db *gorm.DB, userID, name, model string) (*domain.Room, error) {
	return repo.CreateRoom(ctx, db, userID, name, model)
}

// GetRoom proxies repo.GetRoom.
func (storeShim) GetRoom(ctx context.Context, db *gorm.DB, id int64, userID string) (*domain.Room, error) {
	return repo.GetRoom(ctx, db, id, userID)
}

// ListRooms proxies repo.ListRooms.
func (storeShim) ListRooms(ctx context.Context, db *gorm.DB, userID string) ([]domain.Room, error) {
	return repo.ListRooms(ctx, db, userID)
}

// UpdateRoomMeta proxies repo.UpdateRoomMeta.
func (storeShim) UpdateRoomMeta(ctx context.Context, db *gorm.DB, id int64, userID, name string) error {
	return repo.UpdateRoomMeta(ctx, db, id, userID, name)
}

// DeleteRoom proxies repo.DeleteRoom.
func (storeShim) DeleteRoom(ctx context.Context, db *gorm.DB, id int64, userID string) error {
	return repo.DeleteRoom(ctx, db, id, userID)
}

// InsertTurn proxies repo.InsertTurn.
func (storeShim) InsertTurn(ctx context.Context, db *gorm.DB, roomID int64, userID, userContent, userClientID, assistantContent, assistantClientID string) error {
	return repo.InsertTurn(ctx, db, roomID, userID, userContent, userClientID, assistantContent, assistantClientID)
}

// UpdateMessageContentByClientID proxies repo.UpdateMessageContentByClientID.
func (storeShim) UpdateMessageContentByClientID(ctx context.Context, db *gorm.DB, roomID int64, clientID, content string) error {
	return repo.UpdateMessageContentByClientID(ctx, db, roomID, clientID, content)
}

// UpdateLatestAssistantByContent proxies repo.UpdateLatestAssistantByContent.
func (storeShim) UpdateLatestAssistantByContent(ctx context.Context, db *gorm.DB, roomID int64, oldContent, newContent string) error {
	return repo.UpdateLatestAssistantByContent(ctx, db, roomID, oldContent, newContent)
}

// ListMessages proxies repo.ListMessages.
func (storeShim) ListMessages(db *gorm.DB, roomID int64, limit int) ([]domain.Message, error) {
	return repo.ListMessages(db, roomID, limit)
}

// Deps bundles the externally constructed dependencies of the router.
// The caller owns provider selection and session sourcing; the router owns
// the pipeline assembly on top of them.
type Deps struct {
	DB       *gorm.DB
	AIClient ai.Client
	Sessions session.Provider
	// Navigator, when non-nil, is notified after a first turn lands in a
	// freshly created room.
	Navigator chat.Navigator
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting, CORS
// and security headers, health and metrics endpoints, and then mounts the
// versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter and gzip
//  6. Metrics
//  7. Poll exemption, then rate limiter (per user/IP)
//  8. CORS and Security headers
//
// It returns the state manager shared by the pipeline so callers (tests, the
// main binary) can observe or seed conversation state.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) *chat.StateManager {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB) and response compression
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per user/IP. Conversation polls run at
	// animation frequency and are exempt.
	r.Use(middleware.ExemptPolling(joinBase(cfg.APIBasePath, "/messages")))
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: pipeline ← AI client/provider/db
	states := chat.NewStateManager()
	engine := chat.NewAnimationEngine(states)
	persist := chat.NewPersistence(deps.DB, storeShim{})
	orch := chat.NewOrchestrator(states, engine, deps.AIClient, persist, deps.Sessions, deps.Navigator, ai.DefaultCatalog())
	orch.Retry.MaxRetries = cfg.Retry.MaxRetries
	orch.Retry.BaseDelay = cfg.Retry.BaseDelay
	orch.Retry.ExponentialBackoff = cfg.Retry.Backoff

	h := handlers.New(orch, states, persist, cfg.AI.DefaultModel)
	user := func() (string, bool) {
		s := deps.Sessions.GetSession()
		if s == nil {
			return "", false
		}
		return s.UserID, true
	}

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Conversation
		api.POST("/messages", h.SendMessage)
		api.POST("/messages/:id/regenerate", h.RegenerateMessage)
		api.GET("/messages", h.ListConversation)

		// Rooms
		api.GET("/rooms", h.ListRooms(user))
		api.POST("/rooms/:id/open", h.OpenRoom)
		api.DELETE("/rooms/:id", h.DeleteRoom)
	}

	return states
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
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

// joinBase resolves a route path under the API base prefix.
func joinBase(base, path string) string {
	if base == "" || base == "/" {
		return path
	}
	return base + path
}
