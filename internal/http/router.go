// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, idempotency, and rate limiting.
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

	"github.com/linkify/go-social-backend/internal/auth"
	"github.com/linkify/go-social-backend/internal/config"
	"github.com/linkify/go-social-backend/internal/domain"
	"github.com/linkify/go-social-backend/internal/http/handlers"
	"github.com/linkify/go-social-backend/internal/http/middleware"
	"github.com/linkify/go-social-backend/internal/repo"
	"github.com/linkify/go-social-backend/internal/services"
)

// conversationRepoShim adapts the repository free functions to the
// services.ConversationRepo interface expected by the ChatService. This
// keeps services decoupled from the concrete repo package while reusing
// existing functions.
type conversationRepoShim struct{}

// FindDirect proxies repo.FindDirectChat.
func (conversationRepoShim) FindDirect(ctx context.Context, db *gorm.DB, userA, userB string) (*domain.Chat, error) {
	return repo.FindDirectChat(ctx, db, userA, userB)
}

// CreateDirect proxies repo.CreateDirectChat.
func (conversationRepoShim) CreateDirect(ctx context.Context, db *gorm.DB, userA, userB string) (*domain.Chat, error) {
	return repo.CreateDirectChat(ctx, db, userA, userB)
}

// CreateGroup proxies repo.CreateGroupChat.
func (conversationRepoShim) CreateGroup(ctx context.Context, db *gorm.DB, creatorID string, memberIDs []string, name string) (*domain.Chat, error) {
	return repo.CreateGroupChat(ctx, db, creatorID, memberIDs, name)
}

// ListForUser proxies repo.ListChatsForUser.
func (conversationRepoShim) ListForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Chat, error) {
	return repo.ListChatsForUser(ctx, db, userID)
}

// Participants proxies repo.ListParticipants.
func (conversationRepoShim) Participants(ctx context.Context, db *gorm.DB, chatID string) ([]domain.UserRef, error) {
	return repo.ListParticipants(ctx, db, chatID)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Structured access logging (sensitive headers masked)
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, tokens *auth.TokenManager, mailer services.Notifier, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logging
	r.Use(middleware.Logger(middleware.LogOptions{
		MaskHeaders: []string{
			middleware.HeaderIdempotencyKey,
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// Response compression. Prometheus scrapes prefer their own encoding.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, chatID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, chatID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
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
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
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

	// Dependency injection: services ← repo/db/collaborators
	accountSvc := services.NewAccountService(db, tokens, mailer)
	accountSvc.ResetTTL = cfg.Auth.ResetTTL
	socialSvc := services.NewSocialService(db)
	chatSvc := services.NewChatService(db, conversationRepoShim{})
	msgSvc := &services.MessageService{
		DB:              db,
		MaxContentRunes: cfg.MaxContentRunes,
	}
	h := handlers.New(accountSvc, socialSvc, chatSvc, msgSvc)

	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)

	// Public endpoints: account creation, login, password reset.
	api.POST("/users/register", h.Register)
	api.POST("/users/login", h.Login)
	api.POST("/users/request-password-reset", h.RequestPasswordReset)
	api.POST("/users/reset-password", h.ResetPassword)

	// Everything else requires a valid bearer token.
	authed := api.Group("")
	authed.Use(middleware.RequireAuth(tokens.Verify))
	{
		// Accounts
		authed.GET("/users/me", h.Me)

		// Follow graph
		authed.POST("/users/:id/follow", h.Follow)
		authed.POST("/users/:id/unfollow", h.Unfollow)
		authed.POST("/users/:id/accept-request", h.AcceptRequest)
		authed.POST("/users/:id/reject-request", h.RejectRequest)
		authed.GET("/users/:id/followers", h.ListFollowers)
		authed.GET("/users/:id/following", h.ListFollowing)

		// Chats
		authed.GET("/chats", h.ListChats)
		authed.POST("/chats/direct", h.CreateDirectChat)
		authed.POST("/chats/group", h.CreateGroupChat)

		// Messages
		authed.GET("/chats/:id/messages", h.ListMessages)
		authed.POST("/chats/:id/messages", h.PostMessage)
	}
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
