// Package server contains HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"chattersphere/internal/cache"
	"chattersphere/internal/config"
	"chattersphere/internal/database"
	"chattersphere/internal/featureflags"
	"chattersphere/internal/middleware"
	"chattersphere/internal/models"
	"chattersphere/internal/notifications"
	"chattersphere/internal/observability"
	"chattersphere/internal/repository"
	"chattersphere/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config              *config.Config
	db                  *gorm.DB
	redis               *redis.Client
	app                 *fiber.App
	promMiddleware      *fiberprometheus.FiberPrometheus
	shutdownCtx         context.Context
	shutdownFn          context.CancelFunc
	userRepo            repository.UserRepository
	communityRepo       repository.CommunityRepository
	membershipRepo      repository.MembershipRepository
	postRepo            repository.PostRepository
	notificationRepo    repository.NotificationRepository
	notifier            *notifications.Notifier
	events              notifications.Publisher
	featureFlags        *featureflags.Manager
	communityService    *service.CommunityService
	membershipService   *service.MembershipService
	postService         *service.PostService
	notificationService *service.NotificationService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Initialize Redis
	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	communityRepo := repository.NewCommunityRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	postRepo := repository.NewPostRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Initialize Prometheus metrics
	prom := observability.InitMetrics("chattersphere-api")

	server := &Server{
		config:           cfg,
		db:               db,
		redis:            redisClient,
		promMiddleware:   prom,
		userRepo:         userRepo,
		communityRepo:    communityRepo,
		membershipRepo:   membershipRepo,
		postRepo:         postRepo,
		notificationRepo: notificationRepo,
		featureFlags:     featureflags.NewManager(cfg.FeatureFlags),
	}

	// Initialize notifier if Redis is available; the dispatcher works without
	// it, degrading to persistence-only notifications.
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
	}
	server.events = notifications.NewDispatcher(notificationRepo, server.notifier)

	server.communityService = service.NewCommunityService(communityRepo)
	server.membershipService = service.NewMembershipService(membershipRepo, communityRepo, userRepo, server.events)
	server.postService = service.NewPostService(postRepo, membershipRepo, communityRepo, server.events)
	server.notificationService = service.NewNotificationService(notificationRepo)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Distributed tracing spans per request
	app.Use(middleware.TracingMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	// Backwards-compatible legacy route: map /health to readiness (keeps existing scripts working)
	app.Get("/health", s.ReadinessCheck)
	api.Get("/", s.HealthCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "ChatterSphere Backend Metrics Dashboard",
	}))

	// Public community routes (browse)
	communities := api.Group("/communities")
	communities.Get("/", s.GetCommunities)
	communities.Get("/slug/:slug", s.GetCommunityBySlug)
	communities.Get("/:id/posts", s.GetCommunityPosts)
	communities.Get("/:id/channels", s.GetCommunityChannels)
	communities.Get("/:id", s.GetCommunityByID)

	// Public post routes
	publicPosts := api.Group("/posts")
	publicPosts.Get("/:id/comments", s.GetComments)
	publicPosts.Get("/:id", s.GetPost)

	// Protected routes
	protected := api.Group("", s.AuthRequired())

	// Community routes
	protectedCommunities := protected.Group("/communities")
	protectedCommunities.Post("/", middleware.RateLimit(
		s.redis, 2, 10*time.Minute, "create_community"), s.CreateCommunity)
	protectedCommunities.Post("/:id/membership", middleware.RateLimit(
		s.redis, 20, time.Minute, "membership_toggle"), s.ToggleMembership)
	protectedCommunities.Patch("/:id/membership/:userId", s.ResolveMembershipRequest)
	protectedCommunities.Get("/:id/membership-requests", s.GetMembershipRequests)
	protectedCommunities.Get("/:id/members", s.GetCommunityMembers)
	protectedCommunities.Post("/:id/moderators/:userId", s.PromoteModerator)
	protectedCommunities.Delete("/:id/moderators/:userId", s.DemoteModerator)
	protectedCommunities.Post("/:id/channels", s.CreateCommunityChannel)
	protectedCommunities.Post("/:id/posts", middleware.RateLimit(
		s.redis, 5, 5*time.Minute, "create_post"), s.CreateCommunityPost)

	// Post routes
	posts := protected.Group("/posts")
	posts.Post("/:id/comments", middleware.RateLimit(
		s.redis, 10, time.Minute, "create_comment"), s.CreateComment)

	// User routes
	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Get("/:id/cached", s.GetUserCached)
	users.Post("/:id/promote-admin", s.AdminRequired(), s.PromoteToAdmin)
	users.Post("/:id/demote-admin", s.AdminRequired(), s.DemoteFromAdmin)
	users.Get("/:id", s.GetUserProfile)

	// Notification inbox routes
	notificationsGroup := protected.Group("/notifications")
	notificationsGroup.Get("/", s.GetNotifications)
	notificationsGroup.Get("/unread-count", s.GetUnreadNotificationCount)
	notificationsGroup.Post("/read-all", s.MarkAllNotificationsRead)
	notificationsGroup.Post("/:id/read", s.MarkNotificationRead)

	// Admin routes
	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

// HealthCheck is a legacy/simple alias for ReadinessCheck
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// The API works without Redis (no realtime fanout), so an absent
		// client degrades readiness but does not fail it.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"message": "ChatterSphere",
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)

		admin, err := s.isAdmin(c, userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}

		return c.Next()
	}
}

// AuthRequired returns the authentication middleware. Tokens are issued by the
// external identity provider and verified against the shared signing secret;
// the subject claim carries the provider's account ID, which is mapped (and
// lazily provisioned) to a local user row.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		tokenString := ""
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := s.verifyToken(tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(err.Error()))
		}

		userID, err := s.resolveLocalUser(c.Context(), claims)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}

		// Store user ID in context
		c.Locals("userID", userID)
		// Sync to UserContext for logging and downstream services
		ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// verifyToken parses and validates a provider-issued bearer token.
func (s *Server) verifyToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("Invalid token claims")
	}

	// Bind to the provider when issuer/audience are configured.
	if s.config.JWTIssuer != "" {
		if issuer, issuerOk := claims["iss"].(string); !issuerOk || issuer != s.config.JWTIssuer {
			return nil, errors.New("Invalid token issuer")
		}
	}
	if s.config.JWTAudience != "" {
		if audience, audienceOk := claims["aud"].(string); !audienceOk || audience != s.config.JWTAudience {
			return nil, errors.New("Invalid token audience")
		}
	}

	if sub, ok := claims["sub"].(string); !ok || sub == "" {
		return nil, errors.New("Invalid subject claim")
	}

	return claims, nil
}

// resolveLocalUser maps a provider subject to the local user row, creating the
// projection on first sight.
func (s *Server) resolveLocalUser(ctx context.Context, claims jwt.MapClaims) (uint, error) {
	externalID := claims["sub"].(string)

	user, err := s.userRepo.GetByExternalID(ctx, externalID)
	if err == nil {
		return user.ID, nil
	}
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code != "NOT_FOUND" {
		return 0, err
	}

	username, _ := claims["preferred_username"].(string)
	if username == "" {
		// Derive a stable handle from the subject when the provider does not
		// supply one. Users can rename later through the profile endpoint.
		username = "user-" + strings.NewReplacer("|", "-", ":", "-").Replace(externalID)
		if len(username) > 40 {
			username = username[:40]
		}
	}
	name, _ := claims["name"].(string)
	avatar, _ := claims["picture"].(string)

	fresh := &models.User{
		ExternalID: externalID,
		Username:   username,
		Name:       name,
		Avatar:     avatar,
	}
	if err := s.userRepo.Upsert(ctx, fresh); err != nil {
		return 0, err
	}
	if fresh.ID != 0 {
		return fresh.ID, nil
	}
	// Upsert hit the conflict path; fetch the surviving row.
	user, err = s.userRepo.GetByExternalID(ctx, externalID)
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// optionalViewerID attempts to resolve a viewer from the Authorization header
// but does not enforce it. Anonymous or invalid callers get (0, false); the
// lookup never provisions a user.
func (s *Server) optionalViewerID(c *fiber.Ctx) (uint, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return 0, false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return 0, false
	}

	claims, err := s.verifyToken(parts[1])
	if err != nil {
		return 0, false
	}

	externalID, _ := claims["sub"].(string)
	user, err := s.userRepo.GetByExternalID(c.Context(), externalID)
	if err != nil {
		return 0, false
	}
	return user.ID, true
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName: "ChatterSphere API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Custom error handler
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Shutdown the HTTP server
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
