package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"toolcatalog/internal/cache"
	"toolcatalog/internal/config"
	custommiddleware "toolcatalog/internal/middleware"
	"toolcatalog/internal/repository"
	"toolcatalog/internal/service"
	"toolcatalog/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *sql.DB
	redis  *redis.Client
}

// NewServer wires repositories, services and handlers. redisClient may be nil, in which
// case category counts are not cached and writes are not rate limited.
func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB, redisClient *redis.Client, images service.ImageStore) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	for _, mw := range custommiddleware.DefaultMiddlewareStack(logger) {
		router.Use(mw)
	}
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logger.Warn("Health check failed", zap.Error(err))
			custommiddleware.RespondWithError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		custommiddleware.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Initialize repositories
	productRepo := repository.NewProductRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	transactor := repository.NewTransactor(db)

	// Initialize services
	var countCache service.CategoryCountCache
	if redisClient != nil {
		countCache = cache.NewCategoryCountCache(redisClient, cfg.Catalog.CategoryCacheTTL)
	}
	categoryResolver := service.NewCategoryResolver(categoryRepo, countCache, logger)
	productService := service.NewProductService(productRepo, transactor, categoryResolver, images, cfg.Storage.UploadTimeout, logger)

	// Initialize handlers
	productHandler := transport.NewProductHandler(productService, categoryResolver, logger)

	// Mutating routes: authenticate, rate limit per user, then require admin
	protected := []func(http.Handler) http.Handler{custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)}
	if redisClient != nil {
		protected = append(protected, custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "rate_limit:catalog_write",
		}, logger))
	}
	protected = append(protected, custommiddleware.RequireAdmin(logger))

	// Register routes
	productHandler.RegisterRoutes(router, protected...)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: cfg.Storage.UploadTimeout + 30*time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
