package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/ammar1510/clientdesk/internal/api"
	"github.com/ammar1510/clientdesk/internal/auth"
	"github.com/ammar1510/clientdesk/internal/config"
	"github.com/ammar1510/clientdesk/internal/database"
	"github.com/ammar1510/clientdesk/internal/logger"
	"github.com/ammar1510/clientdesk/internal/messaging"
	"github.com/ammar1510/clientdesk/internal/notify"
	"github.com/ammar1510/clientdesk/internal/presence"
	"github.com/ammar1510/clientdesk/internal/ratelimit"
	"github.com/ammar1510/clientdesk/internal/websocket"
)

var log = logger.New("server")

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}
	logger.Configure(cfg.Env)
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	auth.InitJWTKey([]byte(cfg.JWTSecret))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := database.NewDatabase(ctx, cfg.DBType, cfg.DatabaseOptions())
	cancel()
	if err != nil {
		log.Error("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("Connected to %s database successfully", cfg.DBType)

	messages := messaging.NewService(db)
	registry := presence.NewRegistry()

	limiter, closeLimiter := newLimiter(cfg)
	defer closeLimiter()

	gateway := websocket.NewGateway(messages, registry, websocket.Options{
		Limiter:        limiter,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	router := api.NewRouter(api.Deps{
		DB:             db,
		Messages:       messages,
		Gateway:        gateway,
		Notifier:       notify.NewBridge(registry),
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger.Named("http"),
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("Server starting on port %s (%s)", cfg.Port, cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start server: %v", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gateway.Close(ctx); err != nil {
		log.Warn("Websocket connections still open at shutdown: %v", err)
	}
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited properly")
}

// newLimiter picks the socket rate limiter: shared through Redis when one is
// configured and reachable, process-local otherwise. A zero limit disables it.
func newLimiter(cfg *config.Config) (ratelimit.Limiter, func()) {
	if cfg.SocketRateLimit == 0 {
		log.Warn("Socket rate limiting disabled")
		return nil, func() {}
	}

	limits := ratelimit.DefaultSocketConfig()
	limits.MaxRequests = cfg.SocketRateLimit

	if cfg.RedisAddr == "" {
		return ratelimit.NewMemoryLimiter(limits), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("Redis at %s unreachable, using in-process rate limiting: %v", cfg.RedisAddr, err)
		rdb.Close()
		return ratelimit.NewMemoryLimiter(limits), func() {}
	}

	log.Info("Using Redis rate limiting at %s", cfg.RedisAddr)
	return ratelimit.NewRedisLimiter(rdb, limits), func() { rdb.Close() }
}
