package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ammar1510/clientdesk/internal/database"
	"github.com/ammar1510/clientdesk/internal/messaging"
	"github.com/ammar1510/clientdesk/internal/models"
	"github.com/ammar1510/clientdesk/internal/websocket"
)

// Deps is everything the HTTP surface is built from
type Deps struct {
	DB             database.DBInterface
	Messages       *messaging.Service
	Gateway        *websocket.Gateway
	Notifier       Publisher
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter wires middleware and routes
func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	if d.Logger != nil {
		router.Use(RequestLogger(d.Logger))
	}
	router.Use(gin.Recovery())

	if len(d.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     d.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/health", healthHandler(d.DB))

	authHandler := NewAuthHandler(d.DB)
	router.POST("/api/auth/register", authHandler.Register)
	router.POST("/api/auth/login", authHandler.Login)

	authorized := router.Group("/api")
	authorized.Use(AuthMiddleware())
	authorized.GET("/auth/me", authHandler.GetMe)

	var pusher MessagePusher
	if d.Gateway != nil {
		pusher = d.Gateway
		// the gateway authenticates its own handshake
		router.GET("/api/ws", d.Gateway.HandleWebSocket)
	}
	NewMessageHandler(d.Messages, pusher).Register(authorized.Group("/messages"))

	if d.Notifier != nil {
		notifications := NewNotificationHandler(d.Notifier)
		authorized.POST("/notifications", RequireRole(models.RoleAdmin), notifications.Publish)
	}

	return router
}

func healthHandler(db database.DBInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			log.Warn("Health check failed: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
