package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ammar1510/clientdesk/internal/apperr"
	"github.com/ammar1510/clientdesk/internal/auth"
	"github.com/ammar1510/clientdesk/internal/models"
)

// Context keys set by AuthMiddleware
const (
	ContextUserID = "userID"
	ContextName   = "name"
	ContextRole   = "role"
)

// AuthMiddleware validates JWT tokens and sets user info in context
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c.Request)
		if token == "" {
			respondMessage(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		identity, err := auth.Authenticate(token)
		if err != nil {
			respondMessage(c, http.StatusUnauthorized, apperr.PublicMessage(err))
			return
		}

		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextName, identity.Name)
		c.Set(ContextRole, identity.Role)

		c.Next()
	}
}

// RequireRole rejects callers whose token does not carry role
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentRole(c) != role {
			respondMessage(c, http.StatusForbidden, "Access denied")
			return
		}
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

func currentName(c *gin.Context) string {
	return c.GetString(ContextName)
}

func currentRole(c *gin.Context) models.Role {
	role, _ := c.Get(ContextRole)
	r, _ := role.(models.Role)
	return r
}

// RequestLogger logs one structured line per request
func RequestLogger(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if userID := currentUserID(c); userID != "" {
			fields = append(fields, zap.String("userId", userID))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			l.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			l.Warn("request", fields...)
		default:
			l.Info("request", fields...)
		}
	}
}
