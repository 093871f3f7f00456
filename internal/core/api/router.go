package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/solatis/farekeeper/internal/types"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// NewRouter registers every route on a fresh gin engine.
func NewRouter(s *Service) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), AccessLog(s.logger), Recovery(s.logger), RequestTimeout(s.cfg.Server.RequestTimeout))

	r.GET("/healthz", s.Health)

	apiGroup := r.Group("/api")
	apiGroup.GET("/policies", s.ListPolicies)
	apiGroup.POST("/policies", s.SavePolicies)
	apiGroup.POST("/fare", s.Fare)
	apiGroup.POST("/series", s.Series)
	apiGroup.POST("/compare", s.Compare)

	return r
}

// RequestID propagates X-Request-ID, generating a UUIDv7 when absent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = types.NewRequestID()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestTimeout bounds the request context. Store calls nest their own
// shorter deadline inside it.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AccessLog writes one structured record per request.
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestID(c),
		)
	}
}

// Recovery turns a handler panic into a 500 and logs it.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("handler panic", "panic", recovered, "request_id", requestID(c))
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			Error:     "internal error",
			RequestID: requestID(c),
		})
	})
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
