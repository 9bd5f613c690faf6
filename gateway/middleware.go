package gateway

import (
	"strings"
	"time"

	"github.com/example/flowershop/pkg/apperror"
	"github.com/example/flowershop/pkg/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sessionKey = "session"
	tokenKey   = "token"

	msgForbidden = "Bạn không có quyền truy cập"
)

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if s, ok := currentSession(c); ok {
			fields = append(fields, zap.String("user_id", s.UserID))
		}
		logger.Info("HTTP request", fields...)
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// authenticate resolves the bearer token to a session or aborts with 401.
func (g *Gateway) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		session, err := g.users.Authenticate(c.Request.Context(), token)
		if err != nil {
			g.respondError(c, err)
			c.Abort()
			return
		}
		c.Set(sessionKey, session)
		c.Set(tokenKey, token)
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := currentSession(c)
		if !ok || !s.IsAdmin() {
			writeError(c, apperror.Forbidden(msgForbidden))
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentSession(c *gin.Context) (*models.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*models.Session)
	return s, ok
}

// mustSession is only used behind authenticate.
func mustSession(c *gin.Context) *models.Session {
	s, _ := currentSession(c)
	return s
}
