package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/layer-3/zksponsor/core"
)

const (
	SessionCookieName = "zkSession"

	ctxSession      = "session"
	ctxSessionToken = "sessionToken"
)

// SessionMiddleware resolves the session cookie and rejects requests
// without a live session
func SessionMiddleware(sessions SessionRegistry, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookieName)
		if err != nil || token == "" {
			abortWithError(c, logger, core.ErrUnauthenticated)
			return
		}

		session, err := sessions.Get(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, logger, err)
			return
		}

		c.Set(ctxSession, session)
		c.Set(ctxSessionToken, token)

		c.Next()
	}
}

func sessionFrom(c *gin.Context) (*core.Session, string) {
	session, _ := c.MustGet(ctxSession).(*core.Session)
	return session, c.GetString(ctxSessionToken)
}

// RequestLogger logs one line per request
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request", attrs...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", attrs...)
		default:
			logger.Info("request", attrs...)
		}
	}
}

// CORS allows credentialed requests from a single browser origin.
// Preflight requests are answered here and never reach the routes.
func CORS(allowedOrigin string) gin.HandlerFunc {
	if allowedOrigin == "" {
		return func(c *gin.Context) { c.Next() }
	}

	policy := cors.New(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})

	return func(c *gin.Context) {
		policy.HandlerFunc(c.Writer, c.Request)
		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
