// Package http exposes the login, signing and sponsorship endpoints over gin.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/zksponsor/internal/clock"
)

// RouterConfig contains the transport settings
type RouterConfig struct {
	// SecureCookie marks the session cookie Secure; set when served over https
	SecureCookie bool
	CORSOrigin   string
	Clock        clock.Clock
	Logger       *slog.Logger
}

// SetupRouter sets up the Gin router
func SetupRouter(cfg RouterConfig, login LoginFlow, sessions SessionRegistry, signer Signer, sponsor Sponsor) *gin.Engine {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(cfg.Logger), CORS(cfg.CORSOrigin))

	// Create handlers
	auth := NewAuthHandlers(login, sessions, signer, cfg.Clock, cfg.Logger, cfg.SecureCookie)
	sponsorship := NewSponsorHandlers(sponsor, cfg.Logger)
	requireSession := SessionMiddleware(sessions, cfg.Logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "network": sponsor.Network()})
	})

	// Login routes
	google := router.Group("/api/auth/google")
	{
		google.GET("/start", auth.Start)
		google.GET("/callback", auth.Callback)
		google.POST("/complete", auth.Complete)
	}

	router.POST("/api/auth/logout", auth.Logout)

	// Session-protected routes
	api := router.Group("/api/auth")
	api.Use(requireSession)
	{
		api.GET("/session", auth.Session)
		api.POST("/sign", auth.SignTransaction)
		api.POST("/sign-personal-message", auth.SignPersonalMessage)
		api.POST("/sign-ephemeral", auth.SignEphemeral)
	}

	sponsored := router.Group("/v1/transaction-blocks/sponsor")
	sponsored.Use(requireSession)
	{
		sponsored.POST("", sponsorship.Prepare)
		sponsored.POST("/:digest", sponsorship.Execute)
	}

	return router
}
