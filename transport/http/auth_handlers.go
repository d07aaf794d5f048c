package http

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/zksponsor/internal/clock"
)

// AuthHandlers contains HTTP handlers for login, session and signing endpoints
type AuthHandlers struct {
	login    LoginFlow
	sessions SessionRegistry
	signer   Signer
	clock    clock.Clock
	logger   *slog.Logger

	secureCookie bool
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(login LoginFlow, sessions SessionRegistry, signer Signer, clk clock.Clock, logger *slog.Logger, secureCookie bool) *AuthHandlers {
	return &AuthHandlers{
		login:        login,
		sessions:     sessions,
		signer:       signer,
		clock:        clk,
		logger:       logger,
		secureCookie: secureCookie,
	}
}

// Start begins a Google login
func (h *AuthHandlers) Start(c *gin.Context) {
	result, err := h.login.Begin(c.Request.Context(), c.Query("state"))
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authorizationUrl": result.AuthorizationURL,
		"state":            result.State,
	})
}

// Callback serves the redirect page that forwards the URL fragment to Complete
func (h *AuthHandlers) Callback(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(callbackPage))
}

// Complete finishes a login and sets the session cookie
func (h *AuthHandlers) Complete(c *gin.Context) {
	var req struct {
		State string `json:"state"`
		Hash  string `json:"hash"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
	}
	if req.State == "" {
		req.State = c.Query("state")
	}
	if req.Hash == "" {
		req.Hash = c.Query("hash")
	}
	if req.State == "" || req.Hash == "" {
		badRequest(c, "state and hash are required")
		return
	}

	result, err := h.login.Complete(c.Request.Context(), req.State, req.Hash)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	maxAge := int(result.ExpiresAt.Sub(h.clock.Now()).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, result.SessionToken, maxAge, "/", "", h.secureCookie, true)

	body := gin.H{
		"address":   result.Address,
		"salt":      result.Salt,
		"publicKey": result.PublicKey,
		"expiresAt": result.ExpiresAt.UnixMilli(),
	}
	if result.Email != nil {
		body["email"] = *result.Email
	}
	c.JSON(http.StatusOK, body)
}

// Session describes the caller's session
func (h *AuthHandlers) Session(c *gin.Context) {
	session, _ := sessionFrom(c)

	body := gin.H{
		"address":   session.Address,
		"expiresAt": session.ExpiresAt.UnixMilli(),
	}
	if session.Email != nil {
		body["email"] = *session.Email
	}
	c.JSON(http.StatusOK, body)
}

// Logout ends the session. It succeeds with or without one.
func (h *AuthHandlers) Logout(c *gin.Context) {
	if token, err := c.Cookie(SessionCookieName); err == nil && token != "" {
		if err := h.sessions.Logout(c.Request.Context(), token); err != nil {
			h.logger.Warn("logout failed", "error", err)
		}
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", h.secureCookie, true)
	c.Status(http.StatusNoContent)
}

// SignTransaction signs transaction bytes with the session's zkLogin identity
func (h *AuthHandlers) SignTransaction(c *gin.Context) {
	var req struct {
		TransactionBlock string `json:"transactionBlock" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	txBytes, err := base64.StdEncoding.DecodeString(req.TransactionBlock)
	if err != nil {
		badRequest(c, "transactionBlock must be base64")
		return
	}

	_, token := sessionFrom(c)
	signature, err := h.signer.SignTransaction(c.Request.Context(), token, txBytes)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"signature": signature})
}

// SignPersonalMessage signs a personal message with the session's zkLogin identity
func (h *AuthHandlers) SignPersonalMessage(c *gin.Context) {
	message, ok := bindMessage(c)
	if !ok {
		return
	}

	_, token := sessionFrom(c)
	signature, err := h.signer.SignPersonalMessage(c.Request.Context(), token, message)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"signature": signature})
}

// SignEphemeral returns the bare ephemeral-key signature of a personal message
func (h *AuthHandlers) SignEphemeral(c *gin.Context) {
	message, ok := bindMessage(c)
	if !ok {
		return
	}

	_, token := sessionFrom(c)
	signature, err := h.signer.SignEphemeralRaw(c.Request.Context(), token, message)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"signature": base64.StdEncoding.EncodeToString(signature)})
}

func bindMessage(c *gin.Context) ([]byte, bool) {
	var req struct {
		Message *string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return nil, false
	}
	message, err := base64.StdEncoding.DecodeString(*req.Message)
	if err != nil {
		badRequest(c, "message must be base64")
		return nil, false
	}
	return message, true
}
