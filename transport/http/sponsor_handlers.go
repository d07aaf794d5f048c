package http

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/zksponsor/core"
	"github.com/layer-3/zksponsor/internal/sui"
	"github.com/layer-3/zksponsor/service"
)

// SponsorHandlers contains HTTP handlers for transaction sponsorship
type SponsorHandlers struct {
	sponsor Sponsor
	logger  *slog.Logger
}

// NewSponsorHandlers creates new sponsor handlers
func NewSponsorHandlers(sponsor Sponsor, logger *slog.Logger) *SponsorHandlers {
	return &SponsorHandlers{sponsor: sponsor, logger: logger}
}

// Prepare attaches sponsor gas to a transaction kind owned by the caller
func (h *SponsorHandlers) Prepare(c *gin.Context) {
	var req struct {
		Network                   string `json:"network"`
		Sender                    string `json:"sender" binding:"required"`
		Claimer                   string `json:"claimer" binding:"required"`
		TransactionBlockKindBytes string `json:"transactionBlockKindBytes" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	kind, err := base64.StdEncoding.DecodeString(req.TransactionBlockKindBytes)
	if err != nil {
		badRequest(c, "transactionBlockKindBytes must be base64")
		return
	}

	session, _ := sessionFrom(c)
	if err := requireOwner(session, req.Claimer); err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	prepared, err := h.sponsor.Prepare(c.Request.Context(), service.PrepareRequest{
		Network:   req.Network,
		KindBytes: kind,
		Claimer:   req.Claimer,
		Sender:    req.Sender,
	})
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"digest":    prepared.Digest,
		"bytes":     base64.StdEncoding.EncodeToString(prepared.Bytes),
		"sponsor":   prepared.SponsorAddress,
		"expiresAt": prepared.ExpiresAt.UnixMilli(),
	}})
}

// Execute submits a prepared transaction with the caller's signature
func (h *SponsorHandlers) Execute(c *gin.Context) {
	var req struct {
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	session, _ := sessionFrom(c)
	result, err := h.sponsor.Execute(c.Request.Context(), c.Param("digest"), session.Address, req.Signature)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"digest": result.Digest}})
}

// requireOwner checks that address is the session's own address
func requireOwner(session *core.Session, address string) error {
	normalized, err := sui.NormalizeAddress(address)
	if err != nil {
		return err
	}
	if normalized != session.Address {
		return fmt.Errorf("claimer %s is not the session address: %w", normalized, core.ErrForbidden)
	}
	return nil
}
