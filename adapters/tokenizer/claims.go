package tokenizer

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/layer-3/zksponsor/core"
)

// IDTokenClaims are the OpenID Connect claims read from a provider id_token
type IDTokenClaims struct {
	jwt.RegisteredClaims
	Nonce         string `json:"nonce,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
}

// Core converts the claims to the domain representation
func (c *IDTokenClaims) Core() *core.IDTokenClaims {
	return &core.IDTokenClaims{
		Subject:  c.Subject,
		Issuer:   c.Issuer,
		Audience: c.Audience,
		Nonce:    c.Nonce,
		Email:    c.Email,
	}
}
