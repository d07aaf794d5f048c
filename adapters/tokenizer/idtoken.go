// Package tokenizer reads OpenID Connect id_tokens.
package tokenizer

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/layer-3/zksponsor/core"
	"github.com/layer-3/zksponsor/ports"
)

// IDTokenParser decodes id_token claims without checking the signature.
// The identity provider validates the token when it issues a proof, so
// reading claims locally only needs a well-formed JWT.
type IDTokenParser struct {
	parser *jwt.Parser
}

// NewIDTokenParser creates a new id_token parser
func NewIDTokenParser() *IDTokenParser {
	return &IDTokenParser{parser: jwt.NewParser()}
}

// Claims extracts the claims from an id_token
func (p *IDTokenParser) Claims(idToken string) (*core.IDTokenClaims, error) {
	if idToken == "" {
		return nil, fmt.Errorf("id_token is empty: %w", core.ErrInvalidInput)
	}

	claims := &IDTokenClaims{}
	if _, _, err := p.parser.ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("failed to parse id_token: %v: %w", err, core.ErrInvalidInput)
	}

	return claims.Core(), nil
}

var _ ports.IDTokenParser = (*IDTokenParser)(nil)
