package ports

import (
	"context"

	"github.com/layer-3/zksponsor/core"
)

// IDTokenParser reads claims out of a provider id_token without verifying it
type IDTokenParser interface {
	Claims(idToken string) (*core.IDTokenClaims, error)
}

// IDTokenVerifier checks an id_token's signature, issuer and audience
type IDTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*core.IDTokenClaims, error)
}
