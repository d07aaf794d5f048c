package ports

import (
	"context"

	"github.com/layer-3/zksponsor/core"
)

// IdentityProvider is the zkLogin identity service (nonce, proof, account)
type IdentityProvider interface {
	IssueNonce(ctx context.Context, ephemeralPublicKey string) (*core.NonceGrant, error)
	IssueProof(ctx context.Context, idToken, randomness string, maxEpoch uint64, ephemeralPublicKey string) (*core.ZkProof, error)
	ResolveAccount(ctx context.Context, idToken string) (*core.ZkLoginAccount, error)
}

// AuthorizationProvider builds the OAuth authorization URL a login starts at
type AuthorizationProvider interface {
	AuthorizationURL(state, nonce string) string
}
