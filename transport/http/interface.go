package http

import (
	"context"

	"github.com/layer-3/zksponsor/core"
	"github.com/layer-3/zksponsor/service"
)

// LoginFlow starts and finishes zkLogin OAuth round trips
type LoginFlow interface {
	Begin(ctx context.Context, state string) (*service.BeginResult, error)
	Complete(ctx context.Context, state, fragment string) (*service.CompleteResult, error)
}

// SessionRegistry resolves and ends cookie sessions
type SessionRegistry interface {
	Get(ctx context.Context, token string) (*core.Session, error)
	Logout(ctx context.Context, token string) error
}

// Signer signs on behalf of a session
type Signer interface {
	SignTransaction(ctx context.Context, token string, txBytes []byte) (string, error)
	SignPersonalMessage(ctx context.Context, token string, message []byte) (string, error)
	SignEphemeralRaw(ctx context.Context, token string, message []byte) ([]byte, error)
}

// Sponsor prepares and executes gas-sponsored transactions
type Sponsor interface {
	Network() string
	Prepare(ctx context.Context, req service.PrepareRequest) (*service.Prepared, error)
	Execute(ctx context.Context, digest, claimer, signature string) (*core.ExecutionResult, error)
}

var (
	_ LoginFlow       = (*service.LoginService)(nil)
	_ SessionRegistry = (*service.Sessions)(nil)
	_ Signer          = (*service.SignatureService)(nil)
	_ Sponsor         = (*service.SponsorService)(nil)
)
