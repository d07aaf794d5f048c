package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/layer-3/zksponsor/core"
	"github.com/layer-3/zksponsor/internal/clock"
	"github.com/layer-3/zksponsor/internal/sui"
	"github.com/layer-3/zksponsor/ports"
)

const (
	DefaultPendingTTL = 5 * time.Minute
	DefaultSessionTTL = 6 * time.Hour

	maxStateLength = 256
)

// BeginResult is returned when a login starts
type BeginResult struct {
	AuthorizationURL string
	State            string
}

// CompleteResult describes the session created by a finished login
type CompleteResult struct {
	SessionToken string
	ExpiresAt    time.Time
	Address      string
	Salt         string
	PublicKey    string
	Email        *string
}

// LoginService drives the zkLogin OAuth round trip
type LoginService struct {
	identity ports.IdentityProvider
	authz    ports.AuthorizationProvider
	parser   ports.IDTokenParser
	verifier ports.IDTokenVerifier
	pending  *PendingLogins
	sessions *Sessions
	eventPub ports.EventPublisher
	clock    clock.Clock
	logger   *slog.Logger

	pendingTTL time.Duration
	sessionTTL time.Duration
}

// LoginOption customizes a LoginService
type LoginOption func(*LoginService)

// WithIDTokenVerifier makes Complete verify the id_token and its nonce
// before exchanging it
func WithIDTokenVerifier(verifier ports.IDTokenVerifier) LoginOption {
	return func(s *LoginService) { s.verifier = verifier }
}

// WithSessionTTL overrides DefaultSessionTTL
func WithSessionTTL(ttl time.Duration) LoginOption {
	return func(s *LoginService) { s.sessionTTL = ttl }
}

// WithPendingTTL overrides the fallback pending-login lifetime used when the
// identity provider gives no expiry estimate
func WithPendingTTL(ttl time.Duration) LoginOption {
	return func(s *LoginService) { s.pendingTTL = ttl }
}

// NewLoginService creates a new login service
func NewLoginService(
	identity ports.IdentityProvider,
	authz ports.AuthorizationProvider,
	parser ports.IDTokenParser,
	pending *PendingLogins,
	sessions *Sessions,
	eventPub ports.EventPublisher,
	clk clock.Clock,
	logger *slog.Logger,
	opts ...LoginOption,
) *LoginService {
	s := &LoginService{
		identity:   identity,
		authz:      authz,
		parser:     parser,
		pending:    pending,
		sessions:   sessions,
		eventPub:   eventPub,
		clock:      clk,
		logger:     logger,
		pendingTTL: DefaultPendingTTL,
		sessionTTL: DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin creates ephemeral key material, obtains a nonce for it and returns
// the provider URL the user must visit. An empty state gets a generated one.
func (s *LoginService) Begin(ctx context.Context, state string) (*BeginResult, error) {
	if len(state) > maxStateLength {
		return nil, fmt.Errorf("state longer than %d characters: %w", maxStateLength, core.ErrInvalidInput)
	}
	if state == "" {
		state = uuid.New().String()
	}

	ephemeral, err := sui.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}

	grant, err := s.identity.IssueNonce(ctx, ephemeral.SuiPublicKey())
	if err != nil {
		return nil, fmt.Errorf("failed to issue nonce: %w", err)
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.pendingTTL)
	if !grant.EstimatedExpiration.IsZero() && grant.EstimatedExpiration.After(now) {
		expiresAt = grant.EstimatedExpiration
	}

	err = s.pending.Put(ctx, state, core.PendingLogin{
		Nonce:        grant.Nonce,
		Randomness:   grant.Randomness,
		MaxEpoch:     grant.MaxEpoch,
		EphemeralKey: core.Secret(ephemeral.Seed()),
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("login started", "state", state, "max_epoch", grant.MaxEpoch, "expires_at", expiresAt)

	return &BeginResult{
		AuthorizationURL: s.authz.AuthorizationURL(state, grant.Nonce),
		State:            state,
	}, nil
}

// Complete consumes the pending login for state, exchanges the id_token in
// the redirect fragment for a proof and opens a session
func (s *LoginService) Complete(ctx context.Context, state, fragment string) (*CompleteResult, error) {
	if state == "" {
		return nil, fmt.Errorf("state is required: %w", core.ErrInvalidInput)
	}

	pending, err := s.pending.Take(ctx, state)
	if err != nil {
		return nil, err
	}

	params, err := parseFragment(fragment)
	if err != nil {
		return nil, err
	}
	if reason := params.Get("error"); reason != "" {
		return nil, fmt.Errorf("authorization denied: %s: %w", reason, core.ErrUnauthenticated)
	}

	idToken := params.Get("id_token")
	if idToken == "" {
		return nil, fmt.Errorf("redirect carries no id_token: %w", core.ErrInvalidInput)
	}
	if echoed := params.Get("state"); echoed != "" && echoed != state {
		return nil, core.ErrStateMismatch
	}

	if s.verifier != nil {
		claims, err := s.verifier.Verify(ctx, idToken)
		if err != nil {
			return nil, err
		}
		if claims.Nonce != pending.Nonce {
			return nil, fmt.Errorf("id_token nonce does not match login: %w", core.ErrUnauthenticated)
		}
	}

	ephemeral, err := sui.KeypairFromSeed(pending.EphemeralKey)
	if err != nil {
		return nil, fmt.Errorf("pending login key: %v: %w", err, core.ErrSessionCorrupt)
	}

	account, err := s.identity.ResolveAccount(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account: %w", err)
	}
	address, err := sui.NormalizeAddress(account.Address)
	if err != nil {
		return nil, fmt.Errorf("identity provider returned address %q: %w", account.Address, core.ErrUpstream)
	}

	proof, err := s.identity.IssueProof(ctx, idToken, pending.Randomness, pending.MaxEpoch, ephemeral.SuiPublicKey())
	if err != nil {
		return nil, fmt.Errorf("failed to issue proof: %w", err)
	}

	email := s.email(idToken)
	token, expiresAt, err := s.sessions.Create(ctx, core.Session{
		Address:      address,
		JWT:          idToken,
		Randomness:   pending.Randomness,
		MaxEpoch:     pending.MaxEpoch,
		EphemeralKey: pending.EphemeralKey,
		Proof:        proof,
		Email:        email,
	}, s.sessionTTL)
	if err != nil {
		return nil, err
	}

	if err := s.eventPub.PublishSessionCreated(ctx, address); err != nil {
		s.logger.Warn("failed to publish session created event", "address", address, "error", err)
	}
	s.logger.Info("login completed", "address", address)

	return &CompleteResult{
		SessionToken: token,
		ExpiresAt:    expiresAt,
		Address:      address,
		Salt:         account.Salt,
		PublicKey:    account.PublicKey,
		Email:        email,
	}, nil
}

// email reads the email claim; a token without one yields nil
func (s *LoginService) email(idToken string) *string {
	claims, err := s.parser.Claims(idToken)
	if err != nil || claims.Email == "" {
		return nil
	}
	return &claims.Email
}

// parseFragment reads query-string syntax from a redirect fragment or query
func parseFragment(fragment string) (url.Values, error) {
	fragment = strings.TrimSpace(fragment)
	fragment = strings.TrimPrefix(fragment, "#")
	fragment = strings.TrimPrefix(fragment, "?")

	params, err := url.ParseQuery(fragment)
	if err != nil {
		return nil, fmt.Errorf("malformed redirect fragment: %v: %w", err, core.ErrInvalidInput)
	}
	return params, nil
}
