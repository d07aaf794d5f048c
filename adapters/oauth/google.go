// Package oauth builds the Google OpenID Connect implicit-flow URL and
// optionally verifies the id_tokens Google returns.
package oauth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/layer-3/zksponsor/core"
	"github.com/layer-3/zksponsor/ports"
)

const (
	GoogleIssuer  = "https://accounts.google.com"
	GoogleAuthURL = "https://accounts.google.com/o/oauth2/v2/auth"
)

// GoogleConfig contains the OAuth client registration
type GoogleConfig struct {
	ClientID    string
	RedirectURL string
	AuthURL     string // defaults to GoogleAuthURL
}

// Google implements ports.AuthorizationProvider
type Google struct {
	cfg oauth2.Config
}

// NewGoogle creates a new Google authorization provider
func NewGoogle(cfg GoogleConfig) (*Google, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("google client id is required")
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("google redirect url is required")
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = GoogleAuthURL
	}

	return &Google{cfg: oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURL,
		Scopes:      []string{oidc.ScopeOpenID, "email", "profile"},
		Endpoint:    oauth2.Endpoint{AuthURL: cfg.AuthURL},
	}}, nil
}

// AuthorizationURL returns the implicit-flow URL that yields an id_token
// bound to nonce in the redirect fragment
func (g *Google) AuthorizationURL(state, nonce string) string {
	return g.cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("response_type", "id_token"),
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// Verifier checks id_token signatures against the issuer's published keys
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewVerifier runs OIDC discovery against issuer and returns a verifier
// that accepts tokens issued to clientID
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed: %w", err)
	}
	return &Verifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// Verify validates the id_token and returns its claims
func (v *Verifier) Verify(ctx context.Context, idToken string) (*core.IDTokenClaims, error) {
	token, err := v.verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("id_token verification failed: %v: %w", err, core.ErrUnauthenticated)
	}

	var extra struct {
		Email string `json:"email"`
	}
	if err := token.Claims(&extra); err != nil {
		return nil, fmt.Errorf("invalid id_token claims: %v: %w", err, core.ErrUnauthenticated)
	}

	return &core.IDTokenClaims{
		Subject:  token.Subject,
		Issuer:   token.Issuer,
		Audience: token.Audience,
		Nonce:    token.Nonce,
		Email:    extra.Email,
	}, nil
}

var (
	_ ports.AuthorizationProvider = (*Google)(nil)
	_ ports.IDTokenVerifier       = (*Verifier)(nil)
)
