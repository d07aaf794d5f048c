// Package enoki talks to the Enoki zkLogin API: nonce issuance, account
// resolution and proof issuance.
package enoki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/layer-3/zksponsor/core"
	"github.com/layer-3/zksponsor/ports"
)

// DefaultBaseURL is the public Enoki API
const DefaultBaseURL = "https://api.enoki.mystenlabs.com"

// Config contains configuration options for the client
type Config struct {
	BaseURL    string
	APIKey     string
	Network    string // mainnet or testnet
	HTTPClient *http.Client
}

// Client implements ports.IdentityProvider over HTTP
type Client struct {
	baseURL string
	apiKey  string
	network string
	http    *http.Client
}

// New creates a new Enoki client
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("enoki api key is required")
	}
	if cfg.Network == "" {
		return nil, fmt.Errorf("enoki network is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		network: cfg.Network,
		http:    cfg.HTTPClient,
	}, nil
}

type nonceRequest struct {
	Network            string `json:"network"`
	EphemeralPublicKey string `json:"ephemeralPublicKey"`
}

type nonceResponse struct {
	Nonce               string `json:"nonce"`
	Randomness          string `json:"randomness"`
	Epoch               uint64 `json:"epoch"`
	MaxEpoch            uint64 `json:"maxEpoch"`
	EstimatedExpiration int64  `json:"estimatedExpiration"`
}

type zkpRequest struct {
	Network            string `json:"network"`
	EphemeralPublicKey string `json:"ephemeralPublicKey"`
	MaxEpoch           uint64 `json:"maxEpoch"`
	Randomness         string `json:"randomness"`
}

type accountResponse struct {
	Salt      string `json:"salt"`
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// IssueNonce requests a nonce bound to the ephemeral public key
func (c *Client) IssueNonce(ctx context.Context, ephemeralPublicKey string) (*core.NonceGrant, error) {
	var out nonceResponse
	err := c.do(ctx, http.MethodPost, "/v1/zklogin/nonce", "", nonceRequest{
		Network:            c.network,
		EphemeralPublicKey: ephemeralPublicKey,
	}, &out)
	if err != nil {
		return nil, err
	}

	grant := &core.NonceGrant{
		Nonce:      out.Nonce,
		Randomness: out.Randomness,
		Epoch:      out.Epoch,
		MaxEpoch:   out.MaxEpoch,
	}
	if out.EstimatedExpiration > 0 {
		grant.EstimatedExpiration = time.UnixMilli(out.EstimatedExpiration)
	}
	return grant, nil
}

// IssueProof requests a zero-knowledge proof for the id_token
func (c *Client) IssueProof(ctx context.Context, idToken, randomness string, maxEpoch uint64, ephemeralPublicKey string) (*core.ZkProof, error) {
	var proof core.ZkProof
	err := c.do(ctx, http.MethodPost, "/v1/zklogin/zkp", idToken, zkpRequest{
		Network:            c.network,
		EphemeralPublicKey: ephemeralPublicKey,
		MaxEpoch:           maxEpoch,
		Randomness:         randomness,
	}, &proof)
	if err != nil {
		return nil, err
	}
	return &proof, nil
}

// ResolveAccount returns the zkLogin address, salt and public key for the id_token
func (c *Client) ResolveAccount(ctx context.Context, idToken string) (*core.ZkLoginAccount, error) {
	var out accountResponse
	if err := c.do(ctx, http.MethodGet, "/v1/zklogin", idToken, nil, &out); err != nil {
		return nil, err
	}
	return &core.ZkLoginAccount{Address: out.Address, Salt: out.Salt, PublicKey: out.PublicKey}, nil
}

func (c *Client) do(ctx context.Context, method, path, idToken string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idToken != "" {
		req.Header.Set("zklogin-jwt", idToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider unavailable: %v: %w", err, core.ErrUpstream)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read identity provider response: %v: %w", err, core.ErrUpstream)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := resp.Status
		if decodeErr == nil && len(env.Errors) > 0 && env.Errors[0].Message != "" {
			message = env.Errors[0].Message
		}
		return fmt.Errorf("identity provider rejected %s %s: %s: %w", method, path, message, core.ErrUpstream)
	}
	if decodeErr != nil {
		return fmt.Errorf("invalid identity provider response: %v: %w", decodeErr, core.ErrUpstream)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("identity provider returned no data: %w", core.ErrUpstream)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("invalid identity provider payload: %v: %w", err, core.ErrUpstream)
	}
	return nil
}

var _ ports.IdentityProvider = (*Client)(nil)
