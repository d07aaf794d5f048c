package core

import "time"

// PendingLogin is the ephemeral material kept during the OAuth round trip
type PendingLogin struct {
	Nonce        string    `json:"nonce" cbor:"nonce"`
	Randomness   string    `json:"randomness" cbor:"randomness"`
	MaxEpoch     uint64    `json:"max_epoch" cbor:"max_epoch"`
	EphemeralKey Secret    `json:"ephemeral_key" cbor:"ephemeral_key"`
	ExpiresAt    time.Time `json:"expires_at" cbor:"expires_at"`
}

// Session represents an authenticated zkLogin session
type Session struct {
	Address      string    `json:"address" cbor:"address"`
	JWT          string    `json:"jwt" cbor:"jwt"`
	Randomness   string    `json:"randomness" cbor:"randomness"`
	MaxEpoch     uint64    `json:"max_epoch" cbor:"max_epoch"`
	EphemeralKey Secret    `json:"ephemeral_key" cbor:"ephemeral_key"`
	Proof        *ZkProof  `json:"proof,omitempty" cbor:"proof,omitempty"`
	Email        *string   `json:"email,omitempty" cbor:"email,omitempty"`
	ExpiresAt    time.Time `json:"expires_at" cbor:"expires_at"`
}

// CanSign reports whether the session carries a proof
func (s *Session) CanSign() bool {
	return s.Proof != nil
}

// SponsoredTransaction is a gas-attached transaction waiting for the claimer's signature
type SponsoredTransaction struct {
	TxBytes   []byte    `json:"tx_bytes" cbor:"tx_bytes"`
	Claimer   string    `json:"claimer" cbor:"claimer"`
	Sender    string    `json:"sender" cbor:"sender"`
	ExpiresAt time.Time `json:"expires_at" cbor:"expires_at"`
}

// ZkProof is the zero-knowledge proof issued by the identity provider
type ZkProof struct {
	ProofPoints      ProofPoints      `json:"proofPoints" cbor:"proof_points"`
	IssBase64Details IssBase64Details `json:"issBase64Details" cbor:"iss_base64_details"`
	HeaderBase64     string           `json:"headerBase64" cbor:"header_base64"`
	AddressSeed      string           `json:"addressSeed" cbor:"address_seed"`
}

// ProofPoints are the Groth16 proof points as decimal strings
type ProofPoints struct {
	A []string   `json:"a" cbor:"a"`
	B [][]string `json:"b" cbor:"b"`
	C []string   `json:"c" cbor:"c"`
}

// IssBase64Details locates the iss claim inside the JWT payload
type IssBase64Details struct {
	Value     string `json:"value" cbor:"value"`
	IndexMod4 uint8  `json:"indexMod4" cbor:"index_mod_4"`
}

// NonceGrant is returned by the identity provider when a login begins
type NonceGrant struct {
	Nonce               string
	Randomness          string
	Epoch               uint64
	MaxEpoch            uint64
	EstimatedExpiration time.Time // zero when the provider gave no estimate
}

// ZkLoginAccount is the on-chain identity resolved from an id_token
type ZkLoginAccount struct {
	Address   string
	Salt      string
	PublicKey string
}

// IDTokenClaims are the id_token claims this service reads
type IDTokenClaims struct {
	Subject  string
	Issuer   string
	Audience []string
	Nonce    string
	Email    string
}

// Coin is a coin object owned by the sponsor
type Coin struct {
	CoinType     string `json:"coinType"`
	CoinObjectID string `json:"coinObjectId"`
	Version      string `json:"version"`
	Digest       string `json:"digest"`
	Balance      string `json:"balance"`
}

// CoinPage is one page of a coin listing
type CoinPage struct {
	Data        []Coin  `json:"data"`
	NextCursor  *string `json:"nextCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

// ExecutionResult is the network's answer to an executed transaction
type ExecutionResult struct {
	Digest  string         `json:"digest"`
	Effects map[string]any `json:"effects,omitempty"`
}
