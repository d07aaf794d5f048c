package sui

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Signature scheme flags
const (
	FlagEd25519 byte = 0x00
	FlagZkLogin byte = 0x05
)

const privateKeyPrefix = "suiprivkey"

// Keypair is an Ed25519 signing key
type Keypair struct {
	private ed25519.PrivateKey
}

// GenerateKeypair creates a new random Ed25519 keypair
func GenerateKeypair() (*Keypair, error) {
	_, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating Ed25519 keypair: %w", err)
	}
	return &Keypair{private: private}, nil
}

// KeypairFromSeed rebuilds a keypair from its 32-byte seed
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("secret key has %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	return &Keypair{private: ed25519.NewKeyFromSeed(seed)}, nil
}

// ParsePrivateKey accepts a bech32 "suiprivkey1..." string, a base64 flag+seed
// (33 bytes) or a base64 bare seed (32 bytes).
func ParsePrivateKey(input string) (*Keypair, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty private key")
	}

	if strings.HasPrefix(input, privateKeyPrefix) {
		hrp, data, err := bech32.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("decoding bech32 private key: %w", err)
		}
		if hrp != privateKeyPrefix {
			return nil, fmt.Errorf("unexpected private key prefix %q", hrp)
		}
		raw, err := bech32.ConvertBits(data, 5, 8, false)
		if err != nil {
			return nil, fmt.Errorf("converting bech32 private key: %w", err)
		}
		if len(raw) != ed25519.SeedSize+1 {
			return nil, fmt.Errorf("bech32 private key has %d bytes, want %d", len(raw), ed25519.SeedSize+1)
		}
		if raw[0] != FlagEd25519 {
			return nil, fmt.Errorf("unsupported key scheme flag 0x%02x", raw[0])
		}
		return KeypairFromSeed(raw[1:])
	}

	raw, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 private key: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize + 1:
		if raw[0] != FlagEd25519 {
			return nil, fmt.Errorf("unsupported key scheme flag 0x%02x", raw[0])
		}
		return KeypairFromSeed(raw[1:])
	case ed25519.SeedSize:
		return KeypairFromSeed(raw)
	default:
		return nil, fmt.Errorf("private key has %d bytes, want 32 or 33", len(raw))
	}
}

// EncodePrivateKey renders the keypair as a bech32 "suiprivkey1..." string
func (k *Keypair) EncodePrivateKey() (string, error) {
	data, err := bech32.ConvertBits(append([]byte{FlagEd25519}, k.Seed()...), 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(privateKeyPrefix, data)
}

// Seed returns the 32-byte private seed
func (k *Keypair) Seed() []byte {
	return k.private.Seed()
}

// PublicKey returns the raw 32-byte public key
func (k *Keypair) PublicKey() ed25519.PublicKey {
	return k.private.Public().(ed25519.PublicKey)
}

// SuiPublicKey returns base64(flag || public key), the form providers expect
func (k *Keypair) SuiPublicKey() string {
	return base64.StdEncoding.EncodeToString(append([]byte{FlagEd25519}, k.PublicKey()...))
}

// Address returns the normalized Sui address of the key
func (k *Keypair) Address() string {
	return AddressFromPublicKey(FlagEd25519, k.PublicKey())
}

// Sign returns the raw 64-byte Ed25519 signature of digest
func (k *Keypair) Sign(digest []byte) []byte {
	return ed25519.Sign(k.private, digest)
}

// SerializeSignature returns flag || signature || public key
func (k *Keypair) SerializeSignature(signature []byte) []byte {
	out := make([]byte, 0, 1+len(signature)+ed25519.PublicKeySize)
	out = append(out, FlagEd25519)
	out = append(out, signature...)
	return append(out, k.PublicKey()...)
}

// SignTransaction signs transaction bytes under the TransactionData intent
// and returns the base64 serialized signature.
func (k *Keypair) SignTransaction(txBytes []byte) string {
	digest := IntentDigest(ScopeTransactionData, txBytes)
	return base64.StdEncoding.EncodeToString(k.SerializeSignature(k.Sign(digest[:])))
}
