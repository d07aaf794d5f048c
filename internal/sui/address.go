// Package sui builds the Sui-specific byte layouts this service signs and
// submits: addresses, intent messages, transaction data and serialized
// signatures.
package sui

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/blake2b"

	"github.com/layer-3/zksponsor/core"
)

// AddressLength is the byte length of a Sui address
const AddressLength = 32

// NormalizeAddress returns the canonical form: 0x followed by 64 lowercase hex digits
func NormalizeAddress(address string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(address))
	trimmed = strings.TrimPrefix(trimmed, "0x")
	if trimmed == "" || len(trimmed) > AddressLength*2 {
		return "", fmt.Errorf("address %q has invalid length: %w", address, core.ErrInvalidInput)
	}
	for _, r := range trimmed {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return "", fmt.Errorf("address %q is not hex: %w", address, core.ErrInvalidInput)
		}
	}
	return "0x" + strings.Repeat("0", AddressLength*2-len(trimmed)) + trimmed, nil
}

// AddressBytes decodes an address into its 32 raw bytes
func AddressBytes(address string) ([]byte, error) {
	normalized, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return hexutil.Decode(normalized)
}

// AddressFromPublicKey derives the address of a key: blake2b-256(flag || public key)
func AddressFromPublicKey(flag byte, publicKey []byte) string {
	hasher, _ := blake2b.New256(nil)
	hasher.Write([]byte{flag})
	hasher.Write(publicKey)
	return hexutil.Encode(hasher.Sum(nil))
}
