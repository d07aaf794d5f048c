package sui

import (
	"golang.org/x/crypto/blake2b"

	"github.com/layer-3/zksponsor/internal/bcs"
)

// IntentScope binds a signature to one category of message
type IntentScope uint8

const (
	ScopeTransactionData IntentScope = 0
	ScopePersonalMessage IntentScope = 3
)

const (
	intentVersionV0 byte = 0
	intentAppSui    byte = 0
)

// IntentMessage wraps payload in the [scope, version, app] envelope
func IntentMessage(scope IntentScope, payload []byte) []byte {
	out := make([]byte, 0, 3+len(payload))
	out = append(out, byte(scope), intentVersionV0, intentAppSui)
	return append(out, payload...)
}

// IntentDigest is the blake2b-256 hash of the intent message; this is what gets signed
func IntentDigest(scope IntentScope, payload []byte) [32]byte {
	return blake2b.Sum256(IntentMessage(scope, payload))
}

// PersonalMessageDigest serializes message as vector<u8> before digesting it
func PersonalMessageDigest(message []byte) [32]byte {
	return IntentDigest(ScopePersonalMessage, bcs.Vector(message))
}
