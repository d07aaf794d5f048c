package sui

import (
	"fmt"
	"strconv"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"

	"github.com/layer-3/zksponsor/core"
	"github.com/layer-3/zksponsor/internal/bcs"
)

// SuiCoinType is the native gas coin
const SuiCoinType = "0x2::sui::SUI"

const transactionDataTypeTag = "TransactionData::"

// ObjectRef identifies one version of an object
type ObjectRef struct {
	ObjectID string
	Version  uint64
	Digest   string // base58
}

// GasData is the gas section of a transaction
type GasData struct {
	Payment []ObjectRef
	Owner   string
	Price   uint64
	Budget  uint64
}

// ObjectRefFromCoin converts an RPC coin into an object reference
func ObjectRefFromCoin(coin core.Coin) (ObjectRef, error) {
	version, err := strconv.ParseUint(coin.Version, 10, 64)
	if err != nil {
		return ObjectRef{}, fmt.Errorf("coin %s has invalid version %q: %w", coin.CoinObjectID, coin.Version, err)
	}
	return ObjectRef{ObjectID: coin.CoinObjectID, Version: version, Digest: coin.Digest}, nil
}

// BuildTransactionData serializes TransactionData::V1 from already-encoded
// TransactionKind bytes, the sender and the gas data. Expiration is None.
func BuildTransactionData(kind []byte, sender string, gas GasData) ([]byte, error) {
	if len(kind) == 0 {
		return nil, fmt.Errorf("empty transaction kind: %w", core.ErrInvalidInput)
	}
	senderBytes, err := AddressBytes(sender)
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	ownerBytes, err := AddressBytes(gas.Owner)
	if err != nil {
		return nil, fmt.Errorf("gas owner: %w", err)
	}

	enc := bcs.NewEncoder()
	enc.Variant(0) // V1
	enc.Fixed(kind)
	enc.Fixed(senderBytes)

	enc.Len(len(gas.Payment))
	for _, ref := range gas.Payment {
		id, err := AddressBytes(ref.ObjectID)
		if err != nil {
			return nil, fmt.Errorf("gas object id: %w", err)
		}
		digest, err := base58.Decode(ref.Digest)
		if err != nil {
			return nil, fmt.Errorf("gas object digest %q: %w", ref.Digest, err)
		}
		if len(digest) != 32 {
			return nil, fmt.Errorf("gas object digest has %d bytes, want 32", len(digest))
		}
		enc.Fixed(id).U64(ref.Version).Bytes(digest)
	}
	enc.Fixed(ownerBytes)
	enc.U64(gas.Price)
	enc.U64(gas.Budget)

	enc.Variant(0) // TransactionExpiration::None
	return enc.Result(), nil
}

// TransactionDigest returns the base58 content digest of transaction data bytes
func TransactionDigest(txBytes []byte) string {
	hasher, _ := blake2b.New256(nil)
	hasher.Write([]byte(transactionDataTypeTag))
	hasher.Write(txBytes)
	return base58.Encode(hasher.Sum(nil))
}
