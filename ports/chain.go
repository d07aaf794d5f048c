package ports

import (
	"context"

	"github.com/layer-3/zksponsor/core"
)

// Chain is the subset of the Sui full node API the sponsor needs
type Chain interface {
	ReferenceGasPrice(ctx context.Context) (uint64, error)
	Coins(ctx context.Context, owner, coinType string, limit int) (*core.CoinPage, error)
	ExecuteTransaction(ctx context.Context, txBytes []byte, signatures []string) (*core.ExecutionResult, error)
}
