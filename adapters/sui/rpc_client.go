// Package sui is a JSON-RPC 2.0 client for the Sui full node methods the
// sponsor uses.
package sui

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/layer-3/zksponsor/core"
	"github.com/layer-3/zksponsor/ports"
)

// Public full node endpoints per network
var DefaultRPCURLs = map[string]string{
	"mainnet":  "https://fullnode.mainnet.sui.io:443",
	"testnet":  "https://fullnode.testnet.sui.io:443",
	"devnet":   "https://fullnode.devnet.sui.io:443",
	"localnet": "http://127.0.0.1:9000",
}

const requestTypeWaitForLocalExecution = "WaitForLocalExecution"

// RPCClient implements ports.Chain
type RPCClient struct {
	client *rpc.Client
}

// Dial connects to a Sui full node
func Dial(ctx context.Context, url string) (*RPCClient, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial sui rpc %s: %w", url, err)
	}
	return NewRPCClient(client), nil
}

// NewRPCClient wraps an existing rpc client
func NewRPCClient(client *rpc.Client) *RPCClient {
	return &RPCClient{client: client}
}

// Close releases the underlying connection
func (c *RPCClient) Close() {
	c.client.Close()
}

// ReferenceGasPrice returns the current epoch's reference gas price in MIST
func (c *RPCClient) ReferenceGasPrice(ctx context.Context) (uint64, error) {
	var raw json.RawMessage
	if err := c.client.CallContext(ctx, &raw, "suix_getReferenceGasPrice"); err != nil {
		return 0, fmt.Errorf("suix_getReferenceGasPrice: %v: %w", err, core.ErrUpstream)
	}

	// BigInt values arrive as JSON strings
	price, err := strconv.ParseUint(strings.Trim(string(raw), `"`), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid reference gas price %s: %w", raw, core.ErrUpstream)
	}
	return price, nil
}

// Coins returns the first page of coins of coinType owned by owner
func (c *RPCClient) Coins(ctx context.Context, owner, coinType string, limit int) (*core.CoinPage, error) {
	var page core.CoinPage
	if err := c.client.CallContext(ctx, &page, "suix_getCoins", owner, coinType, nil, limit); err != nil {
		return nil, fmt.Errorf("suix_getCoins: %v: %w", err, core.ErrUpstream)
	}
	return &page, nil
}

type executeOptions struct {
	ShowEffects bool `json:"showEffects"`
}

// ExecuteTransaction submits signed transaction bytes and waits for local execution
func (c *RPCClient) ExecuteTransaction(ctx context.Context, txBytes []byte, signatures []string) (*core.ExecutionResult, error) {
	var result core.ExecutionResult
	err := c.client.CallContext(ctx, &result, "sui_executeTransactionBlock",
		base64.StdEncoding.EncodeToString(txBytes),
		signatures,
		executeOptions{ShowEffects: true},
		requestTypeWaitForLocalExecution,
	)
	if err != nil {
		return nil, fmt.Errorf("sui_executeTransactionBlock: %v: %w", err, core.ErrUpstream)
	}
	if result.Digest == "" {
		return nil, fmt.Errorf("sui_executeTransactionBlock returned no digest: %w", core.ErrUpstream)
	}
	return &result, nil
}

var _ ports.Chain = (*RPCClient)(nil)
