package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/layer-3/zksponsor/core"
	"github.com/layer-3/zksponsor/internal/clock"
	"github.com/layer-3/zksponsor/internal/sui"
	"github.com/layer-3/zksponsor/ports"
)

const (
	DefaultGasBudget  = uint64(2_000_000)
	DefaultSponsorTTL = 60 * time.Second

	coinPageLimit = 100
)

// SponsorConfig contains the sponsor's operating parameters
type SponsorConfig struct {
	Network string
	// EnokiNetwork is also accepted as a network hint when it differs
	// from Network
	EnokiNetwork string
	GasBudget    uint64
	TTL          time.Duration
}

// PrepareRequest is a transaction kind the claimer wants sponsored
type PrepareRequest struct {
	Network   string // optional hint, must match the Sui or Enoki network
	KindBytes []byte
	Claimer   string
	Sender    string
}

// Prepared is a gas-attached transaction awaiting the claimer's signature
type Prepared struct {
	Digest         string
	Bytes          []byte
	SponsorAddress string
	ExpiresAt      time.Time
}

// SponsorService attaches gas from the sponsor account and co-signs
// executions
type SponsorService struct {
	chain    ports.Chain
	key      *sui.Keypair
	address  string
	registry *SponsoredTransactions
	eventPub ports.EventPublisher
	clock    clock.Clock
	logger   *slog.Logger
	cfg      SponsorConfig

	mu       sync.Mutex
	inFlight map[string]struct{}

	// claimMu serializes the claimer check with the cache write in Prepare
	claimMu sync.Mutex
}

// NewSponsorService creates a new sponsorship service
func NewSponsorService(
	cfg SponsorConfig,
	key *sui.Keypair,
	chain ports.Chain,
	registry *SponsoredTransactions,
	eventPub ports.EventPublisher,
	clk clock.Clock,
	logger *slog.Logger,
) (*SponsorService, error) {
	if key == nil {
		return nil, errors.New("sponsor key is required")
	}
	if cfg.Network == "" {
		return nil, errors.New("sponsor network is required")
	}
	if cfg.GasBudget == 0 {
		cfg.GasBudget = DefaultGasBudget
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSponsorTTL
	}

	return &SponsorService{
		chain:    chain,
		key:      key,
		address:  key.Address(),
		registry: registry,
		eventPub: eventPub,
		clock:    clk,
		logger:   logger,
		cfg:      cfg,
		inFlight: make(map[string]struct{}),
	}, nil
}

// SponsorAddress returns the address paying for gas
func (s *SponsorService) SponsorAddress() string {
	return s.address
}

// Network returns the network the sponsor operates on
func (s *SponsorService) Network() string {
	return s.cfg.Network
}

func (s *SponsorService) servesNetwork(network string) bool {
	if strings.EqualFold(network, s.cfg.Network) {
		return true
	}
	return s.cfg.EnokiNetwork != "" && strings.EqualFold(network, s.cfg.EnokiNetwork)
}

// Prepare attaches a sponsor gas coin to the transaction kind and caches
// the result under its digest
func (s *SponsorService) Prepare(ctx context.Context, req PrepareRequest) (*Prepared, error) {
	if req.Network != "" && !s.servesNetwork(req.Network) {
		return nil, fmt.Errorf("network %q is not served here (%s): %w", req.Network, s.cfg.Network, core.ErrInvalidInput)
	}
	if len(req.KindBytes) == 0 {
		return nil, fmt.Errorf("transaction kind bytes are required: %w", core.ErrInvalidInput)
	}
	claimer, err := sui.NormalizeAddress(req.Claimer)
	if err != nil {
		return nil, fmt.Errorf("claimer: %w", err)
	}
	sender, err := sui.NormalizeAddress(req.Sender)
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}

	price, err := s.chain.ReferenceGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get reference gas price: %w", err)
	}

	page, err := s.chain.Coins(ctx, s.address, sui.SuiCoinType, coinPageLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sponsor coins: %w", err)
	}

	coin, err := selectGasCoin(page.Data, s.cfg.GasBudget, price)
	if err != nil {
		s.logger.Warn("sponsor has no coin covering the gas budget",
			"sponsor", s.address, "budget", s.cfg.GasBudget, "price", price, "coins", len(page.Data))
		return nil, err
	}

	ref, err := sui.ObjectRefFromCoin(*coin)
	if err != nil {
		return nil, fmt.Errorf("gas coin: %v: %w", err, core.ErrUpstream)
	}

	txBytes, err := sui.BuildTransactionData(req.KindBytes, sender, sui.GasData{
		Payment: []sui.ObjectRef{ref},
		Owner:   s.address,
		Price:   price,
		Budget:  s.cfg.GasBudget,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}
	digest := sui.TransactionDigest(txBytes)

	expiresAt, err := s.claim(ctx, digest, core.SponsoredTransaction{
		TxBytes: txBytes,
		Claimer: claimer,
		Sender:  sender,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sponsored transaction prepared",
		"digest", digest, "claimer", claimer, "sender", sender, "gas_coin", coin.CoinObjectID, "price", price)

	return &Prepared{
		Digest:         digest,
		Bytes:          txBytes,
		SponsorAddress: s.address,
		ExpiresAt:      expiresAt,
	}, nil
}

// claim caches tx under digest unless a live entry belongs to another
// claimer
func (s *SponsorService) claim(ctx context.Context, digest string, tx core.SponsoredTransaction) (time.Time, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	existing, err := s.registry.Get(ctx, digest)
	switch {
	case err == nil && existing.Claimer != tx.Claimer:
		return time.Time{}, fmt.Errorf("digest %s is held by another claimer: %w", digest, core.ErrConflict)
	case err != nil && !errors.Is(err, core.ErrNotFound):
		return time.Time{}, err
	}

	tx.ExpiresAt = s.clock.Now().Add(s.cfg.TTL)
	if err := s.registry.Put(ctx, digest, tx); err != nil {
		return time.Time{}, err
	}
	return tx.ExpiresAt, nil
}

// Execute co-signs the cached transaction and submits it with the claimer's
// signature. The cache entry is consumed only on success.
func (s *SponsorService) Execute(ctx context.Context, digest, claimer, signature string) (*core.ExecutionResult, error) {
	if digest == "" || signature == "" {
		return nil, fmt.Errorf("digest and signature are required: %w", core.ErrInvalidInput)
	}
	claimer, err := sui.NormalizeAddress(claimer)
	if err != nil {
		return nil, fmt.Errorf("claimer: %w", err)
	}

	if !s.acquire(digest) {
		return nil, core.ErrExecutionInProgress
	}
	defer s.release(digest)

	tx, err := s.registry.Get(ctx, digest)
	if err != nil {
		return nil, err
	}
	if tx.Claimer != claimer {
		return nil, fmt.Errorf("transaction %s belongs to another claimer: %w", digest, core.ErrForbidden)
	}

	sponsorSignature := s.key.SignTransaction(tx.TxBytes)

	result, err := s.chain.ExecuteTransaction(ctx, tx.TxBytes, []string{signature, sponsorSignature})
	if err != nil {
		s.logger.Warn("sponsored transaction execution failed", "digest", digest, "error", err)
		return nil, err
	}

	if err := s.registry.Delete(ctx, digest); err != nil {
		s.logger.Error("failed to drop executed transaction", "digest", digest, "error", err)
	}
	if err := s.eventPub.PublishSponsorshipExecuted(ctx, result.Digest, claimer); err != nil {
		s.logger.Warn("failed to publish sponsorship executed event", "digest", result.Digest, "error", err)
	}
	s.logger.Info("sponsored transaction executed", "digest", result.Digest, "claimer", claimer)

	return result, nil
}

func (s *SponsorService) acquire(digest string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[digest]; busy {
		return false
	}
	s.inFlight[digest] = struct{}{}
	return true
}

func (s *SponsorService) release(digest string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, digest)
}

// selectGasCoin returns the first coin whose balance strictly exceeds
// budget * price
func selectGasCoin(coins []core.Coin, budget, price uint64) (*core.Coin, error) {
	required := uint64Decimal(budget).Mul(uint64Decimal(price))

	for i := range coins {
		balance, err := decimal.NewFromString(coins[i].Balance)
		if err != nil {
			continue
		}
		if balance.GreaterThan(required) {
			return &coins[i], nil
		}
	}

	return nil, fmt.Errorf("no sponsor coin above %s MIST: %w", required.String(), core.ErrInsufficientFunds)
}

func uint64Decimal(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
