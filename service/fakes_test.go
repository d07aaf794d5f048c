package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/zksponsor/adapters/store"
	"github.com/layer-3/zksponsor/core"
	"github.com/layer-3/zksponsor/internal/clock"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAddress(b byte) string {
	return "0x" + strings.Repeat(fmt.Sprintf("%02x", b), 32)
}

type fakeIdentity struct {
	mu sync.Mutex

	grant   core.NonceGrant
	account core.ZkLoginAccount
	proof   core.ZkProof

	nonceErr   error
	accountErr error
	proofErr   error

	noncePublicKey string
	proofCalls     []proofCall
}

type proofCall struct {
	idToken, randomness string
	maxEpoch            uint64
	publicKey           string
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		grant: core.NonceGrant{
			Nonce:      "nonce-1",
			Randomness: "4242",
			Epoch:      10,
			MaxEpoch:   12,
		},
		account: core.ZkLoginAccount{Address: testAddress(0xaa), Salt: "77", PublicKey: "zkpk"},
		proof: core.ZkProof{
			ProofPoints:      core.ProofPoints{A: []string{"1", "2"}, B: [][]string{{"3", "4"}, {"5", "6"}}, C: []string{"7"}},
			IssBase64Details: core.IssBase64Details{Value: "aXNz", IndexMod4: 1},
			HeaderBase64:     "aGRy",
			AddressSeed:      "99",
		},
	}
}

func (f *fakeIdentity) IssueNonce(_ context.Context, ephemeralPublicKey string) (*core.NonceGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nonceErr != nil {
		return nil, f.nonceErr
	}
	f.noncePublicKey = ephemeralPublicKey
	grant := f.grant
	return &grant, nil
}

func (f *fakeIdentity) IssueProof(_ context.Context, idToken, randomness string, maxEpoch uint64, ephemeralPublicKey string) (*core.ZkProof, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.proofCalls = append(f.proofCalls, proofCall{idToken, randomness, maxEpoch, ephemeralPublicKey})
	if f.proofErr != nil {
		return nil, f.proofErr
	}
	proof := f.proof
	return &proof, nil
}

func (f *fakeIdentity) ResolveAccount(_ context.Context, _ string) (*core.ZkLoginAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	account := f.account
	return &account, nil
}

type fakeAuthz struct{}

func (fakeAuthz) AuthorizationURL(state, nonce string) string {
	return "https://accounts.example.com/auth?" + url.Values{"state": {state}, "nonce": {nonce}}.Encode()
}

type fakeParser struct {
	email string
	err   error
}

func (p fakeParser) Claims(string) (*core.IDTokenClaims, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &core.IDTokenClaims{Subject: "sub", Email: p.email}, nil
}

type fakeVerifier struct {
	claims core.IDTokenClaims
	err    error
}

func (v fakeVerifier) Verify(context.Context, string) (*core.IDTokenClaims, error) {
	if v.err != nil {
		return nil, v.err
	}
	claims := v.claims
	return &claims, nil
}

type fakeChain struct {
	mu sync.Mutex

	price      uint64
	coins      []core.Coin
	priceErr   error
	executeErr error

	// block, when set, holds ExecuteTransaction until closed
	block   chan struct{}
	entered chan struct{}

	executed [][]string
}

func (c *fakeChain) ReferenceGasPrice(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.price, c.priceErr
}

func (c *fakeChain) Coins(_ context.Context, _, _ string, _ int) (*core.CoinPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &core.CoinPage{Data: append([]core.Coin(nil), c.coins...)}, nil
}

func (c *fakeChain) ExecuteTransaction(_ context.Context, txBytes []byte, signatures []string) (*core.ExecutionResult, error) {
	if c.entered != nil {
		c.entered <- struct{}{}
	}
	if c.block != nil {
		<-c.block
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.executeErr != nil {
		return nil, c.executeErr
	}
	c.executed = append(c.executed, signatures)
	return &core.ExecutionResult{Digest: "executed-digest"}, nil
}

type recordedEvent struct {
	kind    string
	subject string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishSessionCreated(_ context.Context, address string) error {
	p.record("session.created", address)
	return nil
}

func (p *recordingPublisher) PublishSessionEnded(_ context.Context, address string) error {
	p.record("session.ended", address)
	return nil
}

func (p *recordingPublisher) PublishSponsorshipExecuted(_ context.Context, digest, _ string) error {
	p.record("sponsorship.executed", digest)
	return nil
}

func (p *recordingPublisher) record(kind, subject string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{kind, subject})
}

func (p *recordingPublisher) Events() []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]recordedEvent(nil), p.events...)
}

// harness wires services over in-memory stores and a fake clock
type harness struct {
	clock    *clock.FakeClock
	events   *recordingPublisher
	identity *fakeIdentity
	chain    *fakeChain

	pendingStore *store.MemoryStore[core.PendingLogin]
	sessionStore *store.MemoryStore[core.Session]
	sponsorStore *store.MemoryStore[core.SponsoredTransaction]

	sessions *Sessions
	pending  *PendingLogins
	sponsors *SponsoredTransactions
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.Fake(epoch)
	h := &harness{
		clock:        clk,
		events:       &recordingPublisher{},
		identity:     newFakeIdentity(),
		chain:        &fakeChain{price: 1000},
		pendingStore: store.NewMemoryStore[core.PendingLogin](clk),
		sessionStore: store.NewMemoryStore[core.Session](clk),
		sponsorStore: store.NewMemoryStore[core.SponsoredTransaction](clk),
	}
	h.sessions = NewSessions(h.sessionStore, h.events, clk, discardLogger())
	h.pending = NewPendingLogins(h.pendingStore, clk)
	h.sponsors = NewSponsoredTransactions(h.sponsorStore, clk)
	return h
}

func (h *harness) loginService(parser fakeParser, opts ...LoginOption) *LoginService {
	return NewLoginService(h.identity, fakeAuthz{}, parser, h.pending, h.sessions, h.events, h.clock, discardLogger(), opts...)
}
