package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/layer-3/zksponsor/core"
	"github.com/layer-3/zksponsor/internal/sui"
)

// SignatureService produces the signatures a session is allowed to make
type SignatureService struct {
	sessions *Sessions
	logger   *slog.Logger
}

// NewSignatureService creates a new signature service
func NewSignatureService(sessions *Sessions, logger *slog.Logger) *SignatureService {
	return &SignatureService{sessions: sessions, logger: logger}
}

// SignTransaction returns the zkLogin signature of txBytes under the
// TransactionData intent
func (s *SignatureService) SignTransaction(ctx context.Context, token string, txBytes []byte) (string, error) {
	if len(txBytes) == 0 {
		return "", fmt.Errorf("transaction bytes are required: %w", core.ErrInvalidInput)
	}

	session, key, err := s.signer(ctx, token)
	if err != nil {
		return "", err
	}

	digest := sui.IntentDigest(sui.ScopeTransactionData, txBytes)
	return sui.ZkLoginSignature(session.Proof, session.MaxEpoch, key.SerializeSignature(key.Sign(digest[:])))
}

// SignPersonalMessage returns the zkLogin signature of message under the
// PersonalMessage intent
func (s *SignatureService) SignPersonalMessage(ctx context.Context, token string, message []byte) (string, error) {
	session, key, err := s.signer(ctx, token)
	if err != nil {
		return "", err
	}

	digest := sui.PersonalMessageDigest(message)
	return sui.ZkLoginSignature(session.Proof, session.MaxEpoch, key.SerializeSignature(key.Sign(digest[:])))
}

// SignEphemeralRaw returns the bare 64-byte ephemeral signature of the
// personal-message digest, with no proof attached
func (s *SignatureService) SignEphemeralRaw(ctx context.Context, token string, message []byte) ([]byte, error) {
	_, key, err := s.signer(ctx, token)
	if err != nil {
		return nil, err
	}

	digest := sui.PersonalMessageDigest(message)
	return key.Sign(digest[:]), nil
}

// signer loads a session able to sign and rebuilds its ephemeral key.
// A session whose key cannot be rebuilt is deleted.
func (s *SignatureService) signer(ctx context.Context, token string) (*core.Session, *sui.Keypair, error) {
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if !session.CanSign() {
		return nil, nil, core.ErrSessionCannotSign
	}

	key, err := sui.KeypairFromSeed(session.EphemeralKey)
	if err != nil {
		s.logger.Error("dropping session with unusable ephemeral key", "address", session.Address, "error", err)
		if err := s.sessions.Delete(ctx, token); err != nil {
			s.logger.Warn("failed to delete corrupt session", "address", session.Address, "error", err)
		}
		return nil, nil, core.ErrSessionCorrupt
	}

	return session, key, nil
}
