package sui

import (
	"encoding/base64"
	"fmt"

	"github.com/layer-3/zksponsor/core"
	"github.com/layer-3/zksponsor/internal/bcs"
)

// ZkLoginSignature serializes {inputs, maxEpoch, userSignature} with the
// zkLogin flag and returns it base64 encoded. userSignature is the
// serialized ephemeral signature (flag || sig || public key).
func ZkLoginSignature(proof *core.ZkProof, maxEpoch uint64, userSignature []byte) (string, error) {
	if proof == nil {
		return "", core.ErrSessionCannotSign
	}
	if len(proof.ProofPoints.A) == 0 || len(proof.ProofPoints.B) == 0 || len(proof.ProofPoints.C) == 0 {
		return "", fmt.Errorf("incomplete proof points: %w", core.ErrInvalidInput)
	}

	enc := bcs.NewEncoder()
	enc.U8(FlagZkLogin)

	enc.Strings(proof.ProofPoints.A)
	enc.Len(len(proof.ProofPoints.B))
	for _, row := range proof.ProofPoints.B {
		enc.Strings(row)
	}
	enc.Strings(proof.ProofPoints.C)

	enc.String(proof.IssBase64Details.Value)
	enc.U8(proof.IssBase64Details.IndexMod4)
	enc.String(proof.HeaderBase64)
	enc.String(proof.AddressSeed)

	enc.U64(maxEpoch)
	enc.Bytes(userSignature)

	return base64.StdEncoding.EncodeToString(enc.Result()), nil
}
