package prover

import (
	"bytes"
	"context"
	"hash"

	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/suites"
	"go.dedis.ch/veilsig/trustlist"
	"golang.org/x/xerrors"
)

// stubProofTag prefixes every stub proof so it cannot be mistaken for output
// of a real proving engine.
var stubProofTag = []byte("veilsig-stub-proof-v1")

// StubProofSize is the fixed size of a stub proof in bytes.
var StubProofSize = len(stubProofTag) + 32

// StubBackend validates the witness the way the circuit would - schnorr
// signature over the document digest, Merkle path from the committed leaf to
// the trust root - and emits a deterministic tag over the statement instead
// of a zero-knowledge proof. Its Verify recomputes that tag, so tampering
// with any public input after proving is detected, exactly like with a real
// engine. What it does not provide is zero knowledge towards parties who can
// watch the prover run.
type StubBackend struct {
	suite   suites.Suite
	hashNew func() hash.Hash
}

// NewStubBackend returns a stub for the given deployment parameters.
func NewStubBackend(suite suites.Suite, hashNew func() hash.Hash) *StubBackend {
	return &StubBackend{suite: suite, hashNew: hashNew}
}

// Prove checks the witness against the statement and returns the stub proof.
// Any inconsistency fails with ErrProofGeneration carrying the diagnostic.
func (b *StubBackend) Prove(ctx context.Context, st *Statement, w *Witness) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, xerrors.Errorf("proving: %w", err)
	}

	if w.SignerPub == nil {
		return nil, xerrors.Errorf("witness has no signer key: %w", ErrProofGeneration)
	}
	if err := schnorr.Verify(b.suite, w.SignerPub, st.DocHash, w.Signature); err != nil {
		return nil, xerrors.Errorf("signature does not verify: %v: %w", err, ErrProofGeneration)
	}

	leaf, err := trustlist.EncodeLeaf(b.suite, b.hashNew, w.SignerPub)
	if err != nil {
		return nil, xerrors.Errorf("encoding witness leaf: %v: %w", err, ErrProofGeneration)
	}
	if !bytes.Equal(leaf, st.SignerCommitment) {
		return nil, xerrors.Errorf("signer commitment does not match witness key: %w",
			ErrProofGeneration)
	}

	mp := trustlist.Proof{LeafIndex: w.LeafIndex, Siblings: w.Siblings}
	if err := mp.Verify(b.hashNew, leaf, st.TrustRoot); err != nil {
		return nil, xerrors.Errorf("merkle path: %v: %w", err, ErrProofGeneration)
	}

	if err := ctx.Err(); err != nil {
		return nil, xerrors.Errorf("proving: %w", err)
	}
	return b.tag(st), nil
}

// Verify recomputes the stub tag for the statement and compares. The
// verification key is ignored: the stub has no circuit to key.
func (b *StubBackend) Verify(proof []byte, st *Statement, vk []byte) (bool, error) {
	if len(proof) != StubProofSize || !bytes.HasPrefix(proof, stubProofTag) {
		return false, xerrors.Errorf("proof is not a stub proof")
	}
	return bytes.Equal(proof, b.tag(st)), nil
}

func (b *StubBackend) tag(st *Statement) []byte {
	h := b.hashNew()
	h.Write(stubProofTag)
	h.Write(st.Bytes())
	return append(append([]byte{}, stubProofTag...), h.Sum(nil)...)
}

var _ Backend = (*StubBackend)(nil)
