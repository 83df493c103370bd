// Package prover defines the boundary to the external zero-knowledge engine.
// The engine is opaque: given a statement and a witness it produces proof
// bytes, and given proof bytes, a statement and a verification key it answers
// true or false. Everything else about it - circuit compilation, proving
// system, key ceremonies - lives outside this repository.
//
// The StubBackend checks witness consistency directly (signature and Merkle
// path) without producing a real zero-knowledge proof. It exists for tests
// and for deployments that want the binding checks before the proving
// circuit is available.
package prover

import (
	"context"

	"go.dedis.ch/kyber/v3"
	"golang.org/x/xerrors"
)

// ErrProofGeneration is returned when the backend reports that the witness
// does not satisfy the circuit constraints - the signature or Merkle path is
// inconsistent with the claimed statement. It is never retried: a failed
// proof means an inconsistent witness, not a transient fault.
var ErrProofGeneration = xerrors.New("proof generation failed")

// Statement is the public-input tuple the proof commits to. All digests are
// raw bytes; hex and base64 only appear at the manifest boundary.
type Statement struct {
	DocHash      []byte
	ArtifactHash []byte
	// SignerCommitment is the signer's leaf fingerprint. The circuit proves
	// knowledge of a valid signature by the committed identity without
	// revealing which allow-list entry it is.
	SignerCommitment []byte
	TrustRoot        []byte
}

// Bytes returns the canonical encoding of the statement as fed to the
// backend: the four digests length-prefixed in order.
func (s *Statement) Bytes() []byte {
	fields := [][]byte{s.DocHash, s.ArtifactHash, s.SignerCommitment, s.TrustRoot}
	var out []byte
	for _, f := range fields {
		out = append(out, byte(len(f)>>8), byte(len(f)))
		out = append(out, f...)
	}
	return out
}

// Witness is the private input: everything the prover knows and the verifier
// must not learn.
type Witness struct {
	Signature []byte
	SignerPub kyber.Point
	LeafIndex int
	Siblings  [][]byte
}

// Backend produces and checks proofs. Prove is a single blocking, CPU-bound
// call that can run for minutes on a real engine; it must honor ctx and
// return early when cancelled, producing nothing. Verify is cheap.
type Backend interface {
	Prove(ctx context.Context, st *Statement, w *Witness) ([]byte, error)
	Verify(proof []byte, st *Statement, vk []byte) (bool, error)
}
