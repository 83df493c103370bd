// Package veilsig proves that a document carries a valid signature from an
// identity in a trusted allow-list, bound to one specific encrypted artifact,
// without revealing who signed. The packages in this repository cover the
// binding-and-verification core: trust-list construction and inclusion proofs
// (trustlist), authenticated artifact encryption (artifact), proof
// orchestration and the manifest format (manifest), and the opaque proof
// backend boundary (prover).
//
// The zero-knowledge engine itself, signature extraction from documents and
// circuit compilation are external collaborators and are not implemented
// here.
package veilsig

import (
	"crypto/sha256"
	"hash"

	"go.dedis.ch/kyber/v3/suites"
	"golang.org/x/crypto/sha3"
	"golang.org/x/xerrors"
)

// Suite is the default cryptographic suite used when no deployment
// configuration selects another curve family.
var Suite = suites.MustFind("Ed25519")

// CurveID selects the key-agreement curve family. The artifact hash and all
// binding logic are curve-agnostic; only key material depends on it.
type CurveID string

// Supported curve families.
const (
	CurveEd25519 CurveID = "Ed25519"
	CurveBn256   CurveID = "bn256.adapter"
)

// SuiteFor returns the kyber suite for the given curve family.
func SuiteFor(c CurveID) (suites.Suite, error) {
	switch c {
	case CurveEd25519, CurveBn256:
		s, err := suites.Find(string(c))
		if err != nil {
			return nil, xerrors.Errorf("finding suite: %w", err)
		}
		return s, nil
	case "":
		return Suite, nil
	}
	return nil, xerrors.Errorf("unknown curve family %q", c)
}

// HashID selects the hash used for leaves and interior nodes of the trust
// list. It is a fixed deployment parameter and must match bit-for-bit the
// hash the proof backend's circuit expects.
type HashID string

// Supported tree hashes. HashSHA256 is the canonical default; HashSHA3 is
// offered for deployments whose circuit uses a Keccak-family permutation.
const (
	HashSHA256 HashID = "sha256"
	HashSHA3   HashID = "sha3-256"
)

// HashFor returns the constructor for the given tree hash.
func HashFor(h HashID) (func() hash.Hash, error) {
	switch h {
	case HashSHA256, "":
		return sha256.New, nil
	case HashSHA3:
		return sha3.New256, nil
	}
	return nil, xerrors.Errorf("unknown tree hash %q", h)
}
