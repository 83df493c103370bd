package manifest

import (
	"bytes"
	"fmt"
	"strings"

	"go.dedis.ch/veilsig/artifact"
	"go.dedis.ch/veilsig/prover"
	"golang.org/x/xerrors"
)

// Errors for verification steps 2-5. Step 1 reuses ErrManifestFormat.
var (
	// ErrArtifactBinding - the supplied ciphertext does not hash to the
	// artifact commitment in the manifest.
	ErrArtifactBinding = xerrors.New("artifact binding mismatch")
	// ErrTrustRootMismatch - the manifest's trust root is not the one the
	// verifier expects for the allow-list version in use.
	ErrTrustRootMismatch = xerrors.New("trust root mismatch")
	// ErrProofFormat - the proof bytes fail the size/structure sanity check.
	ErrProofFormat = xerrors.New("malformed proof")
	// ErrProofVerification - the backend rejected the proof.
	ErrProofVerification = xerrors.New("proof verification failed")
)

// Proof size sanity bounds for step 4. A digest-sized proof is the smallest
// anything can emit; real engine proofs stay well under the upper bound.
const (
	minProofSize = 32
	maxProofSize = 1 << 20
)

// CheckID names the five verification steps in order.
type CheckID int

// The five checks.
const (
	CheckFormat CheckID = iota
	CheckArtifactBinding
	CheckTrustRoot
	CheckProofFormat
	CheckProofVerify
)

var checkNames = map[CheckID]string{
	CheckFormat:          "manifest-format",
	CheckArtifactBinding: "artifact-binding",
	CheckTrustRoot:       "trust-root",
	CheckProofFormat:     "proof-format",
	CheckProofVerify:     "proof-verify",
}

func (c CheckID) String() string {
	return checkNames[c]
}

// Check is the outcome of one verification step.
type Check struct {
	ID  CheckID
	OK  bool
	Err error
}

// Report itemizes the verification outcome so a caller can always tell which
// binding failed, not just that one did. Checks after the first failure are
// not run and not listed.
type Report struct {
	Checks []Check
}

// Ok tells whether all five checks passed.
func (r *Report) Ok() bool {
	if len(r.Checks) != len(checkNames) {
		return false
	}
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

// FailedAt returns the check the verification stopped at, or -1 when all
// passed.
func (r *Report) FailedAt() CheckID {
	for _, c := range r.Checks {
		if !c.OK {
			return c.ID
		}
	}
	return -1
}

// Error returns the failure of the first failed check, or nil.
func (r *Report) Error() error {
	for _, c := range r.Checks {
		if !c.OK {
			return c.Err
		}
	}
	return nil
}

func (r *Report) String() string {
	var b strings.Builder
	for _, c := range r.Checks {
		if c.OK {
			fmt.Fprintf(&b, "  ok   %s\n", c.ID)
		} else {
			fmt.Fprintf(&b, "  FAIL %s: %v\n", c.ID, c.Err)
		}
	}
	if r.Ok() {
		b.WriteString("verification passed")
	} else {
		b.WriteString("verification FAILED")
	}
	return b.String()
}

func (r *Report) record(id CheckID, err error) bool {
	r.Checks = append(r.Checks, Check{ID: id, OK: err == nil, Err: err})
	return err == nil
}

// Verify runs the five ordered checks over a manifest, the ciphertext it
// claims to bind and the trust root the verifier expects. It short-circuits
// on the first failure; each step fails with its own sentinel so the report
// alone answers which binding broke. Backend diagnostics are surfaced
// verbatim and never retried.
func Verify(m *Manifest, ciphertext []byte, expectedRoot []byte,
	backend prover.Backend, vk []byte) *Report {
	r := &Report{}

	// 1: structure.
	if !r.record(CheckFormat, m.validate()) {
		return r
	}
	docHash, artifactHash, fingerprint, trustRoot := m.digests()

	// 2: the supplied artifact is the committed one.
	if got := artifact.Hash(ciphertext); !bytes.Equal(got, artifactHash) {
		r.record(CheckArtifactBinding,
			xerrors.Errorf("ciphertext hashes to %x, manifest commits to %x: %w",
				got, artifactHash, ErrArtifactBinding))
		return r
	}
	r.record(CheckArtifactBinding, nil)

	// 3: the trust root is the allow-list version in use.
	if !bytes.Equal(trustRoot, expectedRoot) {
		r.record(CheckTrustRoot,
			xerrors.Errorf("manifest root %x, verifier expects %x: %w",
				trustRoot, expectedRoot, ErrTrustRootMismatch))
		return r
	}
	r.record(CheckTrustRoot, nil)

	// 4: proof sanity before handing it to the backend.
	if len(m.Proof) < minProofSize || len(m.Proof) > maxProofSize {
		r.record(CheckProofFormat,
			xerrors.Errorf("proof is %d bytes: %w", len(m.Proof), ErrProofFormat))
		return r
	}
	r.record(CheckProofFormat, nil)

	// 5: the cryptographic proof itself.
	st := &prover.Statement{
		DocHash:          docHash,
		ArtifactHash:     artifactHash,
		SignerCommitment: fingerprint,
		TrustRoot:        trustRoot,
	}
	ok, err := backend.Verify(m.Proof, st, vk)
	if err != nil {
		r.record(CheckProofVerify,
			xerrors.Errorf("backend: %v: %w", err, ErrProofVerification))
		return r
	}
	if !ok {
		r.record(CheckProofVerify,
			xerrors.Errorf("proof does not verify for this statement: %w",
				ErrProofVerification))
		return r
	}
	r.record(CheckProofVerify, nil)
	return r
}
