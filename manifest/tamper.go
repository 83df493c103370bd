package manifest

import (
	"encoding/hex"

	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/veilsig/prover"
	"golang.org/x/xerrors"
)

// Mutation is a single-field corruption of a known-good manifest/artifact
// pair, together with the check it must trip.
type Mutation struct {
	Name    string
	FailsAt CheckID
	// Apply returns the corrupted copy; the inputs are never modified.
	Apply func(m Manifest, ciphertext []byte) (Manifest, []byte)
}

func flipByte(buf []byte, i int) []byte {
	out := append([]byte{}, buf...)
	out[i%len(out)] ^= 0x01
	return out
}

func flipHex(s string, i int) string {
	buf, _ := hex.DecodeString(s)
	return hex.EncodeToString(flipByte(buf, i))
}

// Mutations returns the standard single-field corruption suite. Each entry
// targets exactly one bound field and must be caught by exactly one check.
func Mutations() []Mutation {
	return []Mutation{
		{
			Name:    "clear-version",
			FailsAt: CheckFormat,
			Apply: func(m Manifest, ct []byte) (Manifest, []byte) {
				m.Version = 0
				return m, ct
			},
		},
		{
			Name:    "truncate-doc-hash",
			FailsAt: CheckFormat,
			Apply: func(m Manifest, ct []byte) (Manifest, []byte) {
				m.DocHash = "not-hex"
				return m, ct
			},
		},
		{
			Name:    "flip-ciphertext-byte",
			FailsAt: CheckArtifactBinding,
			Apply: func(m Manifest, ct []byte) (Manifest, []byte) {
				return m, flipByte(ct, len(ct)/2)
			},
		},
		{
			Name:    "swap-artifact-hash",
			FailsAt: CheckArtifactBinding,
			Apply: func(m Manifest, ct []byte) (Manifest, []byte) {
				m.Artifact.Hash = flipHex(m.Artifact.Hash, 0)
				return m, ct
			},
		},
		{
			Name:    "swap-trust-root",
			FailsAt: CheckTrustRoot,
			Apply: func(m Manifest, ct []byte) (Manifest, []byte) {
				m.TrustRoot = flipHex(m.TrustRoot, 3)
				return m, ct
			},
		},
		{
			Name:    "truncate-proof",
			FailsAt: CheckProofFormat,
			Apply: func(m Manifest, ct []byte) (Manifest, []byte) {
				m.Proof = m.Proof[:minProofSize-1]
				return m, ct
			},
		},
		{
			Name:    "alter-doc-hash",
			FailsAt: CheckProofVerify,
			Apply: func(m Manifest, ct []byte) (Manifest, []byte) {
				m.DocHash = flipHex(m.DocHash, 7)
				return m, ct
			},
		},
		{
			Name:    "swap-signer-fingerprint",
			FailsAt: CheckProofVerify,
			Apply: func(m Manifest, ct []byte) (Manifest, []byte) {
				m.Signer.Fingerprint = flipHex(m.Signer.Fingerprint, 11)
				return m, ct
			},
		},
	}
}

// DetectTampering runs every mutation against a known-good manifest and
// artifact and checks that verification fails at exactly the corresponding
// check - not an earlier one, not a later one. The pristine pair must verify
// clean first. It reports the first mutation whose failure lands elsewhere.
func DetectTampering(m *Manifest, ciphertext []byte, expectedRoot []byte,
	backend prover.Backend, vk []byte) error {
	if r := Verify(m, ciphertext, expectedRoot, backend, vk); !r.Ok() {
		return xerrors.Errorf("baseline does not verify: %v", r.Error())
	}
	for _, mut := range Mutations() {
		mm, ct := mut.Apply(*m, ciphertext)
		r := Verify(&mm, ct, expectedRoot, backend, vk)
		if r.Ok() {
			return xerrors.Errorf("mutation %s went undetected", mut.Name)
		}
		if got := r.FailedAt(); got != mut.FailsAt {
			return xerrors.Errorf("mutation %s failed at %v, want %v",
				mut.Name, got, mut.FailsAt)
		}
		log.Lvl3("Mutation", mut.Name, "caught by", mut.FailsAt)
	}
	return nil
}
