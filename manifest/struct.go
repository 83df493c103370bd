// Package manifest defines the persisted record that ties a document digest,
// an artifact commitment, a trust-list root and the membership proof
// together, and implements the five-step verification over it.
//
// A manifest is immutable once produced: re-proving always creates a new
// manifest. Verifiers only read.
package manifest

import (
	"encoding/hex"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/pborman/uuid"
	"golang.org/x/xerrors"
)

// CurrentVersion is the manifest format version this code writes and the
// highest one it accepts.
const CurrentVersion = 1

// ArtifactType is the only artifact kind currently defined.
const ArtifactType = "encrypted"

// ErrManifestFormat is returned when a manifest is structurally invalid:
// missing fields, bad hex, or an unsupported version.
var ErrManifestFormat = xerrors.New("malformed manifest")

// digestSize is the decoded length of every bound digest field. Both
// deployment tree hashes produce 32-byte digests, as does the artifact
// commitment.
const digestSize = 32

// ArtifactRef is the public commitment to the bound artifact.
type ArtifactRef struct {
	Type string `json:"type"`
	Hash string `json:"artifactHash"`
}

// SignerRef carries the signer commitment. Only the fingerprint enters the
// proof statement; the public key is included for audit deployments that
// choose to reveal it and may be empty in anonymous ones.
type SignerRef struct {
	PublicKey   string `json:"publicKey,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

// Manifest is the persisted proof record. Digests are hex, the proof is
// base64 (Go's JSON encoding of []byte), the timestamp RFC 3339.
type Manifest struct {
	Version   int         `json:"version"`
	DocHash   string      `json:"docHash"`
	Artifact  ArtifactRef `json:"artifact"`
	Signer    SignerRef   `json:"signer"`
	TrustRoot string      `json:"trustRoot"`
	Proof     []byte      `json:"proof"`
	Timestamp time.Time   `json:"timestamp"`
}

// validate checks the structural invariants, returning ErrManifestFormat
// with a diagnostic naming the offending field.
func (m *Manifest) validate() error {
	if m.Version < 1 || m.Version > CurrentVersion {
		return xerrors.Errorf("unsupported version %d: %w", m.Version, ErrManifestFormat)
	}
	for _, f := range []struct {
		name, val string
	}{
		{"docHash", m.DocHash},
		{"artifact.artifactHash", m.Artifact.Hash},
		{"signer.fingerprint", m.Signer.Fingerprint},
		{"trustRoot", m.TrustRoot},
	} {
		if f.val == "" {
			return xerrors.Errorf("missing %s: %w", f.name, ErrManifestFormat)
		}
		buf, err := hex.DecodeString(f.val)
		if err != nil {
			return xerrors.Errorf("%s is not hex: %w", f.name, ErrManifestFormat)
		}
		if len(buf) != digestSize {
			return xerrors.Errorf("%s is %d bytes, want %d: %w",
				f.name, len(buf), digestSize, ErrManifestFormat)
		}
	}
	if m.Artifact.Type == "" {
		return xerrors.Errorf("missing artifact.type: %w", ErrManifestFormat)
	}
	if len(m.Proof) == 0 {
		return xerrors.Errorf("missing proof: %w", ErrManifestFormat)
	}
	if m.Timestamp.IsZero() {
		return xerrors.Errorf("missing timestamp: %w", ErrManifestFormat)
	}
	return nil
}

// Save writes the manifest atomically: to a temporary file in the target
// directory first, then renamed into place. A cancelled or crashed prover
// never leaves a partially written manifest behind.
func (m *Manifest) Save(path string) error {
	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return xerrors.Errorf("encoding manifest: %w", err)
	}
	tmp := filepath.Join(filepath.Dir(path),
		"."+filepath.Base(path)+"."+uuid.NewRandom().String()+".tmp")
	if err := ioutil.WriteFile(tmp, buf, 0644); err != nil {
		return xerrors.Errorf("writing manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return xerrors.Errorf("renaming manifest: %w", err)
	}
	return nil
}

// Load reads a manifest and validates its structure.
func Load(path string) (*Manifest, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(buf, &m); err != nil {
		return nil, xerrors.Errorf("decoding manifest: %v: %w", err, ErrManifestFormat)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// digests decodes the bound hex fields. validate must have passed.
func (m *Manifest) digests() (docHash, artifactHash, fingerprint, trustRoot []byte) {
	docHash, _ = hex.DecodeString(m.DocHash)
	artifactHash, _ = hex.DecodeString(m.Artifact.Hash)
	fingerprint, _ = hex.DecodeString(m.Signer.Fingerprint)
	trustRoot, _ = hex.DecodeString(m.TrustRoot)
	return
}
