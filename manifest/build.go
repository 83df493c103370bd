package manifest

import (
	"context"
	"encoding/hex"
	"time"

	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/veilsig/prover"
	"go.dedis.ch/veilsig/trustlist"
	"golang.org/x/xerrors"
)

// Build assembles the statement and witness, runs the backend's single
// blocking Prove call and wraps the result. The docHash, artifactHash and
// root must be final before Build is called; Build never touches the
// artifact itself.
//
// Prove can run for minutes on a real engine. Cancelling ctx aborts the
// operation with no partial result: either a complete manifest is returned
// or none.
func Build(ctx context.Context, backend prover.Backend, docHash, artifactHash []byte,
	rec trustlist.SignerRecord, root []byte, mp *trustlist.Proof,
	signature []byte) (*Manifest, error) {

	st := &prover.Statement{
		DocHash:          docHash,
		ArtifactHash:     artifactHash,
		SignerCommitment: rec.Fingerprint,
		TrustRoot:        root,
	}
	w := &prover.Witness{
		Signature: signature,
		SignerPub: rec.Public,
		LeafIndex: mp.LeafIndex,
		Siblings:  mp.Siblings,
	}

	log.Lvl2("Proving membership for leaf", mp.LeafIndex, "against root",
		hex.EncodeToString(root))
	start := time.Now()
	proof, err := backend.Prove(ctx, st, w)
	if err != nil {
		return nil, xerrors.Errorf("backend: %w", err)
	}
	log.Lvl2("Proof generated in", time.Since(start))

	m := &Manifest{
		Version: CurrentVersion,
		DocHash: hex.EncodeToString(docHash),
		Artifact: ArtifactRef{
			Type: ArtifactType,
			Hash: hex.EncodeToString(artifactHash),
		},
		Signer: SignerRef{
			Fingerprint: hex.EncodeToString(rec.Fingerprint),
		},
		TrustRoot: hex.EncodeToString(root),
		Proof:     proof,
		Timestamp: time.Now().UTC(),
	}
	if err := m.validate(); err != nil {
		return nil, xerrors.Errorf("assembling manifest: %w", err)
	}
	return m, nil
}
