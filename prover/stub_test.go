package prover

import (
	"context"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/veilsig"
	"go.dedis.ch/veilsig/trustlist"
	"golang.org/x/xerrors"
)

var tSuite = veilsig.Suite

type fixture struct {
	backend *StubBackend
	list    *trustlist.List
	st      *Statement
	w       *Witness
}

// newFixture builds a four-signer trust list and a consistent
// statement/witness pair for the signer at the given index.
func newFixture(t *testing.T, idx int) *fixture {
	pairs := make([]*key.Pair, 4)
	publics := make([]kyber.Point, len(pairs))
	for i := range pairs {
		pairs[i] = key.NewKeyPair(tSuite)
		publics[i] = pairs[i].Public
	}
	list, err := trustlist.Build(tSuite, sha256.New, publics)
	require.NoError(t, err)

	docHash := make([]byte, 32)
	random.Bytes(docHash, tSuite.RandomStream())
	artifactHash := make([]byte, 32)
	random.Bytes(artifactHash, tSuite.RandomStream())

	sig, err := schnorr.Sign(tSuite, pairs[idx].Private, docHash)
	require.NoError(t, err)

	rec := list.Record(idx)
	mp, err := list.ProveInclusion(rec.Fingerprint)
	require.NoError(t, err)

	return &fixture{
		backend: NewStubBackend(tSuite, sha256.New),
		list:    list,
		st: &Statement{
			DocHash:          docHash,
			ArtifactHash:     artifactHash,
			SignerCommitment: rec.Fingerprint,
			TrustRoot:        list.Root(),
		},
		w: &Witness{
			Signature: sig,
			SignerPub: rec.Public,
			LeafIndex: mp.LeafIndex,
			Siblings:  mp.Siblings,
		},
	}
}

func TestStub_ProveVerify(t *testing.T) {
	f := newFixture(t, 1)
	proof, err := f.backend.Prove(context.Background(), f.st, f.w)
	require.NoError(t, err)
	require.Len(t, proof, StubProofSize)

	ok, err := f.backend.Verify(proof, f.st, nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestStub_ProveIsDeterministic(t *testing.T) {
	f := newFixture(t, 0)
	p1, err := f.backend.Prove(context.Background(), f.st, f.w)
	require.NoError(t, err)
	p2, err := f.backend.Prove(context.Background(), f.st, f.w)
	require.NoError(t, err)
	require.Equal(t, p1, p2)
}

func TestStub_ProveInconsistentWitness(t *testing.T) {
	// Signature by a key outside the list.
	f := newFixture(t, 2)
	outsider := key.NewKeyPair(tSuite)
	sig, err := schnorr.Sign(tSuite, outsider.Private, f.st.DocHash)
	require.NoError(t, err)
	f.w.Signature = sig
	f.w.SignerPub = outsider.Public
	_, err = f.backend.Prove(context.Background(), f.st, f.w)
	require.True(t, xerrors.Is(err, ErrProofGeneration))

	// Signature over the wrong document.
	f = newFixture(t, 2)
	otherDoc := make([]byte, 32)
	random.Bytes(otherDoc, tSuite.RandomStream())
	f.w.Signature, err = schnorr.Sign(tSuite, key.NewKeyPair(tSuite).Private, otherDoc)
	require.NoError(t, err)
	_, err = f.backend.Prove(context.Background(), f.st, f.w)
	require.True(t, xerrors.Is(err, ErrProofGeneration))

	// Merkle path pointing at the wrong slot.
	f = newFixture(t, 2)
	f.w.LeafIndex = (f.w.LeafIndex + 1) % f.list.Len()
	_, err = f.backend.Prove(context.Background(), f.st, f.w)
	require.True(t, xerrors.Is(err, ErrProofGeneration))

	// Commitment not matching the witness key.
	f = newFixture(t, 2)
	f.st.SignerCommitment = f.list.Record(3).Fingerprint
	_, err = f.backend.Prove(context.Background(), f.st, f.w)
	require.True(t, xerrors.Is(err, ErrProofGeneration))
}

func TestStub_ProveCancelled(t *testing.T) {
	f := newFixture(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	proof, err := f.backend.Prove(ctx, f.st, f.w)
	require.Nil(t, proof)
	require.True(t, xerrors.Is(err, context.Canceled))
}

func TestStub_VerifyRejectsTamperedStatement(t *testing.T) {
	f := newFixture(t, 3)
	proof, err := f.backend.Prove(context.Background(), f.st, f.w)
	require.NoError(t, err)

	tampered := *f.st
	tampered.ArtifactHash = make([]byte, 32)
	random.Bytes(tampered.ArtifactHash, tSuite.RandomStream())
	ok, err := f.backend.Verify(proof, &tampered, nil)
	require.NoError(t, err)
	require.False(t, ok)

	// Garbage bytes are rejected as not even being a stub proof.
	_, err = f.backend.Verify([]byte("not a proof"), f.st, nil)
	require.Error(t, err)
}

func TestStatement_BytesInjective(t *testing.T) {
	st := &Statement{
		DocHash:          []byte{1, 2},
		ArtifactHash:     []byte{3},
		SignerCommitment: []byte{4},
		TrustRoot:        []byte{5},
	}
	// Shifting a byte across the field boundary must change the encoding.
	other := &Statement{
		DocHash:          []byte{1},
		ArtifactHash:     []byte{2, 3},
		SignerCommitment: []byte{4},
		TrustRoot:        []byte{5},
	}
	require.NotEqual(t, st.Bytes(), other.Bytes())
}
