package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/veilsig"
	"go.dedis.ch/veilsig/artifact"
	"go.dedis.ch/veilsig/prover"
	"go.dedis.ch/veilsig/trustlist"
	"golang.org/x/xerrors"
)

var tSuite = veilsig.Suite

type env struct {
	backend    *prover.StubBackend
	list       *trustlist.List
	rec        trustlist.SignerRecord
	mp         *trustlist.Proof
	docHash    []byte
	ciphertext []byte
	artHash    []byte
	signature  []byte
}

// newEnv wires a full happy path: four admitted signers, signer 2 signs a
// document, the payload is encrypted for a recipient and bound to the
// document digest.
func newEnv(t *testing.T) *env {
	pairs := make([]*key.Pair, 4)
	publics := make([]kyber.Point, len(pairs))
	for i := range pairs {
		pairs[i] = key.NewKeyPair(tSuite)
		publics[i] = pairs[i].Public
	}
	list, err := trustlist.Build(tSuite, sha256.New, publics)
	require.NoError(t, err)

	doc := []byte("the agreement, signed")
	docSum := sha256.Sum256(doc)
	docHash := docSum[:]

	sig, err := schnorr.Sign(tSuite, pairs[2].Private, docHash)
	require.NoError(t, err)

	recipient := key.NewKeyPair(tSuite)
	sender := key.NewKeyPair(tSuite)
	enc, artHash, err := artifact.Encrypt(tSuite, veilsig.CurveEd25519,
		[]byte("confidential payload"), artifact.NewSecret(sender.Private),
		recipient.Public, docHash)
	require.NoError(t, err)

	rec := list.Record(2)
	mp, err := list.ProveInclusion(rec.Fingerprint)
	require.NoError(t, err)

	return &env{
		backend:    prover.NewStubBackend(tSuite, sha256.New),
		list:       list,
		rec:        rec,
		mp:         mp,
		docHash:    docHash,
		ciphertext: enc.Ciphertext,
		artHash:    artHash,
		signature:  sig,
	}
}

func (e *env) build(t *testing.T) *Manifest {
	m, err := Build(context.Background(), e.backend, e.docHash, e.artHash,
		e.rec, e.list.Root(), e.mp, e.signature)
	require.NoError(t, err)
	return m
}

// All three bindings correct and a valid proof: the report is all-pass.
func TestVerify_AllPass(t *testing.T) {
	e := newEnv(t)
	m := e.build(t)
	require.Equal(t, CurrentVersion, m.Version)
	require.Equal(t, hex.EncodeToString(e.docHash), m.DocHash)
	require.WithinDuration(t, time.Now(), m.Timestamp, time.Minute)

	r := Verify(m, e.ciphertext, e.list.Root(), e.backend, nil)
	require.True(t, r.Ok())
	require.Equal(t, CheckID(-1), r.FailedAt())
	require.NoError(t, r.Error())
	require.Contains(t, r.String(), "verification passed")
}

func TestBuild_InconsistentWitness(t *testing.T) {
	e := newEnv(t)
	outsider := key.NewKeyPair(tSuite)
	sig, err := schnorr.Sign(tSuite, outsider.Private, e.docHash)
	require.NoError(t, err)
	e.signature = sig

	_, err = Build(context.Background(), e.backend, e.docHash, e.artHash,
		e.rec, e.list.Root(), e.mp, e.signature)
	require.True(t, xerrors.Is(err, prover.ErrProofGeneration))
}

func TestBuild_Cancelled(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, err := Build(ctx, e.backend, e.docHash, e.artHash,
		e.rec, e.list.Root(), e.mp, e.signature)
	require.Nil(t, m)
	require.True(t, xerrors.Is(err, context.Canceled))
}

// A manifest whose artifact hash was copied from a different ciphertext
// fails at the binding check even though the proof, in isolation, is valid.
func TestVerify_ForeignArtifact(t *testing.T) {
	e := newEnv(t)
	m := e.build(t)

	other := make([]byte, 64)
	random.Bytes(other, tSuite.RandomStream())
	r := Verify(m, other, e.list.Root(), e.backend, nil)
	require.False(t, r.Ok())
	require.Equal(t, CheckArtifactBinding, r.FailedAt())
	require.True(t, xerrors.Is(r.Error(), ErrArtifactBinding))
}

func TestVerify_WrongAllowListVersion(t *testing.T) {
	e := newEnv(t)
	m := e.build(t)

	// The verifier expects a newer allow-list version with a different root.
	otherList, err := trustlist.Build(tSuite, sha256.New,
		[]kyber.Point{key.NewKeyPair(tSuite).Public})
	require.NoError(t, err)

	r := Verify(m, e.ciphertext, otherList.Root(), e.backend, nil)
	require.Equal(t, CheckTrustRoot, r.FailedAt())
	require.True(t, xerrors.Is(r.Error(), ErrTrustRootMismatch))
}

func TestVerify_ShortCircuits(t *testing.T) {
	e := newEnv(t)
	m := e.build(t)
	m.Version = 99

	r := Verify(m, e.ciphertext, e.list.Root(), e.backend, nil)
	require.Equal(t, CheckFormat, r.FailedAt())
	require.True(t, xerrors.Is(r.Error(), ErrManifestFormat))
	// Only the failed check is listed; later ones never ran.
	require.Len(t, r.Checks, 1)
	require.Contains(t, r.String(), "FAIL")
}

// A digest of the wrong length must already fail the format check instead of
// surfacing later as a root or proof mismatch.
func TestVerify_TruncatedDigest(t *testing.T) {
	e := newEnv(t)
	m := e.build(t)
	m.TrustRoot = m.TrustRoot[:4]

	r := Verify(m, e.ciphertext, e.list.Root(), e.backend, nil)
	require.Equal(t, CheckFormat, r.FailedAt())
	require.True(t, xerrors.Is(r.Error(), ErrManifestFormat))

	m = e.build(t)
	m.DocHash = m.DocHash + "00"
	r = Verify(m, e.ciphertext, e.list.Root(), e.backend, nil)
	require.Equal(t, CheckFormat, r.FailedAt())
	require.True(t, xerrors.Is(r.Error(), ErrManifestFormat))
}

func TestVerify_ProofFormat(t *testing.T) {
	e := newEnv(t)
	m := e.build(t)
	m.Proof = m.Proof[:8]

	r := Verify(m, e.ciphertext, e.list.Root(), e.backend, nil)
	require.Equal(t, CheckProofFormat, r.FailedAt())
	require.True(t, xerrors.Is(r.Error(), ErrProofFormat))
}

func TestVerify_TamperedStatement(t *testing.T) {
	e := newEnv(t)
	m := e.build(t)
	// Flip one byte of the document digest: format, binding and root checks
	// still pass, the proof check must catch it.
	docHash, err := hex.DecodeString(m.DocHash)
	require.NoError(t, err)
	docHash[0] ^= 0x01
	m.DocHash = hex.EncodeToString(docHash)

	r := Verify(m, e.ciphertext, e.list.Root(), e.backend, nil)
	require.Equal(t, CheckProofVerify, r.FailedAt())
	require.True(t, xerrors.Is(r.Error(), ErrProofVerification))
}

func TestManifest_SaveLoad(t *testing.T) {
	dir, err := ioutil.TempDir("", "manifest")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	e := newEnv(t)
	m := e.build(t)
	path := filepath.Join(dir, "doc.manifest.json")
	require.NoError(t, m.Save(path))

	// No temp files left behind.
	entries, err := ioutil.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.False(t, strings.HasSuffix(entries[0].Name(), ".tmp"))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, m.Proof, loaded.Proof)
	require.Equal(t, m.DocHash, loaded.DocHash)
	require.True(t, m.Timestamp.Equal(loaded.Timestamp))

	r := Verify(loaded, e.ciphertext, e.list.Root(), e.backend, nil)
	require.True(t, r.Ok())
}

func TestLoad_Malformed(t *testing.T) {
	dir, err := ioutil.TempDir("", "manifest")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "bad.json")
	require.NoError(t, ioutil.WriteFile(path, []byte("{"), 0644))
	_, err = Load(path)
	require.True(t, xerrors.Is(err, ErrManifestFormat))

	require.NoError(t, ioutil.WriteFile(path, []byte(`{"version":1}`), 0644))
	_, err = Load(path)
	require.True(t, xerrors.Is(err, ErrManifestFormat))
}

func TestDetectTampering(t *testing.T) {
	e := newEnv(t)
	m := e.build(t)
	require.NoError(t, DetectTampering(m, e.ciphertext, e.list.Root(), e.backend, nil))
}

func TestDetectTampering_BadBaseline(t *testing.T) {
	e := newEnv(t)
	m := e.build(t)
	other := make([]byte, 32)
	random.Bytes(other, tSuite.RandomStream())
	require.Error(t, DetectTampering(m, other, e.list.Root(), e.backend, nil))
}
