// Package trustlist builds the Merkle structure over admitted signer
// fingerprints and produces deterministic inclusion proofs against its root.
//
// A list is built once per allow-list version and is immutable afterwards; a
// new allow-list version yields a new List value with a new root. Concurrent
// reads of a built list are safe.
package trustlist

import (
	"bytes"
	"hash"
	"math/bits"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/suites"
	"golang.org/x/xerrors"
)

// Domain-separation prefixes, shared with the verification circuit.
const (
	leafPrefix byte = 0x00
	nodePrefix byte = 0x01
)

// FingerprintSize is the size of a leaf digest in bytes. Both supported tree
// hashes produce 32-byte digests.
const FingerprintSize = 32

// ErrMalformedIdentity is returned when a signer's key material is the wrong
// length or not a valid curve point.
var ErrMalformedIdentity = xerrors.New("malformed identity")

// ErrNotInList is returned when an inclusion proof is requested for a
// fingerprint that is not part of the list.
var ErrNotInList = xerrors.New("fingerprint not in trust list")

// paddingLeaf fills the tree up to 2^depth slots. It is all-ones, a value
// outside the image of the tagged leaf encoding by out-of-band agreement, so
// a padding slot can never be confused with an admitted signer.
var paddingLeaf = bytes.Repeat([]byte{0xff}, FingerprintSize)

// PaddingLeaf returns a copy of the sentinel used for empty slots.
func PaddingLeaf() []byte {
	return append([]byte{}, paddingLeaf...)
}

// SignerRecord ties an admitted public key to its leaf fingerprint. Records
// are immutable once part of a list.
type SignerRecord struct {
	Fingerprint []byte
	Public      kyber.Point
}

// EncodeLeaf derives the fingerprint of a signer identity: the tree hash of
// the tagged, marshalled public key. It is deterministic and fails with
// ErrMalformedIdentity for nil points or points that do not marshal to the
// suite's point length.
func EncodeLeaf(suite suites.Suite, hashNew func() hash.Hash, pub kyber.Point) ([]byte, error) {
	if pub == nil {
		return nil, xerrors.Errorf("nil public key: %w", ErrMalformedIdentity)
	}
	buf, err := pub.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("marshalling public key: %v: %w", err, ErrMalformedIdentity)
	}
	if len(buf) != suite.PointLen() {
		return nil, xerrors.Errorf("public key is %d bytes, suite wants %d: %w",
			len(buf), suite.PointLen(), ErrMalformedIdentity)
	}
	h := hashNew()
	h.Write([]byte{leafPrefix})
	h.Write(buf)
	return h.Sum(nil), nil
}

// LeafFromBytes unmarshals raw public-key bytes on the suite's curve and
// returns the record for it. Off-curve or wrong-length material fails with
// ErrMalformedIdentity.
func LeafFromBytes(suite suites.Suite, hashNew func() hash.Hash, pubBuf []byte) (SignerRecord, error) {
	if len(pubBuf) != suite.PointLen() {
		return SignerRecord{}, xerrors.Errorf("key material is %d bytes, suite wants %d: %w",
			len(pubBuf), suite.PointLen(), ErrMalformedIdentity)
	}
	pub := suite.Point()
	if err := pub.UnmarshalBinary(pubBuf); err != nil {
		return SignerRecord{}, xerrors.Errorf("unmarshalling point: %v: %w", err, ErrMalformedIdentity)
	}
	fp, err := EncodeLeaf(suite, hashNew, pub)
	if err != nil {
		return SignerRecord{}, err
	}
	return SignerRecord{Fingerprint: fp, Public: pub}, nil
}

// List is the built trust list: the admitted fingerprints in insertion
// order, the padded leaf layer and every interior layer up to the root.
type List struct {
	records []SignerRecord
	depth   int
	hashNew func() hash.Hash
	// layers[0] is the padded leaf layer, layers[depth] holds the root.
	layers [][][]byte
}

// Build assembles a list from signer identities. Insertion order is
// preserved and significant: callers needing a canonical ordering must sort
// before calling. The depth is ceil(log2(n)) with a minimum of 1, and empty
// slots are filled with the padding sentinel.
func Build(suite suites.Suite, hashNew func() hash.Hash, identities []kyber.Point) (*List, error) {
	if len(identities) == 0 {
		return nil, xerrors.New("empty allow-list")
	}
	records := make([]SignerRecord, len(identities))
	for i, pub := range identities {
		fp, err := EncodeLeaf(suite, hashNew, pub)
		if err != nil {
			return nil, xerrors.Errorf("encoding leaf %d: %w", i, err)
		}
		records[i] = SignerRecord{Fingerprint: fp, Public: pub}
	}
	return fromRecords(records, hashNew)
}

// FromFingerprints builds a list directly from leaf digests, e.g. when
// reloading a persisted allow-list version whose public keys are not needed.
func FromFingerprints(hashNew func() hash.Hash, fingerprints [][]byte) (*List, error) {
	if len(fingerprints) == 0 {
		return nil, xerrors.New("empty allow-list")
	}
	records := make([]SignerRecord, len(fingerprints))
	for i, fp := range fingerprints {
		if len(fp) != FingerprintSize {
			return nil, xerrors.Errorf("fingerprint %d is %d bytes: %w",
				i, len(fp), ErrMalformedIdentity)
		}
		records[i] = SignerRecord{Fingerprint: append([]byte{}, fp...)}
	}
	return fromRecords(records, hashNew)
}

func fromRecords(records []SignerRecord, hashNew func() hash.Hash) (*List, error) {
	depth := treeDepth(len(records))
	size := 1 << depth

	leaves := make([][]byte, size)
	for i, rec := range records {
		leaves[i] = rec.Fingerprint
	}
	for i := len(records); i < size; i++ {
		leaves[i] = paddingLeaf
	}

	layers := [][][]byte{leaves}
	for sz := size; sz > 1; sz >>= 1 {
		prev := layers[len(layers)-1]
		next := make([][]byte, sz/2)
		for i := 0; i < sz; i += 2 {
			next[i/2] = hashNode(hashNew, prev[i], prev[i+1])
		}
		layers = append(layers, next)
	}

	return &List{
		records: records,
		depth:   depth,
		hashNew: hashNew,
		layers:  layers,
	}, nil
}

// treeDepth is ceil(log2(n)), minimum 1.
func treeDepth(n int) int {
	if n <= 2 {
		return 1
	}
	return bits.Len(uint(n - 1))
}

func hashNode(hashNew func() hash.Hash, left, right []byte) []byte {
	h := hashNew()
	h.Write([]byte{nodePrefix})
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// Root returns a copy of the list's root digest.
func (l *List) Root() []byte {
	root := l.layers[len(l.layers)-1][0]
	return append([]byte{}, root...)
}

// Depth returns the tree depth.
func (l *List) Depth() int {
	return l.depth
}

// Len returns the number of admitted signers, excluding padding.
func (l *List) Len() int {
	return len(l.records)
}

// Record returns the i-th admitted signer in insertion order.
func (l *List) Record(i int) SignerRecord {
	return l.records[i]
}

// ProveInclusion returns the sibling path for the given fingerprint. When the
// same fingerprint was admitted at several indices, the proof is for the
// first occurrence in insertion order. Absent fingerprints fail with
// ErrNotInList.
func (l *List) ProveInclusion(fingerprint []byte) (*Proof, error) {
	idx := -1
	for i, rec := range l.records {
		if bytes.Equal(rec.Fingerprint, fingerprint) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, xerrors.Errorf("no leaf for %x: %w", fingerprint, ErrNotInList)
	}
	return l.proofAt(idx), nil
}

// ProveIndex returns the sibling path for the leaf at the given insertion
// index.
func (l *List) ProveIndex(idx int) (*Proof, error) {
	if idx < 0 || idx >= len(l.records) {
		return nil, xerrors.Errorf("index %d out of range: %w", idx, ErrNotInList)
	}
	return l.proofAt(idx), nil
}

func (l *List) proofAt(idx int) *Proof {
	siblings := make([][]byte, l.depth)
	i := idx
	for lvl := 0; lvl < l.depth; lvl++ {
		sib := l.layers[lvl][i^1]
		siblings[lvl] = append([]byte{}, sib...)
		i >>= 1
	}
	return &Proof{LeafIndex: idx, Siblings: siblings}
}

// Proof is a bottom-to-top sibling path for one leaf. It is only meaningful
// relative to the list it was derived from.
type Proof struct {
	LeafIndex int
	Siblings  [][]byte
}

// RootFor recomputes the root implied by the proof for the given leaf.
func (p *Proof) RootFor(hashNew func() hash.Hash, leaf []byte) []byte {
	node := append([]byte{}, leaf...)
	idx := p.LeafIndex
	for _, sib := range p.Siblings {
		if idx&1 == 0 {
			node = hashNode(hashNew, node, sib)
		} else {
			node = hashNode(hashNew, sib, node)
		}
		idx >>= 1
	}
	return node
}

// Verify checks that the proof connects the leaf to the expected root.
func (p *Proof) Verify(hashNew func() hash.Hash, leaf, root []byte) error {
	if got := p.RootFor(hashNew, leaf); !bytes.Equal(got, root) {
		return xerrors.Errorf("proof recomputes to %x, want %x", got, root)
	}
	return nil
}
