package trustlist

import (
	"bytes"
	"io/ioutil"
	"os"

	"go.dedis.ch/protobuf"
	"go.dedis.ch/veilsig"
	"golang.org/x/xerrors"
)

// listData is the on-disk form of a built list. The root is stored so that a
// reload under a different deployment hash is detected instead of silently
// producing a different tree.
type listData struct {
	Fingerprints [][]byte
	Publics      [][]byte
	Root         []byte
	Hash         string
	Curve        string
}

// Save writes the list to path so later prove calls can reload the exact
// allow-list version that was built.
func (l *List) Save(path string, curve veilsig.CurveID, hashID veilsig.HashID) error {
	data := listData{
		Root:  l.Root(),
		Hash:  string(hashID),
		Curve: string(curve),
	}
	for _, rec := range l.records {
		data.Fingerprints = append(data.Fingerprints, rec.Fingerprint)
		if rec.Public != nil {
			buf, err := rec.Public.MarshalBinary()
			if err != nil {
				return xerrors.Errorf("marshalling public key: %w", err)
			}
			data.Publics = append(data.Publics, buf)
		}
	}
	buf, err := protobuf.Encode(&data)
	if err != nil {
		return xerrors.Errorf("encoding trust list: %w", err)
	}
	if err := ioutil.WriteFile(path, buf, 0644); err != nil {
		return xerrors.Errorf("writing trust list: %w", err)
	}
	return nil
}

// Load reads a list saved with Save and rebuilds the tree. The stored root
// must match the recomputed one, which catches a deployment whose tree hash
// differs from the one the list was built with.
func Load(path string) (*List, veilsig.CurveID, veilsig.HashID, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", "", xerrors.Errorf("no trust list at %s: %w", path, err)
		}
		return nil, "", "", xerrors.Errorf("reading trust list: %w", err)
	}
	var data listData
	if err := protobuf.Decode(buf, &data); err != nil {
		return nil, "", "", xerrors.Errorf("decoding trust list: %w", err)
	}

	curve := veilsig.CurveID(data.Curve)
	hashID := veilsig.HashID(data.Hash)
	hashNew, err := veilsig.HashFor(hashID)
	if err != nil {
		return nil, "", "", xerrors.Errorf("loading trust list: %w", err)
	}

	l, err := FromFingerprints(hashNew, data.Fingerprints)
	if err != nil {
		return nil, "", "", xerrors.Errorf("rebuilding trust list: %w", err)
	}
	if len(data.Publics) == len(l.records) {
		suite, err := veilsig.SuiteFor(curve)
		if err != nil {
			return nil, "", "", xerrors.Errorf("loading trust list: %w", err)
		}
		for i, pubBuf := range data.Publics {
			pub := suite.Point()
			if err := pub.UnmarshalBinary(pubBuf); err != nil {
				return nil, "", "", xerrors.Errorf("unmarshalling public key %d: %w", i, err)
			}
			l.records[i].Public = pub
		}
	}
	if !bytes.Equal(l.Root(), data.Root) {
		return nil, "", "", xerrors.Errorf("stored root %x does not match recomputed %x",
			data.Root, l.Root())
	}
	return l, curve, hashID, nil
}
