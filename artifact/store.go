package artifact

import (
	bolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

var bucketArtifacts = []byte("artifacts")

// ErrNotFound is returned by Get when no ciphertext is stored under the
// given artifact hash.
var ErrNotFound = xerrors.New("artifact not found")

// Store is a content-addressed store for ciphertexts, keyed by their
// artifact hash. It replaces the shared staging directory of earlier
// tooling: components exchange artifact hashes and look the bytes up here
// instead of coupling through a filesystem layout.
type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) the store at the given path.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, xerrors.Errorf("opening store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketArtifacts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, xerrors.Errorf("creating bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Put stores a ciphertext and returns its artifact hash. Storing the same
// ciphertext twice is a no-op with the same key.
func (s *Store) Put(ciphertext []byte) ([]byte, error) {
	key := Hash(ciphertext)
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketArtifacts).Put(key, ciphertext)
	})
	if err != nil {
		return nil, xerrors.Errorf("storing artifact: %w", err)
	}
	return key, nil
}

// Get returns the ciphertext for an artifact hash.
func (s *Store) Get(artifactHash []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		buf := tx.Bucket(bucketArtifacts).Get(artifactHash)
		if buf == nil {
			return xerrors.Errorf("no artifact for %x: %w", artifactHash, ErrNotFound)
		}
		out = append([]byte{}, buf...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
