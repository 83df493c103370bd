package artifact

import (
	"bytes"
	"io/ioutil"
	"sync"

	"github.com/BurntSushi/toml"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/suites"
	"go.dedis.ch/kyber/v3/util/encoding"
	"golang.org/x/xerrors"
)

// Secret is a scoped handle on a private scalar. Encrypt and Decrypt consume
// the handle: the scalar is zeroed before they return, on success as well as
// on error, so key material never outlives a single call. A handle must not
// be reused after the call that consumed it.
type Secret struct {
	sync.Mutex
	s      kyber.Scalar
	closed bool
}

// NewSecret takes ownership of the scalar.
func NewSecret(s kyber.Scalar) *Secret {
	return &Secret{s: s}
}

// scalar returns the wrapped scalar or an error if the handle was already
// consumed.
func (s *Secret) scalar() (kyber.Scalar, error) {
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return nil, xerrors.New("secret already consumed")
	}
	return s.s, nil
}

// Close zeroes the scalar. Closing twice is harmless.
func (s *Secret) Close() {
	s.Lock()
	defer s.Unlock()
	if !s.closed {
		s.s.Zero()
		s.closed = true
	}
}

// Sign signs msg with the wrapped private scalar, consuming the handle the
// same way Encrypt and Decrypt do.
func Sign(suite suites.Suite, signer *Secret, msg []byte) ([]byte, error) {
	defer signer.Close()
	priv, err := signer.scalar()
	if err != nil {
		return nil, xerrors.Errorf("acquiring signing key: %w", err)
	}
	sig, err := schnorr.Sign(suite, priv, msg)
	if err != nil {
		return nil, xerrors.Errorf("signing: %w", err)
	}
	return sig, nil
}

// keyFile is the TOML key-pair format the vsadmin tool writes.
type keyFile struct {
	Curve   string `toml:"curve"`
	Private string `toml:"private,omitempty"`
	Public  string `toml:"public"`
}

// SaveKeyPair writes a key pair to a TOML file. The private scalar is only
// included when present.
func SaveKeyPair(path string, suite suites.Suite, curve string, priv kyber.Scalar, pub kyber.Point) error {
	kf := keyFile{Curve: curve}
	var err error
	kf.Public, err = encoding.PointToStringHex(suite, pub)
	if err != nil {
		return xerrors.Errorf("encoding public key: %w", err)
	}
	if priv != nil {
		kf.Private, err = encoding.ScalarToStringHex(suite, priv)
		if err != nil {
			return xerrors.Errorf("encoding private key: %w", err)
		}
	}
	buf, err := tomlMarshal(kf)
	if err != nil {
		return xerrors.Errorf("encoding key file: %w", err)
	}
	return ioutil.WriteFile(path, buf, 0600)
}

func tomlMarshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LoadSecret reads the private part of a key file into a scoped handle.
func LoadSecret(path string, suite suites.Suite) (*Secret, error) {
	var kf keyFile
	if _, err := toml.DecodeFile(path, &kf); err != nil {
		return nil, xerrors.Errorf("decoding key file: %w", err)
	}
	if kf.Private == "" {
		return nil, xerrors.Errorf("%s holds no private key", path)
	}
	priv, err := encoding.StringHexToScalar(suite, kf.Private)
	if err != nil {
		return nil, xerrors.Errorf("decoding private key: %w", err)
	}
	return NewSecret(priv), nil
}

// LoadPublic reads the public part of a key file.
func LoadPublic(path string, suite suites.Suite) (kyber.Point, error) {
	var kf keyFile
	if _, err := toml.DecodeFile(path, &kf); err != nil {
		return nil, xerrors.Errorf("decoding key file: %w", err)
	}
	pub, err := encoding.StringHexToPoint(suite, kf.Public)
	if err != nil {
		return nil, xerrors.Errorf("decoding public key: %w", err)
	}
	return pub, nil
}
