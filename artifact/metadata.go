package artifact

import (
	"encoding/hex"
	"encoding/json"
	"io/ioutil"

	"go.dedis.ch/kyber/v3/suites"
	"go.dedis.ch/veilsig"
	"golang.org/x/xerrors"
)

// Metadata is the persisted companion of an encrypted artifact. It carries
// everything a recipient needs besides their private key and the ciphertext
// itself, and never any secret material.
type Metadata struct {
	IV              string `json:"iv"`
	AAD             string `json:"aad"`
	SenderPublicKey string `json:"senderPublicKey"`
	Curve           string `json:"curve"`
	Algorithm       string `json:"algorithm"`
	EncryptedSize   int    `json:"encryptedSize"`
	// OriginalHash is the digest of the plaintext, used for the optional
	// post-decryption integrity check.
	OriginalHash string `json:"originalHash"`
}

// NewMetadata captures the decryption parameters of an encrypted artifact.
// originalHash is the plaintext digest.
func NewMetadata(enc *Encrypted, originalHash []byte) (*Metadata, error) {
	pubBuf, err := enc.SenderPub.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("marshalling sender key: %w", err)
	}
	return &Metadata{
		IV:              hex.EncodeToString(enc.Nonce),
		AAD:             hex.EncodeToString(enc.AAD),
		SenderPublicKey: hex.EncodeToString(pubBuf),
		Curve:           string(enc.Curve),
		Algorithm:       enc.Algorithm,
		EncryptedSize:   len(enc.Ciphertext),
		OriginalHash:    hex.EncodeToString(originalHash),
	}, nil
}

// Save writes the metadata as JSON.
func (m *Metadata) Save(path string) error {
	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return xerrors.Errorf("encoding metadata: %w", err)
	}
	return ioutil.WriteFile(path, buf, 0644)
}

// LoadMetadata reads a metadata file.
func LoadMetadata(path string) (*Metadata, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("reading metadata: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(buf, &m); err != nil {
		return nil, xerrors.Errorf("decoding metadata: %w", err)
	}
	return &m, nil
}

// Encrypted reassembles the Encrypted value from the metadata and a
// ciphertext. The ciphertext length must match the recorded size.
func (m *Metadata) Encrypted(ciphertext []byte) (*Encrypted, error) {
	if len(ciphertext) != m.EncryptedSize {
		return nil, xerrors.Errorf("ciphertext is %d bytes, metadata says %d",
			len(ciphertext), m.EncryptedSize)
	}
	curve := veilsig.CurveID(m.Curve)
	suite, err := veilsig.SuiteFor(curve)
	if err != nil {
		return nil, xerrors.Errorf("loading metadata curve: %w", err)
	}
	nonce, err := hex.DecodeString(m.IV)
	if err != nil {
		return nil, xerrors.Errorf("decoding iv: %w", err)
	}
	aad, err := hex.DecodeString(m.AAD)
	if err != nil {
		return nil, xerrors.Errorf("decoding aad: %w", err)
	}
	pubBuf, err := hex.DecodeString(m.SenderPublicKey)
	if err != nil {
		return nil, xerrors.Errorf("decoding sender key: %w", err)
	}
	pub := suite.Point()
	if err := pub.UnmarshalBinary(pubBuf); err != nil {
		return nil, xerrors.Errorf("unmarshalling sender key: %w", err)
	}
	return &Encrypted{
		Ciphertext: ciphertext,
		Nonce:      nonce,
		SenderPub:  pub,
		Curve:      curve,
		Algorithm:  m.Algorithm,
		AAD:        aad,
	}, nil
}

// OriginalHashBytes decodes the recorded plaintext digest, or nil when the
// metadata does not carry one.
func (m *Metadata) OriginalHashBytes() ([]byte, error) {
	if m.OriginalHash == "" {
		return nil, nil
	}
	sum, err := hex.DecodeString(m.OriginalHash)
	if err != nil {
		return nil, xerrors.Errorf("decoding original hash: %w", err)
	}
	return sum, nil
}

// Suite returns the kyber suite for the metadata's curve family.
func (m *Metadata) Suite() (suites.Suite, error) {
	return veilsig.SuiteFor(veilsig.CurveID(m.Curve))
}
