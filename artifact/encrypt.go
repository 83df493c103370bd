// Package artifact encrypts payloads for a single recipient and commits to
// the result. The commitment is the digest of the ciphertext, never of the
// plaintext, so a verifier can check the binding without being able to read
// the payload.
//
// Encryption is ECIES-style: an ECDH shared secret between the sender's
// private key and the recipient's public key is expanded through HKDF into a
// ChaCha20-Poly1305 key, and the document digest rides along as additional
// authenticated data. Decrypting with the right key but against the wrong
// document fails authentication instead of yielding garbage.
package artifact

import (
	"crypto/sha256"
	"crypto/subtle"
	"io"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/suites"
	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/veilsig"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/xerrors"
)

// Algorithm identifies the only AEAD cipher currently implemented.
const Algorithm = "chacha20poly1305"

// kdfContext salts the HKDF expansion so keys derived for other protocols
// from the same ECDH secret cannot collide with ours.
const kdfContext = "veilsig/artifact/v1/"

// ErrAuthentication is returned when the AEAD tag check fails: tampered
// ciphertext, wrong key, or wrong document digest.
var ErrAuthentication = xerrors.New("artifact authentication failed")

// ErrIntegrityMismatch is returned when the decrypted plaintext does not
// match the expected digest supplied by the caller.
var ErrIntegrityMismatch = xerrors.New("plaintext integrity mismatch")

// Encrypted is an encrypted artifact together with everything a recipient
// needs to decrypt it. It carries no private key material.
type Encrypted struct {
	Ciphertext []byte
	// Nonce is the 12-byte AEAD nonce; the auth tag is embedded at the end
	// of Ciphertext.
	Nonce     []byte
	SenderPub kyber.Point
	Curve     veilsig.CurveID
	Algorithm string
	// AAD is the document digest the ciphertext is bound to.
	AAD []byte
}

// Hash returns the public commitment to a ciphertext.
func Hash(ciphertext []byte) []byte {
	sum := sha256.Sum256(ciphertext)
	return sum[:]
}

// Encrypt seals the plaintext for the recipient and binds it to docHash. The
// sender handle is consumed: the private scalar is zeroed before Encrypt
// returns on every path. The returned artifact hash commits to the
// ciphertext.
func Encrypt(suite suites.Suite, curve veilsig.CurveID, plaintext []byte,
	sender *Secret, recipientPub kyber.Point, docHash []byte) (*Encrypted, []byte, error) {
	defer sender.Close()

	priv, err := sender.scalar()
	if err != nil {
		return nil, nil, xerrors.Errorf("acquiring sender key: %w", err)
	}
	senderPub := suite.Point().Mul(priv, nil)

	key, err := deriveKey(suite, curve, priv, recipientPub)
	if err != nil {
		return nil, nil, err
	}
	defer wipe(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, xerrors.Errorf("creating cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	random.Bytes(nonce, suite.RandomStream())

	aad := append([]byte{}, docHash...)
	ciphertext := aead.Seal(nil, nonce, plaintext, aad)

	enc := &Encrypted{
		Ciphertext: ciphertext,
		Nonce:      nonce,
		SenderPub:  senderPub,
		Curve:      curve,
		Algorithm:  Algorithm,
		AAD:        aad,
	}
	return enc, Hash(ciphertext), nil
}

// Decrypt opens the artifact using the recipient's private key and the
// document digest it was bound to. The recipient handle is consumed. When
// expectedHash is non-nil the plaintext digest is checked against it and a
// mismatch fails with ErrIntegrityMismatch; authentication failures fail with
// ErrAuthentication and never return partial plaintext.
func Decrypt(suite suites.Suite, enc *Encrypted, recipient *Secret,
	docHash, expectedHash []byte) ([]byte, error) {
	defer recipient.Close()

	if enc.Algorithm != "" && enc.Algorithm != Algorithm {
		return nil, xerrors.Errorf("unsupported algorithm %q", enc.Algorithm)
	}
	priv, err := recipient.scalar()
	if err != nil {
		return nil, xerrors.Errorf("acquiring recipient key: %w", err)
	}
	key, err := deriveKey(suite, enc.Curve, priv, enc.SenderPub)
	if err != nil {
		return nil, err
	}
	defer wipe(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, xerrors.Errorf("creating cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, enc.Nonce, enc.Ciphertext, docHash)
	if err != nil {
		return nil, xerrors.Errorf("opening ciphertext: %v: %w", err, ErrAuthentication)
	}
	if expectedHash != nil {
		sum := sha256.Sum256(plaintext)
		if subtle.ConstantTimeCompare(sum[:], expectedHash) != 1 {
			return nil, xerrors.Errorf("plaintext hashes to %x, want %x: %w",
				sum[:], expectedHash, ErrIntegrityMismatch)
		}
	}
	return plaintext, nil
}

// deriveKey runs the ECDH and expands the shared point into a symmetric key.
// The expansion info ties the key to the curve family and cipher, so the same
// key pair used under another configuration derives an unrelated key.
func deriveKey(suite suites.Suite, curve veilsig.CurveID, priv kyber.Scalar,
	pub kyber.Point) ([]byte, error) {
	shared := suite.Point().Mul(priv, pub)
	sharedBuf, err := shared.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("marshalling shared secret: %w", err)
	}
	defer wipe(sharedBuf)

	info := []byte(kdfContext + string(curve) + "/" + Algorithm)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, sharedBuf, nil, info), key); err != nil {
		return nil, xerrors.Errorf("deriving key: %w", err)
	}
	return key, nil
}

func wipe(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
