package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/ioutil"
	"time"

	"github.com/BurntSushi/toml"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/veilsig"
	"go.dedis.ch/veilsig/artifact"
	"go.dedis.ch/veilsig/manifest"
	"go.dedis.ch/veilsig/prover"
	"go.dedis.ch/veilsig/trustlist"
	"golang.org/x/xerrors"
	cli "gopkg.in/urfave/cli.v1"
)

var cmds = cli.Commands{
	{
		Name:      "keygen",
		Usage:     "generate a key pair on the configured curve",
		ArgsUsage: "output.toml",
		Action:    keygen,
	},
	{
		Name:      "build-trust-list",
		Usage:     "build the Merkle trust list from an allow-list and print its root",
		ArgsUsage: "allowlist.toml",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "out, o",
				Value: "trustlist.bin",
				Usage: "where to save the built list",
			},
		},
		Action: buildTrustList,
	},
	{
		Name:      "encrypt",
		Usage:     "encrypt a payload for a recipient, bound to a document digest",
		ArgsUsage: "payload sender.toml recipient.toml docHash",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "out, o",
				Usage: "basename for ciphertext and metadata (default: payload name)",
			},
			cli.StringFlag{
				Name:  "store",
				Usage: "also record the ciphertext in this content-addressed store",
			},
		},
		Action: encrypt,
	},
	{
		Name:      "decrypt",
		Usage:     "decrypt an artifact using its metadata file",
		ArgsUsage: "metadata.json ciphertext recipient.toml",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "out, o",
				Value: "plaintext.out",
				Usage: "where to write the decrypted payload",
			},
		},
		Action: decrypt,
	},
	{
		Name:      "prove",
		Usage:     "generate a manifest binding a document, an artifact and a trust list",
		ArgsUsage: "docHash ciphertext trustlist.bin signer.toml",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "out, o",
				Value: "manifest.json",
				Usage: "where to write the manifest",
			},
			cli.StringFlag{
				Name:  "signature, s",
				Usage: "file holding the extracted signature (default: sign with the key file)",
			},
			cli.DurationFlag{
				Name:  "timeout",
				Value: 10 * time.Minute,
				Usage: "abort proof generation after this long",
			},
		},
		Action: prove,
	},
	{
		Name:      "verify",
		Usage:     "verify a manifest against an artifact and the expected trust list",
		ArgsUsage: "manifest.json ciphertext trustlist.bin",
		Action:    verify,
	},
}

// allowList is the TOML input of build-trust-list: admitted public keys in
// hex, insertion order significant.
type allowList struct {
	Signers []allowListEntry `toml:"signer"`
}

type allowListEntry struct {
	Public string `toml:"public"`
}

func deployment(c *cli.Context) (veilsig.Config, error) {
	cfg, err := veilsig.LoadConfig(c.GlobalString("config"))
	if err != nil {
		return cfg, xerrors.Errorf("loading deployment config: %w", err)
	}
	return cfg, nil
}

func keygen(c *cli.Context) error {
	if c.NArg() < 1 {
		return xerrors.New("please give: output.toml")
	}
	cfg, err := deployment(c)
	if err != nil {
		return err
	}
	suite, err := veilsig.SuiteFor(cfg.Curve)
	if err != nil {
		return err
	}
	kp := key.NewKeyPair(suite)
	out := c.Args().Get(0)
	if err := artifact.SaveKeyPair(out, suite, string(cfg.Curve), kp.Private, kp.Public); err != nil {
		return veilsig.ErrorOrNil(err, "saving key pair")
	}
	log.Info("Wrote key pair to", out)
	return nil
}

func buildTrustList(c *cli.Context) error {
	if c.NArg() < 1 {
		return xerrors.New("please give: allowlist.toml")
	}
	cfg, err := deployment(c)
	if err != nil {
		return err
	}
	suite, err := veilsig.SuiteFor(cfg.Curve)
	if err != nil {
		return err
	}
	hashNew, err := veilsig.HashFor(cfg.TreeHash)
	if err != nil {
		return err
	}

	var al allowList
	if _, err := toml.DecodeFile(c.Args().Get(0), &al); err != nil {
		return xerrors.Errorf("decoding allow-list: %w", err)
	}
	identities := make([]kyber.Point, len(al.Signers))
	for i, s := range al.Signers {
		buf, err := hex.DecodeString(s.Public)
		if err != nil {
			return xerrors.Errorf("signer %d is not hex: %w", i, err)
		}
		rec, err := trustlist.LeafFromBytes(suite, hashNew, buf)
		if err != nil {
			return xerrors.Errorf("signer %d: %w", i, err)
		}
		identities[i] = rec.Public
	}

	list, err := trustlist.Build(suite, hashNew, identities)
	if err != nil {
		return veilsig.ErrorOrNil(err, "building trust list")
	}
	if err := list.Save(c.String("out"), cfg.Curve, cfg.TreeHash); err != nil {
		return veilsig.ErrorOrNil(err, "saving trust list")
	}
	log.Infof("Built trust list: %d signers, depth %d", list.Len(), list.Depth())
	log.Infof("Root: %x", list.Root())
	return nil
}

func encrypt(c *cli.Context) error {
	if c.NArg() < 4 {
		return xerrors.New("please give: payload sender.toml recipient.toml docHash")
	}
	cfg, err := deployment(c)
	if err != nil {
		return err
	}
	suite, err := veilsig.SuiteFor(cfg.Curve)
	if err != nil {
		return err
	}

	plaintext, err := ioutil.ReadFile(c.Args().Get(0))
	if err != nil {
		return xerrors.Errorf("reading payload: %w", err)
	}
	docHash, err := hex.DecodeString(c.Args().Get(3))
	if err != nil {
		return xerrors.Errorf("decoding document hash: %w", err)
	}
	recipientPub, err := artifact.LoadPublic(c.Args().Get(2), suite)
	if err != nil {
		return err
	}
	sender, err := artifact.LoadSecret(c.Args().Get(1), suite)
	if err != nil {
		return err
	}

	enc, artHash, err := artifact.Encrypt(suite, cfg.Curve, plaintext,
		sender, recipientPub, docHash)
	if err != nil {
		return veilsig.ErrorOrNil(err, "encrypting")
	}

	base := c.String("out")
	if base == "" {
		base = c.Args().Get(0)
	}
	plainSum := sha256.Sum256(plaintext)
	meta, err := artifact.NewMetadata(enc, plainSum[:])
	if err != nil {
		return veilsig.ErrorOrNil(err, "building metadata")
	}
	if err := ioutil.WriteFile(base+".enc", enc.Ciphertext, 0644); err != nil {
		return xerrors.Errorf("writing ciphertext: %w", err)
	}
	if err := meta.Save(base + ".meta.json"); err != nil {
		return veilsig.ErrorOrNil(err, "saving metadata")
	}
	if storePath := c.String("store"); storePath != "" {
		store, err := artifact.NewStore(storePath)
		if err != nil {
			return veilsig.ErrorOrNil(err, "opening store")
		}
		defer store.Close()
		if _, err := store.Put(enc.Ciphertext); err != nil {
			return veilsig.ErrorOrNil(err, "storing artifact")
		}
	}
	log.Infof("Artifact hash: %x", artHash)
	return nil
}

func decrypt(c *cli.Context) error {
	if c.NArg() < 3 {
		return xerrors.New("please give: metadata.json ciphertext recipient.toml")
	}
	meta, err := artifact.LoadMetadata(c.Args().Get(0))
	if err != nil {
		return err
	}
	suite, err := meta.Suite()
	if err != nil {
		return err
	}
	ciphertext, err := ioutil.ReadFile(c.Args().Get(1))
	if err != nil {
		return xerrors.Errorf("reading ciphertext: %w", err)
	}
	enc, err := meta.Encrypted(ciphertext)
	if err != nil {
		return err
	}
	expected, err := meta.OriginalHashBytes()
	if err != nil {
		return err
	}
	recipient, err := artifact.LoadSecret(c.Args().Get(2), suite)
	if err != nil {
		return err
	}

	plaintext, err := artifact.Decrypt(suite, enc, recipient, enc.AAD, expected)
	if err != nil {
		return veilsig.ErrorOrNil(err, "decrypting")
	}
	if err := ioutil.WriteFile(c.String("out"), plaintext, 0644); err != nil {
		return xerrors.Errorf("writing plaintext: %w", err)
	}
	log.Info("Wrote plaintext to", c.String("out"))
	return nil
}

func prove(c *cli.Context) error {
	if c.NArg() < 4 {
		return xerrors.New("please give: docHash ciphertext trustlist.bin signer.toml")
	}
	docHash, err := hex.DecodeString(c.Args().Get(0))
	if err != nil {
		return xerrors.Errorf("decoding document hash: %w", err)
	}
	ciphertext, err := ioutil.ReadFile(c.Args().Get(1))
	if err != nil {
		return xerrors.Errorf("reading ciphertext: %w", err)
	}
	list, curve, hashID, err := trustlist.Load(c.Args().Get(2))
	if err != nil {
		return err
	}
	suite, err := veilsig.SuiteFor(curve)
	if err != nil {
		return err
	}
	hashNew, err := veilsig.HashFor(hashID)
	if err != nil {
		return err
	}

	signerPub, err := artifact.LoadPublic(c.Args().Get(3), suite)
	if err != nil {
		return err
	}
	fp, err := trustlist.EncodeLeaf(suite, hashNew, signerPub)
	if err != nil {
		return err
	}
	mp, err := list.ProveInclusion(fp)
	if err != nil {
		return veilsig.ErrorOrNil(err, "looking up signer")
	}
	rec := list.Record(mp.LeafIndex)

	var signature []byte
	if sigFile := c.String("signature"); sigFile != "" {
		// The signature was extracted from the signed document by the
		// external parser.
		signature, err = ioutil.ReadFile(sigFile)
		if err != nil {
			return xerrors.Errorf("reading signature: %w", err)
		}
	} else {
		signer, err := artifact.LoadSecret(c.Args().Get(3), suite)
		if err != nil {
			return err
		}
		signature, err = artifact.Sign(suite, signer, docHash)
		if err != nil {
			return veilsig.ErrorOrNil(err, "signing document hash")
		}
	}

	// The artifact hash is final before proving starts.
	artHash := artifact.Hash(ciphertext)

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()
	// A real proving engine slots in behind prover.Backend; the stub checks
	// the witness directly.
	backend := prover.NewStubBackend(suite, hashNew)
	m, err := manifest.Build(ctx, backend, docHash, artHash, rec, list.Root(),
		mp, signature)
	if err != nil {
		return veilsig.ErrorOrNil(err, "building manifest")
	}
	if err := m.Save(c.String("out")); err != nil {
		return veilsig.ErrorOrNil(err, "saving manifest")
	}
	log.Info("Wrote manifest to", c.String("out"))
	return nil
}

func verify(c *cli.Context) error {
	if c.NArg() < 3 {
		return xerrors.New("please give: manifest.json ciphertext trustlist.bin")
	}
	m, err := manifest.Load(c.Args().Get(0))
	if err != nil {
		return veilsig.ErrorOrNil(err, "loading manifest")
	}
	ciphertext, err := ioutil.ReadFile(c.Args().Get(1))
	if err != nil {
		return xerrors.Errorf("reading ciphertext: %w", err)
	}
	list, curve, hashID, err := trustlist.Load(c.Args().Get(2))
	if err != nil {
		return err
	}
	suite, err := veilsig.SuiteFor(curve)
	if err != nil {
		return err
	}
	hashNew, err := veilsig.HashFor(hashID)
	if err != nil {
		return err
	}

	backend := prover.NewStubBackend(suite, hashNew)
	report := manifest.Verify(m, ciphertext, list.Root(), backend, nil)
	log.Info("\n" + report.String())
	if !report.Ok() {
		return xerrors.Errorf("verification failed at %v: %w",
			report.FailedAt(), report.Error())
	}
	return nil
}
