package veilsig

import (
	"os"

	"github.com/BurntSushi/toml"
	"golang.org/x/xerrors"
)

// Config holds the per-deployment parameters that every participant must
// agree on out of band. A verifier configured with a different curve or tree
// hash than the prover will reject every manifest, which is the intended
// failure mode.
type Config struct {
	Curve    CurveID `toml:"curve"`
	TreeHash HashID  `toml:"tree_hash"`
	// AEAD is informational for now - chacha20poly1305 is the only cipher
	// the artifact package implements.
	AEAD string `toml:"aead"`
}

// DefaultConfig returns the canonical deployment parameters.
func DefaultConfig() Config {
	return Config{
		Curve:    CurveEd25519,
		TreeHash: HashSHA256,
		AEAD:     "chacha20poly1305",
	}
}

// LoadConfig reads a deployment configuration, filling unset fields with the
// defaults. A missing file is not an error and yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, xerrors.Errorf("decoding config: %w", err)
	}
	if _, err := SuiteFor(cfg.Curve); err != nil {
		return cfg, xerrors.Errorf("checking config: %w", err)
	}
	if _, err := HashFor(cfg.TreeHash); err != nil {
		return cfg, xerrors.Errorf("checking config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the given path.
func (c Config) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return xerrors.Errorf("creating config: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return xerrors.Errorf("encoding config: %w", err)
	}
	return nil
}
