package veilsig

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSuiteFor(t *testing.T) {
	s, err := SuiteFor(CurveEd25519)
	require.NoError(t, err)
	require.Equal(t, "Ed25519", s.String())

	// Empty selects the default.
	s, err = SuiteFor("")
	require.NoError(t, err)
	require.Equal(t, Suite, s)

	_, err = SuiteFor("P-521")
	require.Error(t, err)
}

func TestHashFor(t *testing.T) {
	for _, id := range []HashID{HashSHA256, HashSHA3, ""} {
		hashNew, err := HashFor(id)
		require.NoError(t, err)
		require.Equal(t, 32, hashNew().Size())
	}

	// The two hashes must not agree, otherwise the config parameter would
	// be meaningless.
	h1, _ := HashFor(HashSHA256)
	h2, _ := HashFor(HashSHA3)
	a, b := h1(), h2()
	a.Write([]byte("x"))
	b.Write([]byte("x"))
	require.NotEqual(t, a.Sum(nil), b.Sum(nil))

	_, err := HashFor("md5")
	require.Error(t, err)
}

func TestConfig_SaveLoad(t *testing.T) {
	dir, err := ioutil.TempDir("", "veilsig")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "config.toml")

	// Missing file yields the defaults.
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)

	cfg.TreeHash = HashSHA3
	require.NoError(t, cfg.Save(path))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	// Unknown parameters are rejected at load time.
	require.NoError(t, ioutil.WriteFile(path, []byte(`curve = "P-521"`), 0644))
	_, err = LoadConfig(path)
	require.Error(t, err)
}
