package veilsig

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func badDeployment() error {
	_, err := SuiteFor("P-521")
	return ErrorOrNil(err, "loading deployment config")
}

func TestErrorOrNil(t *testing.T) {
	require.Nil(t, ErrorOrNil(nil, "loading deployment config"))

	err := badDeployment()
	require.Equal(t,
		`loading deployment config: unknown curve family "P-521"`,
		err.Error())
}

// The stack trace under %+v must show where the failure was wrapped, not
// only where the library created it.
func TestErrorOrNil_StackTrace(t *testing.T) {
	err := badDeployment()
	require.Contains(t, fmt.Sprintf("%+v", err), ".badDeployment")
}

// Sentinels must survive the wrapping so callers can still match on them.
func TestErrorOrNil_Unwrap(t *testing.T) {
	sentinel := xerrors.New("no private key")
	err := ErrorOrNil(xerrors.Errorf("decoding key file: %w", sentinel),
		"loading signer")
	require.True(t, xerrors.Is(err, sentinel))
	require.False(t, xerrors.Is(err, xerrors.New("no private key")))
}
