package veilsig

import (
	"fmt"

	"golang.org/x/xerrors"
)

// opError names the operation that failed and remembers the frame of the
// caller, so "%+v" points at the place in the tool where the failure was
// wrapped instead of deep inside a library.
type opError struct {
	op    string
	err   error
	frame xerrors.Frame
}

// ErrorOrNil wraps err with the name of the failing operation, or passes a
// nil error through unchanged. Sentinels stay reachable through the wrapper
// with xerrors.Is.
func ErrorOrNil(err error, op string) error {
	if err == nil {
		return nil
	}
	return &opError{
		op:    op,
		err:   err,
		frame: xerrors.Caller(1),
	}
}

func (e *opError) Error() string {
	return e.op + ": " + e.err.Error()
}

// Unwrap returns the wrapped error.
func (e *opError) Unwrap() error {
	return e.err
}

// Format prints the error, with the stack trace under "%+v".
func (e *opError) Format(f fmt.State, c rune) {
	xerrors.FormatError(e, f, c)
}

// FormatError implements xerrors.Formatter.
func (e *opError) FormatError(p xerrors.Printer) error {
	p.Printf("%s: %v", e.op, e.err)
	if p.Detail() {
		e.frame.Format(p)
		p.Printf("%+v", e.err)
	}
	return nil
}
