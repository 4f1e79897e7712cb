// Package xerr defines the error taxonomy shared by the packet codec,
// the protocol I/O contexts, and the socket facade: malformed-input
// errors the caller should not retry, and wrapped I/O errors from the
// OS or network. ProtocolExhaustion and ConnectionTimeout are not error
// types here; they are clean state transitions (see fsmsend/fsmrecv).
package xerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// BadInput reports malformed wire bytes, an oversized payload, a
// non-UTF-8 SYN filename, an unsafe basename, or a target path that is
// a regular file where a directory was required.
type BadInput struct {
	Field  string
	Reason string
}

func (e *BadInput) Error() string {
	return fmt.Sprintf("bad input: %s: %s", e.Field, e.Reason)
}

// Input constructs a BadInput error.
func Input(field, reason string) error {
	return &BadInput{Field: field, Reason: reason}
}

// IsBadInput reports whether err (or something it wraps) is a BadInput.
func IsBadInput(err error) bool {
	var b *BadInput
	return errors.As(err, &b)
}

// IO wraps an underlying OS/network error with the operation that
// failed, e.g. xerr.IO("bind", err).
func IO(op string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "io error: %s", op)
}
