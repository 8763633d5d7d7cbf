package errorsx

import (
	"errors"
	"fmt"
)

// reasoned tags an error with a code from the failure taxonomy. The tag rides
// the Unwrap chain so call sites can branch on it without string matching.
type reasoned struct {
	code ReasonCode
	err  error
}

func (e *reasoned) Error() string { return fmt.Sprintf("%s: %v", e.code, e.err) }

func (e *reasoned) Unwrap() error { return e.err }

// Wrap tags err with code. A nil err stays nil; an error that already carries
// a code keeps its original one so the outermost cause wins.
func Wrap(err error, code ReasonCode) error {
	if err == nil {
		return nil
	}
	var tagged *reasoned
	if errors.As(err, &tagged) {
		return err
	}
	return &reasoned{code: code, err: err}
}

// Reason returns the code attached to err, or ReasonUnknown when none is.
func Reason(err error) ReasonCode {
	var tagged *reasoned
	if errors.As(err, &tagged) {
		return tagged.code
	}
	return ReasonUnknown
}

// HasReason reports whether err carries the given code.
func HasReason(err error, code ReasonCode) bool {
	return err != nil && Reason(err) == code
}
