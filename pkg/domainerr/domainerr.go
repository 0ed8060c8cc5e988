// Package domainerr defines the error kinds shared by every domain package.
//
// Domain packages declare their own sentinel codes bound to a kind:
//
//	var ErrContractNotFound = domainerr.New(domainerr.ErrNotFound, "contract_not_found")
//
// Callers may match either the sentinel or its kind with errors.Is.
package domainerr

import "errors"

var (
	ErrValidation        = errors.New("validation_error")
	ErrNotFound          = errors.New("not_found")
	ErrConflict          = errors.New("conflict")
	ErrInconsistentState = errors.New("inconsistent_state")
)

// Error is a domain error code classified under one of the kinds above.
type Error struct {
	Kind error
	Code string
}

// New returns a sentinel error for code classified as kind.
func New(kind error, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

func (e *Error) Error() string {
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// KindOf returns the kind of err, or nil when err is not classified.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrInconsistentState} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// CodeOf returns the code of the first domain error in err's chain.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) && de != nil {
		return de.Code
	}
	return ""
}
