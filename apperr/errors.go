// Package apperr defines the error taxonomy the service layer returns to
// the HTTP boundary. Controllers map each kind to a stable status code.
package apperr

import "errors"

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindCapacity
	KindDependency
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "internal error"
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

func Authentication(msg string) error {
	return &Error{Kind: KindAuthentication, Msg: msg}
}

func Authorization(msg string) error {
	return &Error{Kind: KindAuthorization, Msg: msg}
}

func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Msg: msg}
}

func Capacity(msg string) error {
	return &Error{Kind: KindCapacity, Msg: msg}
}

// Dependency wraps a failure of an external collaborator (store, image
// host) so the boundary can report it distinctly from internal bugs.
func Dependency(msg string, err error) error {
	return &Error{Kind: KindDependency, Msg: msg, Err: err}
}

// KindOf extracts the taxonomy kind from err, or KindInternal if err does
// not carry one.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
