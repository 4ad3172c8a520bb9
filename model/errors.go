package model

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ErrorKind classifies orchestrator failures. Every error produced by NewError
// matches its kind through errors.Is.
type ErrorKind string

func (k ErrorKind) Error() string {
	return string(k)
}

const (
	ErrProvisioning          ErrorKind = "ProvisioningError"
	ErrStartupTimeout        ErrorKind = "StartupTimeout"
	ErrQuorumNotReached      ErrorKind = "QuorumNotReached"
	ErrDuplicateRegistration ErrorKind = "DuplicateRegistration"
	ErrInconsistentPackageID ErrorKind = "InconsistentPackageId"
	ErrChannelAlreadyExists  ErrorKind = "ChannelAlreadyExists"
	ErrSequenceMismatch      ErrorKind = "SequenceMismatch"
)

type kindError struct {
	kind  ErrorKind
	msg   string
	cause error
}

// NewError tags cause with kind. A nil cause is allowed.
func NewError(kind ErrorKind, cause error, format string, args ...interface{}) error {
	return errors.WithStack(&kindError{
		kind:  kind,
		msg:   errors.Errorf(format, args...).Error(),
		cause: cause,
	})
}

func (e *kindError) Error() string {
	if e.cause == nil {
		return string(e.kind) + ": " + e.msg
	}
	return string(e.kind) + ": " + e.msg + ": " + e.cause.Error()
}

func (e *kindError) Unwrap() error {
	return e.cause
}

func (e *kindError) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.kind
}

// KindOf returns the first ErrorKind found in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return ""
}

// HasKind reports whether err, or any error combined into it, is of kind.
func HasKind(err error, kind ErrorKind) bool {
	for _, e := range multierr.Errors(err) {
		if errors.Is(e, kind) {
			return true
		}
	}
	return false
}
