package common

import "errors"

// Error kinds shared by every ledger. Module errors wrap one of these so
// callers (and the HTTP gateway) can classify a failure with errors.Is.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrNotOwner           = errors.New("not owner")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidCount       = errors.New("invalid count")
	ErrInvalidRecipient   = errors.New("invalid recipient")
)

// PreconditionError reports a lifecycle or configuration dependency that was
// not met. It matches ErrPreconditionFailed as well as itself.
type PreconditionError struct {
	Module string
	Reason string
}

// Precondition builds a reusable precondition value for module.
func Precondition(module, reason string) *PreconditionError {
	return &PreconditionError{Module: module, Reason: reason}
}

func (e *PreconditionError) Error() string {
	if e.Module == "" {
		return ErrPreconditionFailed.Error() + ": " + e.Reason
	}
	return e.Module + ": " + ErrPreconditionFailed.Error() + ": " + e.Reason
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPreconditionFailed
}

// Reason extracts the precondition reason from err, if any.
func Reason(err error) (string, bool) {
	var pe *PreconditionError
	if errors.As(err, &pe) {
		return pe.Reason, true
	}
	return "", false
}
