package svcerr

import "errors"

// Business outcomes a caller can react to. Anything not wrapping one of these is an infrastructure fault.
var (
	ErrValidation        = errors.New("validation error")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrAlreadySettled    = errors.New("round already settled")
	ErrRoundNotOpen      = errors.New("round not open")
	ErrInvalidTransition = errors.New("invalid bet status transition")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("invalid credentials")
)

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports state-machine violations, including an already settled round.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrAlreadySettled) || errors.Is(err, ErrInvalidTransition)
}

func IsAlreadySettled(err error) bool {
	return errors.Is(err, ErrAlreadySettled)
}

func IsRoundNotOpen(err error) bool {
	return errors.Is(err, ErrRoundNotOpen)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsBusiness reports whether err is a routine, caller-visible outcome rather than a fault.
func IsBusiness(err error) bool {
	return IsValidation(err) || IsInsufficientFunds(err) || IsNotFound(err) ||
		IsConflict(err) || IsRoundNotOpen(err) || IsForbidden(err) || IsUnauthorized(err)
}
