package contracts

import "errors"

// Error taxonomy shared by every component. Concrete errors wrap one of these
// with fmt.Errorf("%w: ...") so callers can test with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyInProgress = errors.New("already in progress")
	ErrNetworkFailure    = errors.New("network failure")
	ErrIOFailure         = errors.New("io failure")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInsufficientSpace = errors.New("insufficient space")
	ErrChecksumMismatch  = errors.New("checksum mismatch")
	ErrProtocolViolation = errors.New("protocol violation")
	ErrInvalidManifest   = errors.New("invalid manifest")
	ErrInvalidState      = errors.New("invalid state")
	ErrCancelled         = errors.New("cancelled")
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetworkFailure) || errors.Is(err, ErrIOFailure)
}
