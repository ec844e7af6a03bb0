package identity

import "github.com/pkg/errors"

var (
	// ErrInvalidRequest is returned when an observation carries neither an email nor a phone number
	ErrInvalidRequest = errors.New("invalid request: email or phoneNumber is required")
	// ErrNotFound is returned by Store.FindByID for an unknown or tombstoned id.
	// The engine absorbs it and never returns it to callers.
	ErrNotFound = errors.New("contact not found")
	// ErrStorageUnavailable marks failures of the backing store or lock.
	// Callers see it wrapped with the failing operation.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrLockLost is the cancel cause of a held lock context whose lease expired or was taken over
	ErrLockLost = errors.New("lock lost")
)

// IsInvalidRequest reports whether err is, or wraps, ErrInvalidRequest
func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}

// IsNotFound reports whether err is, or wraps, ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStorageUnavailable reports whether err is, or wraps, ErrStorageUnavailable
func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// StorageError wraps a backend failure as ErrStorageUnavailable, keeping the cause in the message
func StorageError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if IsStorageUnavailable(err) {
		return errors.Wrap(err, operation)
	}
	return errors.Wrapf(ErrStorageUnavailable, "%s: %v", operation, err)
}
