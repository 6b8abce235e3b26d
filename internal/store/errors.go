package store

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceIdentityMismatch is returned by Set for a record owned by
	// another device.
	ErrDeviceIdentityMismatch = errors.New("record belongs to another device")

	// ErrPersistenceWriteFailure matches every *PersistenceError.
	ErrPersistenceWriteFailure = errors.New("persistence write failed")

	// ErrMalformedImportKey is returned by ImportAll for a key that fits
	// neither storage schema. The batch is rejected without writing anything.
	ErrMalformedImportKey = errors.New("malformed import key")
)

// PersistenceError reports a failed flush. The cached record is kept so the
// next flush retries it.
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage error writing %s: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistenceWriteFailure
}
