package engine

import "github.com/cockroachdb/errors"

var (
	// ErrEngineClosed is returned when operations are performed on a closed engine
	ErrEngineClosed = errors.New("engine is closed")
	// ErrKeyNotFound is returned when a key is not found
	ErrKeyNotFound = errors.New("key not found")
	// ErrEmptyKey is returned for writes and reads with an empty key
	ErrEmptyKey = errors.New("key cannot be empty")
	// ErrEmptyValue is returned by Put for an empty value, which is reserved
	// for tombstones
	ErrEmptyValue = errors.New("value cannot be empty")
	// ErrEntryTooLarge is returned when a key or value cannot be length-prefixed
	ErrEntryTooLarge = errors.New("entry too large")
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

func isInvalidInput(err error) bool {
	return errors.IsAny(err, ErrEmptyKey, ErrEmptyValue, ErrEntryTooLarge)
}
