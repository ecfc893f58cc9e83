// Package dnserrors defines the error taxonomy of the registry backend and
// sync loop: connection failures, lock timeouts, per-entry parse failures,
// and unsupported record variants. Callers use errors.Is/errors.As against
// the sentinel values below rather than string matching.
package dnserrors

import "fmt"

// Sentinel errors identifying the taxonomy a caller can match on with
// errors.Is. The constructors below wrap these with context via %w.
var (
	// ErrConnection marks registry connectivity failures. Fatal at
	// construction; logged and retried on the next tick at runtime.
	ErrConnection = fmt.Errorf("registry connection error")

	// ErrLockTimeout marks a lock acquisition that exceeded its timeout.
	// Surfaced to callers as a connection-class error.
	ErrLockTimeout = fmt.Errorf("lock acquisition timed out")

	// ErrUnsupportedRecordType marks an intent whose record variant the
	// registry encoder does not know how to serialize.
	ErrUnsupportedRecordType = fmt.Errorf("unsupported record type")

	// ErrParse marks a stored registry entry that failed to decode.
	// Never fatal to a list() scan -- the offending entry is skipped.
	ErrParse = fmt.Errorf("malformed registry entry")
)

// ConnectionError wraps ErrConnection with the underlying cause.
func ConnectionError(cause error) error {
	return fmt.Errorf("connect to registry: %w: %w", ErrConnection, cause)
}

// LockTimeoutError wraps ErrLockTimeout for a specific lock key.
func LockTimeoutError(key string, cause error) error {
	return fmt.Errorf("acquire lock %q: %w: %w", key, ErrLockTimeout, cause)
}

// UnsupportedRecordTypeError wraps ErrUnsupportedRecordType for a record type value.
func UnsupportedRecordTypeError(recordType string) error {
	return fmt.Errorf("record type %q: %w", recordType, ErrUnsupportedRecordType)
}

// ParseError wraps ErrParse for a specific registry key.
func ParseError(key string, cause error) error {
	return fmt.Errorf("parse entry %q: %w: %w", key, ErrParse, cause)
}
