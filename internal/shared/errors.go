package shared

import (
	"errors"
	"fmt"
)

// Error taxonomy shared across modules. Services wrap these with %w so the
// HTTP layer can map them without knowing module internals.
var (
	// ErrValidation indicates missing or malformed input. No state is mutated.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates an unknown entity reference.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a duplicate document number or unique key.
	ErrConflict = errors.New("conflict")
	// ErrConsistency indicates a broken invariant. Treated as fatal: logged,
	// surfaced, never silently clamped.
	ErrConsistency = errors.New("consistency violation")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

// Conflictf wraps ErrConflict with a formatted message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConflict}, args...)...)
}

// Consistencyf wraps ErrConsistency with a formatted message.
func Consistencyf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConsistency}, args...)...)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// UserSafeMessage returns a message suitable for API consumers. Internal
// failures collapse to a generic message.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return err.Error()
	default:
		return "internal error"
	}
}
