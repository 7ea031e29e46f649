/*
errors.go - Centralized error types for the document store

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Artifact errors - NotInitialized, CorruptState (fatal until an operator acts)
  2. Persist errors - PersistFailure, ConcurrentModification (caller may retry)
  3. Record errors - InvalidRecord, Duplicate (bad input, nothing was written)

NOT FOUND:
  There is no not-found error. Get/Update return (zero, false, nil) and
  Delete returns false when the id is absent; an empty result is a normal
  outcome.

USAGE:
  rec, err := repo.Create(ctx, emp)
  if errors.Is(err, generic.ErrPersistFailure) {
      // in-memory change was rolled back; disk still holds the previous state
  }

SEE ALSO:
  - store.go: Produces artifact and persist errors
  - repository.go: Produces record errors
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotInitialized is returned when the backing artifact does not exist.
	// The store never creates an empty artifact on its own; seed it first.
	ErrNotInitialized = errors.New("store not initialized: backing artifact missing")

	// ErrCorruptState is returned when the artifact exists but cannot be
	// parsed into the registered collections.
	ErrCorruptState = errors.New("corrupt state")

	// ErrPersistFailure is returned when the full-state save did not complete.
	ErrPersistFailure = errors.New("persist failure")

	// ErrConcurrentModification is returned when the artifact was rewritten by
	// someone else since this process last read or wrote it.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInvalidRecord is returned when a record fails collection validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrDuplicate is returned when a record violates a uniqueness rule.
	ErrDuplicate = errors.New("duplicate value")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// CorruptStateError names the part of the artifact that failed to decode.
type CorruptStateError struct {
	Collection string // "" for the document itself, "metadata" for the metadata block
	Err        error
}

func (e *CorruptStateError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("corrupt state: %v", e.Err)
	}
	return fmt.Sprintf("corrupt state in %q: %v", e.Collection, e.Err)
}

func (e *CorruptStateError) Unwrap() []error { return []error{ErrCorruptState, e.Err} }

// PersistError reports a save that did not reach the backing artifact.
// The store rolls the triggering change back before returning it, so the
// in-memory snapshot and the artifact agree again.
type PersistError struct {
	Collection string
	Op         string
	ID         int64
	Err        error
}

func (e *PersistError) Error() string {
	where := e.Collection
	if e.Op != "" {
		where += " " + e.Op
	}
	if e.ID != 0 {
		where += fmt.Sprintf(" id=%d", e.ID)
	}
	if where == "" {
		return fmt.Sprintf("persist failure (change rolled back): %v", e.Err)
	}
	return fmt.Sprintf("persist failure on %s (change rolled back): %v", where, e.Err)
}

func (e *PersistError) Unwrap() []error { return []error{ErrPersistFailure, e.Err} }

// RecordError reports a rejected create or update.
type RecordError struct {
	Collection string
	Op         string
	ID         int64
	Err        error
}

func (e *RecordError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("%s %s id=%d: %v", e.Collection, e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Collection, e.Op, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Invalid builds an ErrInvalidRecord for validators.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...))
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistFailure) && !errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRecord) || errors.Is(err, ErrDuplicate)
}

// IsFatal returns true for artifact errors that need an operator.
func IsFatal(err error) bool {
	return errors.Is(err, ErrNotInitialized) || errors.Is(err, ErrCorruptState)
}
