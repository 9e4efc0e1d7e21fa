/*
errors.go - Centralized error types for the debt book

PURPOSE:
  All domain error kinds in one place. The conversation engine switches on
  these to decide whether to re-prompt (validation), end the flow with a
  specific message (duplicate, not-found), or end with a generic failure
  (anything else, treated as a storage error).

ERROR CATEGORIES:
  1. Validation errors - malformed user input, always locally recoverable
  2. Duplicate errors  - phone already registered, carries the existing client
  3. Not-found errors  - referenced client/receipt vanished
  4. Storage errors    - any other failure from a Store implementation

USAGE:
  var dup *ledger.DuplicateClientError
  if errors.As(err, &dup) {
      // surface dup.Existing.Name to the user
  }

SEE ALSO:
  - store.go: which operations return which errors
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrClientNotFound is returned when a referenced client doesn't exist.
	ErrClientNotFound = errors.New("client not found")

	// ErrReceiptNotFound is returned when a referenced receipt doesn't exist,
	// including the case where it was deleted concurrently.
	ErrReceiptNotFound = errors.New("receipt not found")

	// ErrDuplicatePhone is returned when creating a client whose normalized
	// phone is already registered.
	ErrDuplicatePhone = errors.New("phone already registered")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicateClientError reports a phone uniqueness violation and surfaces the
// client that already owns the phone.
type DuplicateClientError struct {
	Existing Client
}

func (e *DuplicateClientError) Error() string {
	return fmt.Sprintf("phone %s already registered to client %q (id %d)",
		e.Existing.Phone, e.Existing.Name, e.Existing.ID)
}

func (e *DuplicateClientError) Unwrap() error {
	return ErrDuplicatePhone
}

// ValidationError reports malformed user input. The conversation engine never
// terminates a flow on a ValidationError; it re-prompts in the same state.
type ValidationError struct {
	Field  string // "name", "phone", "amount", "days"
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing client or receipt.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrClientNotFound) || errors.Is(err, ErrReceiptNotFound)
}

// IsDuplicate reports whether the error is a phone uniqueness violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicatePhone)
}

// IsValidation reports whether the error is recoverable by re-prompting.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
