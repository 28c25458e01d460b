package ledger

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes ledger errors.
type ErrorCode string

const (
	// CodeValidation indicates malformed input rejected before touching the log.
	CodeValidation ErrorCode = "VALIDATION"

	// CodeConsistency indicates a balance-chain mismatch on append.
	// The append is refused and the log is unchanged.
	CodeConsistency ErrorCode = "CONSISTENCY"

	// CodeConflict indicates a race on a same-account append. Conflicts are
	// retried with re-validation up to a bounded count before surfacing.
	CodeConflict ErrorCode = "CONCURRENCY_CONFLICT"

	// CodeNotFound indicates an unresolvable account reference.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodePersistence indicates the storage backend failed after retries.
	// Prior committed state is never affected.
	CodePersistence ErrorCode = "PERSISTENCE"
)

// Error is a structured ledger error with a code for dispatch and
// optional detail fields for diagnostics.
type Error struct {
	Code      ErrorCode
	Message   string
	AccountID string
	Details   map[string]string
	Err       error // wrapped cause, optional
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.AccountID != "" {
		return fmt.Sprintf("%s: %s (account=%s)", e.Code, e.Message, e.AccountID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewValidationError creates a VALIDATION error.
func NewValidationError(message, accountID string) *Error {
	return &Error{Code: CodeValidation, Message: message, AccountID: accountID}
}

// NewConsistencyError creates a CONSISTENCY error for a chain mismatch.
func NewConsistencyError(accountID, expected, got string) *Error {
	return &Error{
		Code:      CodeConsistency,
		Message:   "balance_before does not chain onto the account tail",
		AccountID: accountID,
		Details:   map[string]string{"expected_before": expected, "got_before": got},
	}
}

// NewConflictError creates a CONCURRENCY_CONFLICT error.
func NewConflictError(accountID string, attempts int) *Error {
	return &Error{
		Code:      CodeConflict,
		Message:   fmt.Sprintf("append raced with a concurrent writer (%d attempts)", attempts),
		AccountID: accountID,
	}
}

// NewNotFoundError creates a NOT_FOUND error.
func NewNotFoundError(ref string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("account reference %q did not resolve", ref),
	}
}

// NewPersistenceError wraps a storage failure.
func NewPersistenceError(message string, err error) *Error {
	return &Error{Code: CodePersistence, Message: message, Err: err}
}

// hasCode reports whether err is or wraps a ledger Error with the code.
func hasCode(err error, code ErrorCode) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

// IsValidation reports whether err is a validation rejection.
func IsValidation(err error) bool { return hasCode(err, CodeValidation) }

// IsConsistency reports whether err is a balance-chain rejection.
func IsConsistency(err error) bool { return hasCode(err, CodeConsistency) }

// IsConflict reports whether err is an exhausted concurrency conflict.
func IsConflict(err error) bool { return hasCode(err, CodeConflict) }

// IsNotFound reports whether err is an unresolved account reference.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsPersistence reports whether err is a storage failure.
func IsPersistence(err error) bool { return hasCode(err, CodePersistence) }
