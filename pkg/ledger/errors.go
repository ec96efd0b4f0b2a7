package ledger

import "errors"

var (
	// ErrLedgerUnavailable wraps transport failures and call timeouts. Retryable.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrRecordNotFound marks a queried id that does not resolve. Expected and
	// skippable during enumeration; surfaced as not-found on direct requests.
	ErrRecordNotFound = errors.New("record not found")

	// ErrUnauthorized is a ledger-rejected write. Never retried automatically:
	// a retry would resubmit the same invalid transition.
	ErrUnauthorized = errors.New("unauthorized")
)
