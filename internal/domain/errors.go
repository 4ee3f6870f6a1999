package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure, with no infrastructure dependency.

var (
	// Caller input errors (the only class surfaced as a 4xx)
	ErrValidation  = errors.New("invalid research request")
	ErrEmptyQuery  = errors.New("query is required")
	ErrUnknownMode = errors.New("unknown execution mode")

	// Router path errors
	ErrRouterTimeout      = errors.New("router request timed out")
	ErrRouterUnconfigured = errors.New("router URL is not configured")

	// Ledger path errors
	ErrSessionLookup     = errors.New("session lookup failed")
	ErrSessionInactive   = errors.New("session is not active")
	ErrSubmission        = errors.New("task submission failed")
	ErrTaskIDUnknown     = errors.New("queue did not report a task id")
	ErrResultTimeout     = errors.New("no task result before deadline")
	ErrSignerMissing     = errors.New("no signing key configured for ledger writes")
	ErrLedgerUnavailable = errors.New("ledger client not configured")

	// Storage errors
	ErrCacheMiss       = errors.New("cache miss")
	ErrHistoryDisabled = errors.New("research history is disabled")
	ErrResultNotFound  = errors.New("research result not found")
)
