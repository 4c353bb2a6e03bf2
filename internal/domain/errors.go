package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrFeedNotFound means the oracle table has no row for the feed.
	ErrFeedNotFound = errors.New("oracle feed not found")
	// ErrMissingAggregate means the feed row exists but carries no aggregated value.
	ErrMissingAggregate = errors.New("oracle feed has no aggregate")
	// ErrStaleState means a wager is no longer in the state it was selected for.
	ErrStaleState = errors.New("wager state changed since enumeration")
	// ErrInsufficientFunds means the available balance is below the minimum stake.
	ErrInsufficientFunds = errors.New("insufficient funds for minimum stake")
	// ErrWagerNotFound means the ledger returned no row for a wager id.
	ErrWagerNotFound = errors.New("wager not found")
)

// TransportError is a failed remote call after retries and failover.
type TransportError struct {
	Endpoint string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s failed after %d attempts: %v", e.Endpoint, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError reports malformed collaborator output or configuration.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// IsOracleDataError reports whether err means the price is unavailable.
func IsOracleDataError(err error) bool {
	return errors.Is(err, ErrFeedNotFound) || errors.Is(err, ErrMissingAggregate)
}
