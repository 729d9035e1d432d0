package domain

import "errors"

var (
	// ErrInvalidArgument is returned before anything reaches the ledger.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnauthenticated means a write was attempted without a signing account.
	ErrUnauthenticated = errors.New("no connected account")
	// ErrConnection covers a missing or unreachable ledger endpoint.
	ErrConnection = errors.New("ledger connection unavailable")
	// ErrRemote covers reverts, malformed responses and timeouts.
	ErrRemote = errors.New("ledger call failed")
	// ErrInsufficientGeometry: fewer than two valid points to draw a route.
	ErrInsufficientGeometry = errors.New("not enough valid coordinates for a route")
)
