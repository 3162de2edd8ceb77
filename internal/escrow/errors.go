package escrow

import (
	"errors"

	"github.com/rewardex/backend/internal/repository"
)

// ErrInsufficientFunds is returned when the buyer's available balance
// is below the reward price.
var ErrInsufficientFunds = repository.ErrInsufficientFunds

var (
	// ErrNotFound is returned for unknown transaction or reward ids.
	ErrNotFound = errors.New("not found")

	// ErrRewardUnavailable is returned when the reward is not open for
	// purchase (already pending, redeemed, or exchanged).
	ErrRewardUnavailable = errors.New("reward unavailable")

	// ErrSelfPurchase is returned when a buyer targets their own reward.
	ErrSelfPurchase = errors.New("cannot purchase own reward")

	// ErrNotAuthorized is returned when the requester is not the actor
	// the operation belongs to.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrInvalidState is returned when the transaction is not in the
	// single legal predecessor state for the operation.
	ErrInvalidState = errors.New("invalid transaction state")

	// ErrRevealExpired is returned for reveals past the reveal window.
	ErrRevealExpired = errors.New("reveal window expired")

	// ErrMissingReason is returned when a dispute carries no reason.
	ErrMissingReason = errors.New("dispute reason required")

	// ErrMissingEvidence is returned when a dispute carries no evidence.
	ErrMissingEvidence = errors.New("dispute evidence required")

	// ErrInvalidResolution is returned for unknown dispute resolutions.
	ErrInvalidResolution = errors.New("invalid resolution")
)
