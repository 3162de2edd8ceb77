package models

import (
	"time"

	"github.com/google/uuid"
)

// Reward status enums. A reward has at most one non-terminal transaction:
// the available -> pending flip happens atomically with escrow creation.
const (
	RewardStatusAvailable = "available"
	RewardStatusPending   = "pending"
	RewardStatusRedeemed  = "redeemed"
	RewardStatusExchanged = "exchanged"
)

type Reward struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	// Code is the write-once secret. It is never selected by listing
	// queries and only leaves the server through the reveal operation.
	Code       string     `json:"-"`
	Price      int        `json:"price"`
	Status     string     `json:"status"`
	ImageURL   string     `json:"image_url,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	RedeemedBy *uuid.UUID `json:"redeemed_by,omitempty"`
	RedeemedAt *time.Time `json:"redeemed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
