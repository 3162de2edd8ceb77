package models

import (
	"time"

	"github.com/google/uuid"
)

// Escrow status enums. held and disputed are the only non-terminal
// states; released and refunded are terminal and immutable.
const (
	EscrowStatusHeld     = "held"
	EscrowStatusReleased = "released"
	EscrowStatusDisputed = "disputed"
	EscrowStatusRefunded = "refunded"
)

// Dispute resolutions accepted by the admin endpoint.
const (
	ResolutionRefundBuyer     = "refund_buyer"
	ResolutionReleaseToSeller = "release_to_seller"
)

type Transaction struct {
	ID            uuid.UUID  `json:"id"`
	FromUserID    uuid.UUID  `json:"from_user_id"`
	ToUserID      uuid.UUID  `json:"to_user_id"`
	RewardID      uuid.UUID  `json:"reward_id"`
	Credits       int        `json:"credits"`
	EscrowStatus  string     `json:"escrow_status"`
	RevealedAt    *time.Time `json:"revealed_at,omitempty"`
	DisputeReason string     `json:"dispute_reason,omitempty"`
	EvidenceURL   string     `json:"evidence_url,omitempty"`
	AdminNote     string     `json:"admin_note,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Terminal reports whether the transaction has reached a final state.
func (t *Transaction) Terminal() bool {
	return t.EscrowStatus == EscrowStatusReleased || t.EscrowStatus == EscrowStatusRefunded
}
