package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry_type enums. Every balance-mutating escrow operation
// writes one entry per affected account in the same database transaction.
const (
	LedgerEntryEscrowHold    = "escrow_hold"
	LedgerEntryEscrowRelease = "escrow_release"
	LedgerEntryEscrowRefund  = "escrow_refund"
	LedgerEntrySellerPayout  = "seller_payout"
)

type LedgerEntry struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
	EntryType     string     `json:"entry_type"`
	Amount        int        `json:"amount"`
	BalanceAfter  *int       `json:"balance_after,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
