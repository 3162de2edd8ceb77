package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Defaults applied when an account is created.
const (
	DefaultStartingBalance = 1000
	DefaultTrustScore      = 50
)

// Principal is the authenticated identity middleware resolves per
// request and handlers thread into every core operation.
type Principal struct {
	UserID uuid.UUID
	Role   string
}

func (p Principal) Admin() bool { return p.Role == RoleAdmin }

type User struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	CreditBalance   int       `json:"credit_balance"`
	EscrowBalance   int       `json:"escrow_balance"`
	TrustScore      int       `json:"trust_score"`
	Role            string    `json:"role"`
	RedeemedRewards int       `json:"redeemed_rewards"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
