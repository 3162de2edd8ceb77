package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rewardex/backend/internal/models"
)

// ErrInsufficientFunds is returned when a conditional debit finds the
// available balance too low.
var ErrInsufficientFunds = errors.New("insufficient funds")

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, name, email, password_hash, credit_balance, escrow_balance, trust_score, role, redeemed_rewards, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreditBalance, &u.EscrowBalance, &u.TrustScore, &u.Role, &u.RedeemedRewards, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO users (id, name, email, password_hash, credit_balance, escrow_balance, trust_score, role, redeemed_rewards)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.CreditBalance, u.EscrowBalance, u.TrustScore, u.Role, u.RedeemedRewards).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// GetByIDForUpdate locks the user row. Call within a transaction.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error) {
	return scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

// HoldCredits atomically moves amount from credit_balance to
// escrow_balance, conditional on sufficient available funds.
func (r *UserRepo) HoldCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users
		SET credit_balance = credit_balance - $1, escrow_balance = escrow_balance + $1, updated_at = now()
		WHERE id = $2 AND credit_balance >= $1
		RETURNING credit_balance
	`, amount, id).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrInsufficientFunds
	}
	return newBalance, err
}

// RefundHold moves amount from escrow_balance back to credit_balance on
// the same row (buyer refund).
func (r *UserRepo) RefundHold(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users
		SET escrow_balance = escrow_balance - $1, credit_balance = credit_balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING credit_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// DrainHold removes amount from escrow_balance without crediting the
// row (the matching credit lands on the seller via CreditBalance).
func (r *UserRepo) DrainHold(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) error {
	_, err := tx.Exec(ctx, `
		UPDATE users SET escrow_balance = escrow_balance - $1, updated_at = now() WHERE id = $2
	`, amount, id)
	return err
}

// CreditBalance adds amount to credit_balance and returns the new balance.
func (r *UserRepo) CreditBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET credit_balance = credit_balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING credit_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// AddTrustScore increments trust_score by delta.
func (r *UserRepo) AddTrustScore(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int) error {
	_, err := tx.Exec(ctx, `
		UPDATE users SET trust_score = trust_score + $1, updated_at = now() WHERE id = $2
	`, delta, id)
	return err
}

// IncrementRedeemedRewards bumps the buyer's completed-redemption count.
func (r *UserRepo) IncrementRedeemedRewards(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE users SET redeemed_rewards = redeemed_rewards + 1, updated_at = now() WHERE id = $1
	`, id)
	return err
}

// GetTrustScore reads the trust score without locking.
func (r *UserRepo) GetTrustScore(ctx context.Context, id uuid.UUID) (int, error) {
	var score int
	err := r.pool.QueryRow(ctx, `SELECT trust_score FROM users WHERE id = $1`, id).Scan(&score)
	return score, err
}
