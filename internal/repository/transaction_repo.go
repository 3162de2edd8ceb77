package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rewardex/backend/internal/models"
)

type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const txColumns = `id, from_user_id, to_user_id, reward_id, credits, escrow_status, revealed_at, dispute_reason, evidence_url, admin_note, resolved_at, created_at, updated_at`

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.FromUserID, &t.ToUserID, &t.RewardID, &t.Credits, &t.EscrowStatus, &t.RevealedAt, &t.DisputeReason, &t.EvidenceURL, &t.AdminNote, &t.ResolvedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTx inserts the escrow record inside the purchase transaction.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO transactions (id, from_user_id, to_user_id, reward_id, credits, escrow_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, t.ID, t.FromUserID, t.ToUserID, t.RewardID, t.Credits, t.EscrowStatus).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id))
}

// GetByIDForUpdate locks the transaction row. Every state transition
// takes this lock first, which serializes racing operations on the
// same escrow record.
func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Transaction, error) {
	return scanTransaction(tx.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
}

// ListByUser returns the caller's history on both sides of the escrow.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+txColumns+` FROM transactions
		WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListDisputed returns the admin dispute queue, oldest first.
func (r *TransactionRepo) ListDisputed(ctx context.Context) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+txColumns+` FROM transactions
		WHERE escrow_status = 'disputed'
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]*models.Transaction, error) {
	var list []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// ListStaleHeldIDs snapshots transactions eligible for auto-release:
// still held and created before the cutoff. The sweep iterates this
// snapshot; each release re-checks state under its own row lock.
func (r *TransactionRepo) ListStaleHeldIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM transactions
		WHERE escrow_status = 'held' AND created_at < $1
		ORDER BY created_at ASC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetRevealedAt stamps the first code reveal.
func (r *TransactionRepo) SetRevealedAt(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE transactions SET revealed_at = $2, updated_at = now() WHERE id = $1
	`, id, at)
	return err
}

// MarkReleased moves held|disputed -> released.
func (r *TransactionRepo) MarkReleased(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE transactions SET escrow_status = 'released', updated_at = now() WHERE id = $1
	`, id)
	return err
}

// MarkDisputed records the buyer's dispute with reason and evidence.
func (r *TransactionRepo) MarkDisputed(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason, evidenceURL string) error {
	_, err := tx.Exec(ctx, `
		UPDATE transactions
		SET escrow_status = 'disputed', dispute_reason = $2, evidence_url = $3, updated_at = now()
		WHERE id = $1
	`, id, reason, evidenceURL)
	return err
}

// MarkRefunded moves disputed -> refunded.
func (r *TransactionRepo) MarkRefunded(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE transactions SET escrow_status = 'refunded', updated_at = now() WHERE id = $1
	`, id)
	return err
}

// SetResolution persists the admin note and resolution timestamp.
func (r *TransactionRepo) SetResolution(ctx context.Context, tx pgx.Tx, id uuid.UUID, note string, at time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE transactions SET admin_note = $2, resolved_at = $3, updated_at = now() WHERE id = $1
	`, id, note, at)
	return err
}
