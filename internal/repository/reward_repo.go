package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rewardex/backend/internal/models"
)

type RewardRepo struct {
	pool *pgxpool.Pool
}

func NewRewardRepo(pool *pgxpool.Pool) *RewardRepo {
	return &RewardRepo{pool: pool}
}

// rewardColumns deliberately excludes code: listings must never carry
// the secret. Use CodeByID for the reveal path.
const rewardColumns = `id, owner_id, title, description, price, status, image_url, expires_at, redeemed_by, redeemed_at, created_at, updated_at`

func scanReward(row pgx.Row) (*models.Reward, error) {
	var rw models.Reward
	err := row.Scan(&rw.ID, &rw.OwnerID, &rw.Title, &rw.Description, &rw.Price, &rw.Status, &rw.ImageURL, &rw.ExpiresAt, &rw.RedeemedBy, &rw.RedeemedAt, &rw.CreatedAt, &rw.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rw, nil
}

func (r *RewardRepo) Create(ctx context.Context, rw *models.Reward) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO rewards (id, owner_id, title, description, code, price, status, image_url, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, rw.ID, rw.OwnerID, rw.Title, rw.Description, rw.Code, rw.Price, rw.Status, rw.ImageURL, rw.ExpiresAt).Scan(&rw.CreatedAt, &rw.UpdatedAt)
}

func (r *RewardRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Reward, error) {
	return scanReward(r.pool.QueryRow(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE id = $1`, id))
}

// GetByIDForUpdate locks the reward row. Call within a transaction.
func (r *RewardRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Reward, error) {
	return scanReward(tx.QueryRow(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE id = $1 FOR UPDATE`, id))
}

// ListAvailable returns rewards open for purchase, excluding the
// caller's own listings.
func (r *RewardRepo) ListAvailable(ctx context.Context, excludeOwner uuid.UUID) ([]*models.Reward, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+rewardColumns+` FROM rewards
		WHERE status = 'available' AND owner_id <> $1
		ORDER BY created_at DESC
	`, excludeOwner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRewards(rows)
}

func (r *RewardRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Reward, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+rewardColumns+` FROM rewards WHERE owner_id = $1 ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRewards(rows)
}

func collectRewards(rows pgx.Rows) ([]*models.Reward, error) {
	var list []*models.Reward
	for rows.Next() {
		rw, err := scanReward(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rw)
	}
	return list, rows.Err()
}

// MarkPending flips available -> pending. Returns false if the reward
// was not available, which is how a second concurrent buyer loses.
func (r *RewardRepo) MarkPending(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE rewards SET status = 'pending', updated_at = now()
		WHERE id = $1 AND status = 'available'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkRedeemed finalizes the reward for the given buyer.
func (r *RewardRepo) MarkRedeemed(ctx context.Context, tx pgx.Tx, id, redeemedBy uuid.UUID, at time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE rewards SET status = 'redeemed', redeemed_by = $2, redeemed_at = $3, updated_at = now()
		WHERE id = $1
	`, id, redeemedBy, at)
	return err
}

// MarkAvailable relists the reward after a buyer refund.
func (r *RewardRepo) MarkAvailable(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE rewards SET status = 'available', redeemed_by = NULL, redeemed_at = NULL, updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

// CodeByID returns the secret code. Reveal is the only caller.
func (r *RewardRepo) CodeByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (string, error) {
	var code string
	err := tx.QueryRow(ctx, `SELECT code FROM rewards WHERE id = $1`, id).Scan(&code)
	return code, err
}
