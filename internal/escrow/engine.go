package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rewardex/backend/internal/models"
	"github.com/rewardex/backend/internal/notify"
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UserStore is the minimal user repository interface for the engine.
type UserStore interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error)
	HoldCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	RefundHold(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	DrainHold(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) error
	CreditBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	AddTrustScore(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int) error
	IncrementRedeemedRewards(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// RewardStore is the minimal reward repository interface for the engine.
type RewardStore interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Reward, error)
	MarkPending(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
	MarkRedeemed(ctx context.Context, tx pgx.Tx, id, redeemedBy uuid.UUID, at time.Time) error
	MarkAvailable(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	CodeByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (string, error)
}

// TransactionStore is the minimal transaction repository interface.
type TransactionStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Transaction, error)
	ListDisputed(ctx context.Context) ([]*models.Transaction, error)
	SetRevealedAt(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error
	MarkReleased(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	MarkDisputed(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason, evidenceURL string) error
	MarkRefunded(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	SetResolution(ctx context.Context, tx pgx.Tx, id uuid.UUID, note string, at time.Time) error
}

// LedgerStore records balance movements for audit.
type LedgerStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
}

// Engine orchestrates the escrow lifecycle. Every mutating operation
// runs as one database transaction: it locks the transaction row (and
// the account rows it touches), re-checks state under the lock, applies
// all writes, and commits. A failure anywhere rolls everything back.
type Engine struct {
	db           TxBeginner
	users        UserStore
	rewards      RewardStore
	transactions TransactionStore
	ledger       LedgerStore
	notifier     notify.Notifier
	log          *slog.Logger
	revealWindow time.Duration

	// now is swappable in tests.
	now func() time.Time
}

// NewEngine wires the engine. notifier may be nil.
func NewEngine(db TxBeginner, users UserStore, rewards RewardStore, transactions TransactionStore, ledger LedgerStore, notifier notify.Notifier, log *slog.Logger, revealWindow time.Duration) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if revealWindow <= 0 {
		revealWindow = 10 * time.Minute
	}
	return &Engine{
		db:           db,
		users:        users,
		rewards:      rewards,
		transactions: transactions,
		ledger:       ledger,
		notifier:     notifier,
		log:          log,
		revealWindow: revealWindow,
		now:          time.Now,
	}
}

// CreateEscrow debits the buyer into escrow, flips the reward to
// pending, and creates the held transaction, all atomically.
func (e *Engine) CreateEscrow(ctx context.Context, buyerID, rewardID uuid.UUID) (*models.Transaction, error) {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	reward, err := e.rewards.GetByIDForUpdate(ctx, tx, rewardID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if reward.OwnerID == buyerID {
		return nil, ErrSelfPurchase
	}
	if reward.Status != models.RewardStatusAvailable {
		return nil, ErrRewardUnavailable
	}

	newBalance, err := e.users.HoldCredits(ctx, tx, buyerID, reward.Price)
	if err != nil {
		return nil, err
	}

	ok, err := e.rewards.MarkPending(ctx, tx, rewardID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRewardUnavailable
	}

	t := &models.Transaction{
		ID:           uuid.New(),
		FromUserID:   buyerID,
		ToUserID:     reward.OwnerID,
		RewardID:     rewardID,
		Credits:      reward.Price,
		EscrowStatus: models.EscrowStatusHeld,
	}
	if err := e.transactions.CreateTx(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := e.ledger.CreateTx(ctx, tx, &models.LedgerEntry{
		ID: uuid.New(), UserID: buyerID, TransactionID: &t.ID,
		EntryType: models.LedgerEntryEscrowHold, Amount: reward.Price, BalanceAfter: intPtr(newBalance),
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// RevealCode returns the reward's secret to the buyer. The first reveal
// stamps revealed_at; later reveals inside the window return the same
// code, and reveals past the window are rejected.
func (e *Engine) RevealCode(ctx context.Context, principal models.Principal, transactionID uuid.UUID) (code string, revealedAt, expiresAt time.Time, err error) {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	defer tx.Rollback(ctx)

	t, err := e.lockHeld(ctx, tx, principal, transactionID)
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}

	now := e.now()
	if t.RevealedAt == nil {
		if err := e.transactions.SetRevealedAt(ctx, tx, t.ID, now); err != nil {
			return "", time.Time{}, time.Time{}, err
		}
		revealedAt = now
	} else {
		revealedAt = *t.RevealedAt
		if now.After(revealedAt.Add(e.revealWindow)) {
			return "", time.Time{}, time.Time{}, ErrRevealExpired
		}
	}

	code, err = e.rewards.CodeByID(ctx, tx, t.RewardID)
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	return code, revealedAt, revealedAt.Add(e.revealWindow), nil
}

// ConfirmDelivery is the buyer's explicit settlement: release funds to
// the seller, mark the reward redeemed, bump trust and redemption
// counters. This is the only release path that counts as a buyer
// redemption.
func (e *Engine) ConfirmDelivery(ctx context.Context, principal models.Principal, transactionID uuid.UUID) error {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	t, err := e.lockHeld(ctx, tx, principal, transactionID)
	if err != nil {
		return err
	}
	if err := e.release(ctx, tx, t, e.now(), true); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	e.send(ctx, t.ToUserID, fmt.Sprintf("Funds released for order %s: %d credits", t.ID, t.Credits))
	return nil
}

// ReportIssue moves a held transaction to disputed, which parks it for
// the dispute authority and removes it from sweep eligibility.
func (e *Engine) ReportIssue(ctx context.Context, principal models.Principal, transactionID uuid.UUID, reason, evidenceURL string) error {
	if reason == "" {
		return ErrMissingReason
	}
	if evidenceURL == "" {
		return ErrMissingEvidence
	}

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	t, err := e.lockHeld(ctx, tx, principal, transactionID)
	if err != nil {
		return err
	}
	if err := e.transactions.MarkDisputed(ctx, tx, t.ID, reason, evidenceURL); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	e.send(ctx, t.ToUserID, fmt.Sprintf("Order %s is disputed and funds stay locked pending review", t.ID))
	return nil
}

// ResolveDispute is the admin-only arbitration of a disputed escrow.
func (e *Engine) ResolveDispute(ctx context.Context, principal models.Principal, transactionID uuid.UUID, resolution, note string) error {
	if !principal.Admin() {
		return ErrNotAuthorized
	}
	if resolution != models.ResolutionRefundBuyer && resolution != models.ResolutionReleaseToSeller {
		return ErrInvalidResolution
	}

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	t, err := e.transactions.GetByIDForUpdate(ctx, tx, transactionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if t.EscrowStatus != models.EscrowStatusDisputed {
		return ErrInvalidState
	}

	now := e.now()
	switch resolution {
	case models.ResolutionRefundBuyer:
		if err := e.refund(ctx, tx, t); err != nil {
			return err
		}
	case models.ResolutionReleaseToSeller:
		if err := e.release(ctx, tx, t, now, false); err != nil {
			return err
		}
	}
	if err := e.transactions.SetResolution(ctx, tx, t.ID, note, now); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	e.send(ctx, t.FromUserID, fmt.Sprintf("Dispute for order %s resolved: %s", t.ID, resolution))
	e.send(ctx, t.ToUserID, fmt.Sprintf("Dispute for order %s resolved: %s", t.ID, resolution))
	return nil
}

// AutoRelease settles one stale held transaction on behalf of the
// sweeper. It re-checks eligibility under the row lock, so a racing
// confirm or dispute wins and the call becomes a no-op. Returns true
// only when this call performed the release.
func (e *Engine) AutoRelease(ctx context.Context, transactionID uuid.UUID, cutoff time.Time) (bool, error) {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	t, err := e.transactions.GetByIDForUpdate(ctx, tx, transactionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, err
	}
	if t.EscrowStatus != models.EscrowStatusHeld || !t.CreatedAt.Before(cutoff) {
		return false, nil
	}
	if err := e.release(ctx, tx, t, e.now(), false); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// History returns all transactions where the principal is buyer or seller.
func (e *Engine) History(ctx context.Context, principal models.Principal) ([]*models.Transaction, error) {
	return e.transactions.ListByUser(ctx, principal.UserID)
}

// Disputes returns the open dispute queue. Admin only.
func (e *Engine) Disputes(ctx context.Context, principal models.Principal) ([]*models.Transaction, error) {
	if !principal.Admin() {
		return nil, ErrNotAuthorized
	}
	return e.transactions.ListDisputed(ctx)
}

// lockHeld locks the transaction row and verifies the principal is the
// buyer and the escrow is still held.
func (e *Engine) lockHeld(ctx context.Context, tx pgx.Tx, principal models.Principal, transactionID uuid.UUID) (*models.Transaction, error) {
	t, err := e.transactions.GetByIDForUpdate(ctx, tx, transactionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if t.FromUserID != principal.UserID {
		return nil, ErrNotAuthorized
	}
	if t.EscrowStatus != models.EscrowStatusHeld {
		return nil, ErrInvalidState
	}
	return t, nil
}

// release applies the full settlement inside the caller's transaction:
// drain the buyer's hold, credit the seller, mark the reward redeemed,
// bump seller trust, and write the ledger entries. byBuyer also counts
// the redemption on the buyer.
func (e *Engine) release(ctx context.Context, tx pgx.Tx, t *models.Transaction, at time.Time, byBuyer bool) error {
	// Lock both account rows in deterministic order to avoid deadlock
	// with concurrent settlements touching the same pair.
	ids := []uuid.UUID{t.FromUserID, t.ToUserID}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		if _, err := e.users.GetByIDForUpdate(ctx, tx, id); err != nil {
			return err
		}
	}

	if err := e.users.DrainHold(ctx, tx, t.FromUserID, t.Credits); err != nil {
		return err
	}
	newSeller, err := e.users.CreditBalance(ctx, tx, t.ToUserID, t.Credits)
	if err != nil {
		return err
	}
	if err := e.users.AddTrustScore(ctx, tx, t.ToUserID, 1); err != nil {
		return err
	}
	if byBuyer {
		if err := e.users.IncrementRedeemedRewards(ctx, tx, t.FromUserID); err != nil {
			return err
		}
	}
	if err := e.rewards.MarkRedeemed(ctx, tx, t.RewardID, t.FromUserID, at); err != nil {
		return err
	}
	if err := e.transactions.MarkReleased(ctx, tx, t.ID); err != nil {
		return err
	}
	if err := e.ledger.CreateTx(ctx, tx, &models.LedgerEntry{
		ID: uuid.New(), UserID: t.FromUserID, TransactionID: &t.ID,
		EntryType: models.LedgerEntryEscrowRelease, Amount: t.Credits,
	}); err != nil {
		return err
	}
	return e.ledger.CreateTx(ctx, tx, &models.LedgerEntry{
		ID: uuid.New(), UserID: t.ToUserID, TransactionID: &t.ID,
		EntryType: models.LedgerEntrySellerPayout, Amount: t.Credits, BalanceAfter: intPtr(newSeller),
	})
}

// refund returns the hold to the buyer and relists the reward.
func (e *Engine) refund(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	if _, err := e.users.GetByIDForUpdate(ctx, tx, t.FromUserID); err != nil {
		return err
	}
	newBalance, err := e.users.RefundHold(ctx, tx, t.FromUserID, t.Credits)
	if err != nil {
		return err
	}
	if err := e.rewards.MarkAvailable(ctx, tx, t.RewardID); err != nil {
		return err
	}
	if err := e.transactions.MarkRefunded(ctx, tx, t.ID); err != nil {
		return err
	}
	return e.ledger.CreateTx(ctx, tx, &models.LedgerEntry{
		ID: uuid.New(), UserID: t.FromUserID, TransactionID: &t.ID,
		EntryType: models.LedgerEntryEscrowRefund, Amount: t.Credits, BalanceAfter: intPtr(newBalance),
	})
}

// send delivers a notification, logging delivery failures.
func (e *Engine) send(ctx context.Context, userID uuid.UUID, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, userID, message); err != nil {
		e.log.Error("notification failed", "user_id", userID, "error", err)
	}
}

func intPtr(n int) *int { return &n }
