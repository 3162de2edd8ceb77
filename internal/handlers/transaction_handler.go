package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rewardex/backend/internal/escrow"
	"github.com/rewardex/backend/internal/evidence"
	"github.com/rewardex/backend/internal/metrics"
	"github.com/rewardex/backend/internal/middleware"
	"github.com/rewardex/backend/internal/models"
)

// EscrowEngine abstracts the escrow operations needed by the handler.
type EscrowEngine interface {
	CreateEscrow(ctx context.Context, buyerID, rewardID uuid.UUID) (*models.Transaction, error)
	RevealCode(ctx context.Context, principal models.Principal, transactionID uuid.UUID) (string, time.Time, time.Time, error)
	ConfirmDelivery(ctx context.Context, principal models.Principal, transactionID uuid.UUID) error
	ReportIssue(ctx context.Context, principal models.Principal, transactionID uuid.UUID, reason, evidenceURL string) error
	ResolveDispute(ctx context.Context, principal models.Principal, transactionID uuid.UUID, resolution, note string) error
	History(ctx context.Context, principal models.Principal) ([]*models.Transaction, error)
	Disputes(ctx context.Context, principal models.Principal) ([]*models.Transaction, error)
}

// TransactionHandler serves /api/v1/transactions endpoints.
type TransactionHandler struct {
	Engine   EscrowEngine
	Evidence evidence.Store
	Logger   *slog.Logger
}

// --- POST /api/v1/transactions/create-order ---

type createOrderRequest struct {
	RewardID string `json:"reward_id"`
}

// CreateOrder handles POST /api/v1/transactions/create-order.
// Buyer credits move into escrow and the reward flips to pending.
func (h *TransactionHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	rewardID, err := uuid.Parse(req.RewardID)
	if err != nil {
		http.Error(w, `{"error":"invalid reward_id"}`, http.StatusBadRequest)
		return
	}

	t, err := h.Engine.CreateEscrow(r.Context(), p.UserID, rewardID)
	if err != nil {
		metrics.EscrowOps.WithLabelValues("create", "error").Inc()
		switch {
		case errors.Is(err, escrow.ErrInsufficientFunds):
			http.Error(w, `{"error":"insufficient credits"}`, http.StatusPaymentRequired)
		case errors.Is(err, escrow.ErrSelfPurchase):
			http.Error(w, `{"error":"cannot purchase your own reward"}`, http.StatusBadRequest)
		case errors.Is(err, escrow.ErrRewardUnavailable):
			http.Error(w, `{"error":"reward is not available"}`, http.StatusConflict)
		case errors.Is(err, escrow.ErrNotFound):
			http.Error(w, `{"error":"reward not found"}`, http.StatusNotFound)
		default:
			h.Logger.Error("create escrow", "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}

	metrics.EscrowOps.WithLabelValues("create", "ok").Inc()
	writeJSON(w, http.StatusCreated, t)
}

// --- POST /api/v1/transactions/reveal-code ---

type transactionRequest struct {
	TransactionID string `json:"transaction_id"`
}

type revealResponse struct {
	Code       string    `json:"code"`
	RevealedAt time.Time `json:"revealed_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// RevealCode handles POST /api/v1/transactions/reveal-code.
// The first call stamps the reveal; repeats inside the window return
// the same stamp and code.
func (h *TransactionHandler) RevealCode(w http.ResponseWriter, r *http.Request) {
	p, txID, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	code, revealedAt, expiresAt, err := h.Engine.RevealCode(r.Context(), p, txID)
	if err != nil {
		metrics.EscrowOps.WithLabelValues("reveal", "error").Inc()
		h.writeEscrowError(w, "reveal code", err)
		return
	}

	metrics.EscrowOps.WithLabelValues("reveal", "ok").Inc()
	writeJSON(w, http.StatusOK, revealResponse{Code: code, RevealedAt: revealedAt, ExpiresAt: expiresAt})
}

// --- POST /api/v1/transactions/confirm-delivery ---

// ConfirmDelivery handles POST /api/v1/transactions/confirm-delivery.
func (h *TransactionHandler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	p, txID, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	if err := h.Engine.ConfirmDelivery(r.Context(), p, txID); err != nil {
		metrics.EscrowOps.WithLabelValues("confirm", "error").Inc()
		h.writeEscrowError(w, "confirm delivery", err)
		return
	}

	metrics.EscrowOps.WithLabelValues("confirm", "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": models.EscrowStatusReleased})
}

// --- POST /api/v1/transactions/report-issue ---

type disputeRequest struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
	EvidenceURL   string `json:"evidence_url"`
}

// ReportIssue handles POST /api/v1/transactions/report-issue.
// Credits stay locked until an admin resolves.
func (h *TransactionHandler) ReportIssue(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req disputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	txID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		http.Error(w, `{"error":"invalid transaction_id"}`, http.StatusBadRequest)
		return
	}

	if err := h.Engine.ReportIssue(r.Context(), p, txID, req.Reason, req.EvidenceURL); err != nil {
		metrics.EscrowOps.WithLabelValues("dispute", "error").Inc()
		h.writeEscrowError(w, "report issue", err)
		return
	}

	metrics.EscrowOps.WithLabelValues("dispute", "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": models.EscrowStatusDisputed})
}

// --- POST /api/v1/transactions/upload-evidence ---

// UploadEvidence handles POST /api/v1/transactions/upload-evidence.
// Accepts a multipart form with a "file" part and returns the URL to
// attach to a subsequent dispute.
func (h *TransactionHandler) UploadEvidence(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.PrincipalFromCtx(r.Context()); !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, `{"error":"missing file upload"}`, http.StatusBadRequest)
		return
	}
	defer file.Close()

	url, err := h.Evidence.Save(r.Context(), header.Filename, file)
	if err != nil {
		if errors.Is(err, evidence.ErrEmptyFile) {
			http.Error(w, `{"error":"evidence file is empty"}`, http.StatusBadRequest)
			return
		}
		h.Logger.Error("save evidence", "error", err)
		http.Error(w, `{"error":"failed to store evidence"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"evidence_url": url})
}

// --- POST /api/v1/transactions/admin/resolve-dispute ---

type resolveRequest struct {
	TransactionID string `json:"transaction_id"`
	Resolution    string `json:"resolution"`
	AdminNote     string `json:"admin_note"`
}

// ResolveDispute handles POST /api/v1/transactions/admin/resolve-dispute.
func (h *TransactionHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	txID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		http.Error(w, `{"error":"invalid transaction_id"}`, http.StatusBadRequest)
		return
	}

	if err := h.Engine.ResolveDispute(r.Context(), p, txID, req.Resolution, req.AdminNote); err != nil {
		metrics.EscrowOps.WithLabelValues("resolve", "error").Inc()
		h.writeEscrowError(w, "resolve dispute", err)
		return
	}

	metrics.EscrowOps.WithLabelValues("resolve", "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"resolution": req.Resolution})
}

// --- GET /api/v1/transactions/history ---

// History handles GET /api/v1/transactions/history for the caller.
func (h *TransactionHandler) History(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	txs, err := h.Engine.History(r.Context(), p)
	if err != nil {
		h.Logger.Error("transaction history", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// --- GET /api/v1/transactions/admin/disputes ---

// ListDisputes handles GET /api/v1/transactions/admin/disputes, oldest first.
func (h *TransactionHandler) ListDisputes(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	txs, err := h.Engine.Disputes(r.Context(), p)
	if err != nil {
		if errors.Is(err, escrow.ErrNotAuthorized) {
			http.Error(w, `{"error":"admin privileges required"}`, http.StatusForbidden)
			return
		}
		h.Logger.Error("list disputes", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// --- helpers ---

func (h *TransactionHandler) principalAndID(w http.ResponseWriter, r *http.Request) (models.Principal, uuid.UUID, bool) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return models.Principal{}, uuid.Nil, false
	}

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return models.Principal{}, uuid.Nil, false
	}
	id, err := uuid.Parse(req.TransactionID)
	if err != nil {
		http.Error(w, `{"error":"invalid transaction_id"}`, http.StatusBadRequest)
		return models.Principal{}, uuid.Nil, false
	}
	return p, id, true
}

func (h *TransactionHandler) writeEscrowError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, escrow.ErrNotFound):
		http.Error(w, `{"error":"transaction not found"}`, http.StatusNotFound)
	case errors.Is(err, escrow.ErrNotAuthorized):
		http.Error(w, `{"error":"not authorized for this transaction"}`, http.StatusForbidden)
	case errors.Is(err, escrow.ErrInvalidState):
		http.Error(w, `{"error":"transaction is not in a valid state for this action"}`, http.StatusConflict)
	case errors.Is(err, escrow.ErrRevealExpired):
		http.Error(w, `{"error":"reveal window has expired"}`, http.StatusConflict)
	case errors.Is(err, escrow.ErrMissingReason):
		http.Error(w, `{"error":"dispute reason is required"}`, http.StatusBadRequest)
	case errors.Is(err, escrow.ErrMissingEvidence):
		http.Error(w, `{"error":"dispute evidence is required"}`, http.StatusBadRequest)
	case errors.Is(err, escrow.ErrInvalidResolution):
		http.Error(w, `{"error":"resolution must be refund_buyer or release_to_seller"}`, http.StatusBadRequest)
	default:
		h.Logger.Error(op, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
