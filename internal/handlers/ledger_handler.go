package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/rewardex/backend/internal/middleware"
	"github.com/rewardex/backend/internal/models"
)

// LedgerRepoForHandler is the subset of ledger repository needed here.
type LedgerRepoForHandler interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.LedgerEntry, error)
}

// LedgerHandler serves GET /api/v1/me/ledger, the caller's audit trail.
type LedgerHandler struct {
	Ledger LedgerRepoForHandler
	Logger *slog.Logger
}

func (h *LedgerHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	entries, err := h.Ledger.ListByUser(r.Context(), p.UserID)
	if err != nil {
		h.Logger.Error("list ledger entries", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
