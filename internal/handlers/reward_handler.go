package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rewardex/backend/internal/middleware"
	"github.com/rewardex/backend/internal/models"
)

// RewardRepoForHandler is the subset of reward repository needed by the handler.
type RewardRepoForHandler interface {
	Create(ctx context.Context, rw *models.Reward) error
	ListAvailable(ctx context.Context, excludeOwner uuid.UUID) ([]*models.Reward, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Reward, error)
}

// RewardHandler serves /api/v1/rewards endpoints.
type RewardHandler struct {
	Rewards RewardRepoForHandler
	Logger  *slog.Logger
}

type createRewardRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Code        string `json:"code"`
	Price       int    `json:"price"`
	ImageURL    string `json:"image_url"`
	ExpiresAt   string `json:"expires_at"`
}

// CreateReward handles POST /api/v1/rewards. The trust-score gate runs
// in middleware before this is reached.
func (h *RewardHandler) CreateReward(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req createRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Code = strings.TrimSpace(req.Code)
	switch {
	case req.Title == "":
		http.Error(w, `{"error":"title is required"}`, http.StatusBadRequest)
		return
	case req.Code == "":
		http.Error(w, `{"error":"code is required"}`, http.StatusBadRequest)
		return
	case req.Price <= 0:
		http.Error(w, `{"error":"price must be > 0"}`, http.StatusBadRequest)
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		ts, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			http.Error(w, `{"error":"expires_at must be RFC 3339"}`, http.StatusBadRequest)
			return
		}
		expiresAt = &ts
	}

	reward := &models.Reward{
		ID:          uuid.New(),
		OwnerID:     p.UserID,
		Title:       req.Title,
		Description: req.Description,
		Code:        req.Code,
		Price:       req.Price,
		Status:      models.RewardStatusAvailable,
		ImageURL:    req.ImageURL,
		ExpiresAt:   expiresAt,
	}

	if err := h.Rewards.Create(r.Context(), reward); err != nil {
		h.Logger.Error("create reward", "error", err)
		http.Error(w, `{"error":"failed to create reward"}`, http.StatusInternalServerError)
		return
	}

	// The code is json:"-"; the response never echoes it.
	writeJSON(w, http.StatusCreated, reward)
}

// ListAvailable handles GET /api/v1/rewards. The caller's own rewards
// are excluded so users can't buy from themselves.
func (h *RewardHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	rewards, err := h.Rewards.ListAvailable(r.Context(), p.UserID)
	if err != nil {
		h.Logger.Error("list rewards", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rewards)
}

// ListMine handles GET /api/v1/rewards/mine.
func (h *RewardHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	rewards, err := h.Rewards.ListByOwner(r.Context(), p.UserID)
	if err != nil {
		h.Logger.Error("list own rewards", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rewards)
}
