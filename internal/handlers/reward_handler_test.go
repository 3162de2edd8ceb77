package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/rewardex/backend/internal/models"
)

type mockRewardRepo struct {
	rewards map[uuid.UUID]*models.Reward
}

func newMockRewardRepo() *mockRewardRepo {
	return &mockRewardRepo{rewards: make(map[uuid.UUID]*models.Reward)}
}

func (m *mockRewardRepo) Create(_ context.Context, rw *models.Reward) error {
	m.rewards[rw.ID] = rw
	return nil
}

func (m *mockRewardRepo) ListAvailable(_ context.Context, excludeOwner uuid.UUID) ([]*models.Reward, error) {
	var out []*models.Reward
	for _, rw := range m.rewards {
		if rw.Status == models.RewardStatusAvailable && rw.OwnerID != excludeOwner {
			out = append(out, rw)
		}
	}
	return out, nil
}

func (m *mockRewardRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*models.Reward, error) {
	var out []*models.Reward
	for _, rw := range m.rewards {
		if rw.OwnerID == ownerID {
			out = append(out, rw)
		}
	}
	return out, nil
}

func newRewardHandler() (*RewardHandler, *mockRewardRepo) {
	repo := newMockRewardRepo()
	return &RewardHandler{Rewards: repo, Logger: slog.Default()}, repo
}

func TestCreateReward(t *testing.T) {
	h, repo := newRewardHandler()

	body := `{"title":"Free Coffee","description":"One espresso","code":"BREW-1234","price":500}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rewards", strings.NewReader(body))
	req, p := asUser(req, models.RoleUser)
	rec := httptest.NewRecorder()

	h.CreateReward(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// The code must never appear in the response body.
	if strings.Contains(rec.Body.String(), "BREW-1234") {
		t.Error("response leaked the reward code")
	}

	var resp models.Reward
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.OwnerID != p.UserID {
		t.Errorf("owner = %s, want %s", resp.OwnerID, p.UserID)
	}
	if resp.Status != models.RewardStatusAvailable {
		t.Errorf("status = %q, want available", resp.Status)
	}

	stored := repo.rewards[resp.ID]
	if stored == nil || stored.Code != "BREW-1234" {
		t.Error("code not persisted")
	}
}

func TestCreateReward_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing title", `{"code":"X","price":10}`},
		{"missing code", `{"title":"T","price":10}`},
		{"zero price", `{"title":"T","code":"X","price":0}`},
		{"bad expires_at", `{"title":"T","code":"X","price":10,"expires_at":"tomorrow"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newRewardHandler()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/rewards", strings.NewReader(tc.body))
			req, _ = asUser(req, models.RoleUser)
			rec := httptest.NewRecorder()

			h.CreateReward(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestListAvailable_ExcludesOwn(t *testing.T) {
	h, repo := newRewardHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rewards/available", nil)
	req, p := asUser(req, models.RoleUser)

	mine := &models.Reward{ID: uuid.New(), OwnerID: p.UserID, Title: "Mine", Code: "MINE-1", Status: models.RewardStatusAvailable}
	theirs := &models.Reward{ID: uuid.New(), OwnerID: uuid.New(), Title: "Theirs", Code: "THEIRS-1", Status: models.RewardStatusAvailable}
	pending := &models.Reward{ID: uuid.New(), OwnerID: uuid.New(), Title: "Pending", Code: "PEND-1", Status: models.RewardStatusPending}
	repo.rewards[mine.ID] = mine
	repo.rewards[theirs.ID] = theirs
	repo.rewards[pending.ID] = pending

	rec := httptest.NewRecorder()
	h.ListAvailable(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var out []*models.Reward
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].ID != theirs.ID {
		t.Fatalf("expected only the other user's available reward, got %d entries", len(out))
	}
	if strings.Contains(rec.Body.String(), "THEIRS-1") {
		t.Error("listing leaked a reward code")
	}
}

func TestListMine(t *testing.T) {
	h, repo := newRewardHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rewards/mine", nil)
	req, p := asUser(req, models.RoleUser)

	repo.rewards[uuid.New()] = &models.Reward{ID: uuid.New(), OwnerID: p.UserID, Status: models.RewardStatusRedeemed}
	repo.rewards[uuid.New()] = &models.Reward{ID: uuid.New(), OwnerID: uuid.New(), Status: models.RewardStatusAvailable}

	rec := httptest.NewRecorder()
	h.ListMine(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var out []*models.Reward
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 reward, got %d", len(out))
	}
}
