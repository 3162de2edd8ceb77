package main

import (
	"net/http"

	"github.com/rewardex/backend/internal/auth"
	"github.com/rewardex/backend/internal/evidence"
	"github.com/rewardex/backend/internal/handlers"
	"github.com/rewardex/backend/internal/metrics"
	"github.com/rewardex/backend/internal/middleware"
	"github.com/rewardex/backend/internal/models"
	"github.com/rewardex/backend/internal/repository"
)

// registerRoutes wires the API surface onto the mux.
// Middleware chain: Authenticate -> (RequireAdmin | RequireTrustScore) -> handler.
func registerRoutes(
	mux *http.ServeMux,
	authSvc auth.Service,
	userRepo *repository.UserRepo,
	authHandler *auth.Handler,
	txHandler *handlers.TransactionHandler,
	rewardHandler *handlers.RewardHandler,
	ledgerHandler *handlers.LedgerHandler,
	evidenceStore *evidence.DiskStore,
) {
	authed := middleware.Authenticate(authSvc)
	admin := func(h http.HandlerFunc) http.Handler {
		return authed(middleware.RequireAdmin(h))
	}
	trusted := middleware.RequireTrustScore(userRepo.GetTrustScore, models.DefaultTrustScore)

	// Public
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(evidenceStore.Dir()))))

	// Authenticated
	mux.Handle("GET /api/v1/me", authed(http.HandlerFunc(authHandler.Me)))
	mux.Handle("GET /api/v1/me/ledger", authed(http.HandlerFunc(ledgerHandler.ListMine)))

	mux.Handle("POST /api/v1/transactions/create-order", authed(http.HandlerFunc(txHandler.CreateOrder)))
	mux.Handle("POST /api/v1/transactions/reveal-code", authed(http.HandlerFunc(txHandler.RevealCode)))
	mux.Handle("POST /api/v1/transactions/confirm-delivery", authed(http.HandlerFunc(txHandler.ConfirmDelivery)))
	mux.Handle("POST /api/v1/transactions/report-issue", authed(http.HandlerFunc(txHandler.ReportIssue)))
	mux.Handle("POST /api/v1/transactions/upload-evidence", authed(http.HandlerFunc(txHandler.UploadEvidence)))
	mux.Handle("GET /api/v1/transactions/history", authed(http.HandlerFunc(txHandler.History)))

	mux.Handle("POST /api/v1/rewards", authed(trusted(http.HandlerFunc(rewardHandler.CreateReward))))
	mux.Handle("GET /api/v1/rewards/available", authed(http.HandlerFunc(rewardHandler.ListAvailable)))
	mux.Handle("GET /api/v1/rewards/mine", authed(http.HandlerFunc(rewardHandler.ListMine)))

	// Admin
	mux.Handle("POST /api/v1/transactions/admin/resolve-dispute", admin(txHandler.ResolveDispute))
	mux.Handle("GET /api/v1/transactions/admin/disputes", admin(txHandler.ListDisputes))
}
