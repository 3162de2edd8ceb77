package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// TrustScoreFunc fetches a user's current trust score. The repository's
// UserRepo.GetTrustScore satisfies it directly.
type TrustScoreFunc func(ctx context.Context, userID uuid.UUID) (int, error)

// RequireTrustScore gates a route behind a minimum trust score for
// the authenticated principal. Chain after Authenticate.
func RequireTrustScore(lookup TrustScoreFunc, min int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromCtx(r.Context())
			if !ok {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			score, err := lookup(r.Context(), p.UserID)
			if err != nil {
				http.Error(w, `{"error":"could not verify trust score"}`, http.StatusInternalServerError)
				return
			}
			if score < min {
				msg := fmt.Sprintf(`{"error":"insufficient trust score: required %d, current %d"}`, min, score)
				http.Error(w, msg, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
