package handlers

import (
	"net/http"
)

// Credits reports the caller's available balance. Identity comes from the
// X-User-Id / X-User-Email headers or the matching query parameters.
func (a *App) CreditsBalance(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
	}
	email := r.Header.Get("X-User-Email")
	if email == "" {
		email = r.URL.Query().Get("user_email")
	}

	if a.Credits == nil {
		a.error(w, http.StatusInternalServerError, "credit ledger is not configured")
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"credits":   a.Credits.Balance(r.Context(), userID, email),
		"unlimited": a.Credits.Unlimited(userID, email),
	})
}
