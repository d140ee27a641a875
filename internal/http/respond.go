package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/stepflow/signup-api/internal/domain"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message in the shape clients expect.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// userPayload renders a user without its credential fields.
func userPayload(u *domain.User) map[string]any {
	payload := map[string]any{
		"id":               u.ID,
		"email":            u.Email,
		"isVerified":       u.IsVerified,
		"isMobileVerified": u.IsMobileVerified,
		"createdAt":        u.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":        u.UpdatedAt.UTC().Format(time.RFC3339),
	}
	optional := map[string]*string{
		"firstName":  u.FirstName,
		"lastName":   u.LastName,
		"zipCode":    u.ZipCode,
		"mobile":     u.Mobile,
		"profilePic": u.ProfilePic,
		"resume":     u.Resume,
	}
	for key, value := range optional {
		if value != nil {
			payload[key] = *value
		}
	}
	return payload
}
