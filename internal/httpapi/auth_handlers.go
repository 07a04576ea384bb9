package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/studioKjm/hip-registry/internal/audit"
	"github.com/studioKjm/hip-registry/internal/auth"
)

type tokenRequest struct {
	Address     string   `json:"address"`
	Roles       []string `json:"roles"`
	AdminSecret string   `json:"admin_secret,omitempty"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const tokenTTL = 15 * time.Minute

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	address := strings.TrimSpace(req.Address)
	if address == "" {
		writeError(w, r, http.StatusBadRequest, "address is required")
		return
	}
	roles := make([]string, 0, len(req.Roles))
	for _, role := range req.Roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		roles = append(roles, "member")
	}

	// A token for the admin address is only issued against the bootstrap
	// secret; every other address is attested by the calling collaborator
	// (wallet verification happens upstream of this service).
	if a.adminAddress != "" && address == a.adminAddress {
		if err := auth.VerifyBootstrapSecret(a.adminSecretHash, req.AdminSecret); err != nil {
			writeError(w, r, http.StatusForbidden, "admin secret rejected")
			return
		}
	}

	token, err := auth.GenerateToken(address, roles, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(tokenTTL)
	fields := map[string]any{
		"address":    address,
		"roles":      roles,
		"expires_at": expiresAt.Format(time.RFC3339),
	}
	_ = audit.LogEvent(r.Context(), "auth.token.issued", fields)

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
