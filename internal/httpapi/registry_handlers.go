package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/studioKjm/hip-registry/internal/audit"
	"github.com/studioKjm/hip-registry/internal/auth"
	"github.com/studioKjm/hip-registry/internal/obs"
	"github.com/studioKjm/hip-registry/internal/registry"
)

type registerRequest struct {
	HipID          string `json:"hip_id"`
	ContentPointer string `json:"content_pointer"`
}

type updateContentRequest struct {
	ContentPointer string `json:"content_pointer"`
}

type setVerifiedRequest struct {
	IsVerified bool `json:"is_verified"`
}

type setReputationRequest struct {
	Level int `json:"level"`
}

type interactionResponse struct {
	HipID             string `json:"hip_id"`
	TotalInteractions uint64 `json:"total_interactions"`
}

type indexResponse struct {
	Index int    `json:"index"`
	HipID string `json:"hip_id"`
}

type ownerResponse struct {
	Owner string `json:"owner"`
	HipID string `json:"hip_id"`
}

type listIdentitiesResponse struct {
	Items []registry.Identity `json:"items"`
	Total int                 `json:"total"`
	AsOf  time.Time           `json:"as_of"`
}

func (a *API) handleIdentitiesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.register(w, r)
	case http.MethodGet:
		if strings.TrimSpace(r.URL.Query().Get("index")) != "" {
			a.getByIndex(w, r)
			return
		}
		a.listIdentities(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleIdentityResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/identities/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	if id == "" || strings.Contains(sub, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch sub {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getIdentity(w, r, id)
	case "content":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.updateContent(w, r, id)
	case "verification":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.setVerified(w, r, id)
	case "reputation":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.setReputation(w, r, id)
	case "interactions":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.recordInteraction(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleOwnerLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	owner := strings.TrimPrefix(r.URL.Path, "/v1/owners/")
	if owner == "" || strings.Contains(owner, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	hipID, err := a.registry.GetByOwner(r.Context(), owner)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ownerResponse{Owner: owner, HipID: hipID})
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "caller identity required")
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	hipID := strings.TrimSpace(req.HipID)
	if hipID == "" {
		writeError(w, r, http.StatusBadRequest, "hip_id is required")
		return
	}
	if len(hipID) > 128 {
		writeError(w, r, http.StatusBadRequest, "hip_id too long")
		return
	}

	rec, err := a.registry.Register(r.Context(), hipID, caller, req.ContentPointer)
	obs.ObserveRegistryOp("register", err)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	if n, err := a.registry.Count(r.Context()); err == nil {
		obs.SetIdentitiesTotal(n)
	}

	a.audit(r.Context(), "registry.identity.register", rec.HipID, map[string]string{
		"owner":           rec.Owner,
		"content_pointer": rec.ContentPointer,
	})

	w.Header().Set("Location", "/v1/identities/"+rec.HipID)
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) getIdentity(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := a.registry.Get(r.Context(), id)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) updateContent(w http.ResponseWriter, r *http.Request, id string) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "caller identity required")
		return
	}

	var req updateContentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := a.registry.UpdateContent(r.Context(), id, caller, req.ContentPointer)
	obs.ObserveRegistryOp("update_content", err)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}

	a.audit(r.Context(), "registry.identity.content_update", rec.HipID, map[string]string{
		"content_pointer": rec.ContentPointer,
	})
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) setVerified(w http.ResponseWriter, r *http.Request, id string) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "caller identity required")
		return
	}

	var req setVerifiedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := a.registry.SetVerified(r.Context(), id, caller, req.IsVerified)
	obs.ObserveRegistryOp("set_verified", err)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}

	a.audit(r.Context(), "registry.identity.verification_set", rec.HipID, map[string]string{
		"is_verified": strconv.FormatBool(rec.IsVerified),
	})
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) setReputation(w http.ResponseWriter, r *http.Request, id string) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "caller identity required")
		return
	}

	var req setReputationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := a.registry.SetReputation(r.Context(), id, caller, req.Level)
	obs.ObserveRegistryOp("set_reputation", err)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}

	a.audit(r.Context(), "registry.identity.reputation_set", rec.HipID, map[string]string{
		"level": strconv.Itoa(rec.ReputationLevel),
	})
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) recordInteraction(w http.ResponseWriter, r *http.Request, id string) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "caller identity required")
		return
	}

	total, err := a.registry.RecordInteraction(r.Context(), id, caller)
	obs.ObserveRegistryOp("record_interaction", err)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}

	a.audit(r.Context(), "registry.identity.interaction_record", id, map[string]string{
		"new_total": strconv.FormatUint(total, 10),
	})
	writeJSON(w, http.StatusOK, interactionResponse{HipID: id, TotalInteractions: total})
}

func (a *API) getByIndex(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("index"))
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 0 {
		writeError(w, r, http.StatusBadRequest, "index must be a non-negative integer")
		return
	}
	hipID, err := a.registry.GetByIndex(r.Context(), idx)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, indexResponse{Index: idx, HipID: hipID})
}

func (a *API) listIdentities(w http.ResponseWriter, r *http.Request) {
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	offset := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, r, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = v
	}

	total, err := a.registry.Count(r.Context())
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}

	items := make([]registry.Identity, 0, limit)
	for i := offset; i < total && len(items) < limit; i++ {
		hipID, err := a.registry.GetByIndex(r.Context(), i)
		if err != nil {
			break
		}
		rec, err := a.registry.Get(r.Context(), hipID)
		if err != nil {
			continue
		}
		items = append(items, rec)
	}

	writeJSON(w, http.StatusOK, listIdentitiesResponse{
		Items: items,
		Total: total,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	afterParam := strings.TrimSpace(r.URL.Query().Get("after"))
	var after uint64
	if afterParam != "" {
		v, err := strconv.ParseUint(afterParam, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "after must be a non-negative integer")
			return
		}
		after = v
	}

	items, next, err := a.registry.ListEvents(r.Context(), limit, after)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"next_after": next,
		"as_of":      time.Now().UTC(),
	})
}

func (a *API) audit(ctx context.Context, event, hipID string, meta map[string]string) {
	fields := map[string]any{"hip_id": hipID}
	for k, v := range meta {
		fields[k] = v
	}
	_ = audit.LogEvent(ctx, event, fields)
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit must be between 1 and 1000")
	}
	return val, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleRegistryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, registry.ErrInvalidInput), errors.Is(err, registry.ErrReputationRange):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, registry.ErrDuplicateKey), errors.Is(err, registry.ErrOwnerRegistered):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, registry.ErrNotOwner), errors.Is(err, registry.ErrUnauthorized):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, registry.ErrIndexOutOfRange):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
