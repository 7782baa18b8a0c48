package history

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"posd/pkg/db"
)

const maxListLimit = 200

type recordRequest struct {
	StoreID     uuid.UUID  `json:"storeId"`
	UserID      uuid.UUID  `json:"userId"`
	Action      Action     `json:"action"`
	EntityType  EntityKind `json:"entityType"`
	EntityID    uuid.UUID  `json:"entityId"`
	EntityName  string     `json:"entityName"`
	Details     string     `json:"details"`
	Before      Snapshot   `json:"beforeSnapshot"`
	After       Snapshot   `json:"afterSnapshot"`
	NonUndoable bool       `json:"nonUndoable"`
}

func (a *API) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	entry, err := a.recorder.Record(ctx, AppendRequest{
		StoreID:     req.StoreID,
		UserID:      req.UserID,
		Action:      req.Action,
		EntityKind:  req.EntityType,
		EntityID:    req.EntityID,
		EntityName:  req.EntityName,
		Details:     req.Details,
		Before:      req.Before,
		After:       req.After,
		NonUndoable: req.NonUndoable,
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"log": entry})
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	entries, err := a.logs.List(ctx, f)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"logs": entries, "count": len(entries)})
}

func (a *API) handleListUndoable(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(r.URL.Query().Get("store_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("valid store_id is required"))
		return
	}

	limit := queryInt(r, "limit", 20)
	if limit > maxListLimit {
		limit = maxListLimit
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	entries, err := a.logs.List(ctx, Filter{StoreID: storeID, UndoableOnly: true, Limit: limit})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"logs": entries, "count": len(entries)})
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid log id"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	entry, err := a.logs.Get(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		respondFailure(w, http.StatusNotFound, "not-found", err)
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
	default:
		respondJSON(w, http.StatusOK, map[string]any{"log": entry})
	}
}

type actionCount struct {
	Action string `db:"action" json:"action"`
	Count  int64  `db:"count" json:"count"`
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	if a.pool == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("stats unavailable"))
		return
	}

	storeID, err := uuid.Parse(r.URL.Query().Get("store_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("valid store_id is required"))
		return
	}

	var counts []actionCount
	err = db.Select(r.Context(), a.pool, &counts, `
SELECT action, COUNT(*) AS count
FROM history_logs
WHERE store_id = $1
GROUP BY action
ORDER BY action
`, storeID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"stats": counts})
}

func filterFromQuery(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{
		EntityKind: EntityKind(q.Get("entity_type")),
		Limit:      queryInt(r, "limit", defaultListLimit),
		Offset:     queryInt(r, "offset", 0),
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}

	if v := q.Get("store_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return Filter{}, errors.New("invalid store_id")
		}
		f.StoreID = id
	}
	if v := q.Get("entity_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return Filter{}, errors.New("invalid entity_id")
		}
		f.EntityID = id
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return Filter{}, errors.New("since must be RFC 3339")
		}
		f.Since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return Filter{}, errors.New("until must be RFC 3339")
		}
		f.Until = t
	}

	return f, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
