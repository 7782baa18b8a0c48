package history

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type undoRequest struct {
	RequesterID uuid.UUID `json:"requesterId"`
	Reason      string    `json:"reason"`
}

func (a *API) handleUndo(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid log id"))
		return
	}

	var req undoRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.RequesterID == uuid.Nil {
		respondError(w, http.StatusBadRequest, errors.New("requesterId is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	result, err := a.undo.Undo(ctx, id, req.RequesterID)
	if err != nil {
		status, code := undoFailureStatus(err)
		respondFailure(w, status, code, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// undoFailureStatus maps the error taxonomy onto HTTP statuses: 404 for a
// missing entry, 409 with a sub-code for ineligibility and conflicts, 422 for
// configuration/snapshot problems.
func undoFailureStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not-found"
	case errors.Is(err, ErrAlreadyUndone):
		return http.StatusConflict, "already-undone"
	case errors.Is(err, ErrExpired):
		return http.StatusConflict, "expired"
	case errors.Is(err, ErrNotUndoable):
		return http.StatusConflict, "non-undoable"
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrUnknownEntity):
		return http.StatusUnprocessableEntity, "unknown-entity-type"
	case errors.Is(err, ErrInvalidSnapshot):
		return http.StatusUnprocessableEntity, "invalid-snapshot"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
