package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/rollout/internal/api/request"
	"github.com/edvin/rollout/internal/api/response"
	"github.com/edvin/rollout/internal/core"
	"github.com/edvin/rollout/internal/model"
)

// Rollout handles rollout lifecycle endpoints.
type Rollout struct {
	svc *core.RolloutService
}

func NewRollout(svc *core.RolloutService) *Rollout {
	return &Rollout{svc: svc}
}

// Create accepts a rollout request and starts its workflow. Returns 202
// when a new rollout was started, or 200 with the original rollout when
// the idempotency key matched a previous submission.
func (h *Rollout) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateRollout
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var params model.StrategyParams
	if req.Params != nil {
		params = *req.Params
	}

	rollout, created, err := h.svc.Create(r.Context(), core.CreateRolloutParams{
		ServiceName:     req.ServiceName,
		ArtifactName:    req.ArtifactName,
		ArtifactVersion: req.ArtifactVersion,
		Strategy:        req.Strategy,
		Params:          params,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}
	response.WriteJSON(w, status, rollout)
}

// Get returns a rollout by ID.
func (h *Rollout) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rollout, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, rollout)
}

// History returns every state transition a rollout has recorded, oldest first.
func (h *Rollout) History(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	transitions, err := h.svc.History(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"rollout_id":  id,
		"transitions": transitions,
	})
}

// Abort signals an in-flight rollout to roll back. Returns 409 if the
// rollout has already reached a terminal state.
func (h *Rollout) Abort(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The body is optional; an abort without a reason is still an abort.
	var req request.AbortRollout
	if err := request.Decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Abort(r.Context(), id, req.Reason); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "aborting"})
}

// ListByService returns a service's rollouts with cursor-based pagination.
func (h *Rollout) ListByService(w http.ResponseWriter, r *http.Request) {
	serviceName, err := request.RequireID(chi.URLParam(r, "serviceName"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	pg := request.ParsePagination(r)

	rollouts, hasMore, err := h.svc.ListByService(r.Context(), serviceName, pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	var nextCursor string
	if hasMore && len(rollouts) > 0 {
		nextCursor = rollouts[len(rollouts)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, rollouts, nextCursor, hasMore)
}

// Weights returns the current live traffic split for a service.
func (h *Rollout) Weights(w http.ResponseWriter, r *http.Request) {
	serviceName, err := request.RequireID(chi.URLParam(r, "serviceName"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	split, err := h.svc.CurrentSplit(r.Context(), serviceName)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, split)
}
