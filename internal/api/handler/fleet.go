package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/rollout/internal/api/request"
	"github.com/edvin/rollout/internal/api/response"
	"github.com/edvin/rollout/internal/core"
	"github.com/edvin/rollout/internal/model"
	"github.com/edvin/rollout/internal/platform"
)

// Fleet handles instance group endpoints.
type Fleet struct {
	svc *core.FleetService
}

func NewFleet(svc *core.FleetService) *Fleet {
	return &Fleet{svc: svc}
}

// ListByService returns every instance group tracked for a service,
// oldest first.
func (h *Fleet) ListByService(w http.ResponseWriter, r *http.Request) {
	serviceName, err := request.RequireID(chi.URLParam(r, "serviceName"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	groups, err := h.svc.ListByService(r.Context(), serviceName)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"service_name": serviceName,
		"groups":       groups,
	})
}

// Get returns an instance group by ID.
func (h *Fleet) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	group, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, group)
}

// Register adopts an externally provisioned instance group into the
// fleet tracker. Groups created by rollouts are registered by the
// workflow, not through this endpoint.
func (h *Fleet) Register(w http.ResponseWriter, r *http.Request) {
	serviceName, err := request.RequireID(chi.URLParam(r, "serviceName"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.RegisterInstanceGroup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	group := &model.InstanceGroup{
		ID:              platform.NewID(),
		ServiceName:     serviceName,
		ArtifactName:    req.ArtifactName,
		ArtifactVersion: req.ArtifactVersion,
		ArtifactLocator: req.ArtifactLocator,
		Endpoint:        req.Endpoint,
		DesiredReplicas: req.Replicas,
		LifecycleState:  req.LifecycleState,
	}
	if group.LifecycleState == model.GroupStateServing {
		// An adopted serving group is the fallback target for rollbacks
		// and owns all live traffic until a rollout shifts it away.
		group.ReadyReplicas = req.Replicas
		group.TrafficWeight = 100
	}

	if err := h.svc.Register(r.Context(), group); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, group)
}
