package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/edvin/rollout/internal/core"
)

func newFleetHandler() *Fleet {
	return NewFleet(nil)
}

// --- ListByService ---

func TestFleetListByService_EmptyService(t *testing.T) {
	h := newFleetHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodGet, "/services//groups", nil)
	r = withChiURLParam(r, "serviceName", "")

	h.ListByService(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "missing required ID")
}

// --- Get ---

func TestFleetGet_EmptyID(t *testing.T) {
	h := newFleetHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodGet, "/instance-groups/", nil)
	r = withChiURLParam(r, "id", "")

	h.Get(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "missing required ID")
}

func TestFleetGet_NotFound(t *testing.T) {
	db := &handlerMockDB{}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&handlerMockRow{scanFunc: func(dest ...any) error {
			return pgx.ErrNoRows
		}}).Once()
	h := NewFleet(core.NewFleetService(db))

	rec := httptest.NewRecorder()
	r := newRequest(http.MethodGet, "/instance-groups/"+validID, nil)
	r = withChiURLParam(r, "id", validID)

	h.Get(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	db.AssertExpectations(t)
}

// --- Register ---

func TestFleetRegister_EmptyService(t *testing.T) {
	h := newFleetHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/services//groups", map[string]any{
		"artifact_name":    "checkout",
		"artifact_version": "2.4.1",
		"endpoint":         "http://10.0.0.1:8080",
		"replicas":         3,
	})
	r = withChiURLParam(r, "serviceName", "")

	h.Register(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "missing required ID")
}

func TestFleetRegister_InvalidJSON(t *testing.T) {
	h := newFleetHandler()
	rec := httptest.NewRecorder()
	r := newRequestRaw(http.MethodPost, "/services/checkout/groups", "{bad json")
	r = withChiURLParam(r, "serviceName", "checkout")

	h.Register(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "invalid JSON")
}

func TestFleetRegister_MissingRequiredFields(t *testing.T) {
	h := newFleetHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/services/checkout/groups", map[string]any{
		"artifact_name": "checkout",
	})
	r = withChiURLParam(r, "serviceName", "checkout")

	h.Register(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "validation error")
}

func TestFleetRegister_InvalidLifecycleState(t *testing.T) {
	h := newFleetHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/services/checkout/groups", map[string]any{
		"artifact_name":    "checkout",
		"artifact_version": "2.4.1",
		"endpoint":         "http://10.0.0.1:8080",
		"replicas":         3,
		"lifecycle_state":  "promoted",
	})
	r = withChiURLParam(r, "serviceName", "checkout")

	h.Register(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "validation error")
}
