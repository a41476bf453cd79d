package scheduler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/rollout/internal/model"
)

func TestCreateInstanceGroup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/instance-groups", r.URL.Path)

		var spec CreateGroupSpec
		require.NoError(t, json.NewDecoder(r.Body).Decode(&spec))
		assert.Equal(t, "checkout", spec.ServiceName)
		assert.Equal(t, 3, spec.Replicas)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": "ig-1", "endpoint": "http://ig-1.fleet.local"}`))
	}))
	defer srv.Close()

	created, err := NewClient(srv.URL).CreateInstanceGroup(context.Background(), CreateGroupSpec{
		ServiceName: "checkout",
		Artifact:    model.ArtifactRef{Name: "checkout", Version: "v2", Locator: "sha256:abc"},
		Replicas:    3,
	})
	require.NoError(t, err)
	assert.Equal(t, "ig-1", created.ID)
	assert.Equal(t, "http://ig-1.fleet.local", created.Endpoint)
}

func TestGetReplicaStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/instance-groups/ig-1/status", r.URL.Path)
		w.Write([]byte(`{"group_id": "ig-1", "desired": 3, "ready": 2, "terminated": false}`))
	}))
	defer srv.Close()

	status, err := NewClient(srv.URL).GetReplicaStatus(context.Background(), "ig-1")
	require.NoError(t, err)
	assert.Equal(t, 3, status.Desired)
	assert.Equal(t, 2, status.Ready)
	assert.False(t, status.Terminated)
}

func TestGetReplicaStatus_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetReplicaStatus(context.Background(), "ig-gone")
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestTerminateInstanceGroup_IdempotentOnNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).TerminateInstanceGroup(context.Background(), "ig-gone")
	assert.NoError(t, err)
}

func TestScaleInstanceGroup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/instance-groups/ig-1/scale", r.URL.Path)
		var body map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 5, body["replicas"])
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).ScaleInstanceGroup(context.Background(), "ig-1", 5)
	assert.NoError(t, err)
}
