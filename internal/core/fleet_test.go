package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/rollout/internal/model"
)

func groupRow(id, serviceName, state string) *mockRow {
	now := time.Now().Truncate(time.Microsecond)
	return &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = id
		*(dest[1].(*string)) = serviceName
		*(dest[2].(*string)) = "checkout"
		*(dest[3].(*string)) = "2.4.1"
		*(dest[4].(*string)) = "registry.internal/checkout@sha256:abc"
		*(dest[5].(*string)) = "http://checkout-g1.internal:8080"
		*(dest[6].(*int)) = 4
		*(dest[7].(*int)) = 4
		*(dest[8].(*int)) = 0
		*(dest[9].(*string)) = state
		*(dest[10].(*time.Time)) = now
		*(dest[11].(*time.Time)) = now
		return nil
	}}
}

// ---------- Register ----------

func TestFleetService_Register_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewFleetService(db)
	ctx := context.Background()

	insertRow := &mockRow{scanFunc: func(dest ...any) error {
		now := time.Now()
		*(dest[0].(*time.Time)) = now
		*(dest[1].(*time.Time)) = now
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(insertRow)

	g := &model.InstanceGroup{
		ID:              "test-group-1",
		ServiceName:     "checkout",
		ArtifactName:    "checkout",
		ArtifactVersion: "2.4.1",
		DesiredReplicas: 4,
	}
	err := svc.Register(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, model.GroupStateProvisioning, g.LifecycleState)
	assert.False(t, g.CreatedAt.IsZero())
	db.AssertExpectations(t)
}

func TestFleetService_Register_DBError(t *testing.T) {
	db := &mockDB{}
	svc := NewFleetService(db)
	ctx := context.Background()

	errorRow := &mockRow{scanFunc: func(dest ...any) error {
		return errors.New("db error")
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(errorRow)

	err := svc.Register(ctx, &model.InstanceGroup{ID: "test-group-1", ServiceName: "checkout"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert instance group")
	db.AssertExpectations(t)
}

// ---------- GetByID ----------

func TestFleetService_GetByID_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewFleetService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(groupRow("test-group-1", "checkout", model.GroupStateServing))

	g, err := svc.GetByID(ctx, "test-group-1")
	require.NoError(t, err)
	assert.Equal(t, "test-group-1", g.ID)
	assert.Equal(t, model.GroupStateServing, g.LifecycleState)
	assert.Equal(t, 4, g.ReadyReplicas)
	db.AssertExpectations(t)
}

func TestFleetService_GetByID_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewFleetService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(noRows())

	g, err := svc.GetByID(ctx, "nonexistent-group")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, g)
	db.AssertExpectations(t)
}

// ---------- ListByService ----------

func TestFleetService_ListByService_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewFleetService(db)
	ctx := context.Background()

	rows := newMockRows(
		groupRow("test-group-1", "checkout", model.GroupStateServing).scanFunc,
		groupRow("test-group-2", "checkout", model.GroupStateProvisioning).scanFunc,
	)
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	groups, err := svc.ListByService(ctx, "checkout")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "test-group-1", groups[0].ID)
	assert.Equal(t, model.GroupStateProvisioning, groups[1].LifecycleState)
	db.AssertExpectations(t)
}

func TestFleetService_ListByService_Empty(t *testing.T) {
	db := &mockDB{}
	svc := NewFleetService(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(newEmptyMockRows(), nil)

	groups, err := svc.ListByService(ctx, "checkout")
	require.NoError(t, err)
	assert.Empty(t, groups)
	db.AssertExpectations(t)
}

// ---------- ServingGroup ----------

func TestFleetService_ServingGroup_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewFleetService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(groupRow("test-group-1", "checkout", model.GroupStateServing))

	g, err := svc.ServingGroup(ctx, "checkout")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, model.GroupStateServing, g.LifecycleState)
	db.AssertExpectations(t)
}

func TestFleetService_ServingGroup_NoneIsNotAnError(t *testing.T) {
	db := &mockDB{}
	svc := NewFleetService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(noRows())

	g, err := svc.ServingGroup(ctx, "brand-new-service")
	require.NoError(t, err)
	assert.Nil(t, g)
	db.AssertExpectations(t)
}

// ---------- UpdateLifecycle ----------

func TestFleetService_UpdateLifecycle_Forward(t *testing.T) {
	db := &mockDB{}
	svc := NewFleetService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := svc.UpdateLifecycle(ctx, "test-group-1", model.GroupStateReady, model.GroupStateServing)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestFleetService_UpdateLifecycle_RejectsRegression(t *testing.T) {
	db := &mockDB{}
	svc := NewFleetService(db)

	err := svc.UpdateLifecycle(context.Background(), "test-group-1", model.GroupStateServing, model.GroupStateReady)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLifecycleRegression)
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestFleetService_UpdateLifecycle_StaleState(t *testing.T) {
	db := &mockDB{}
	svc := NewFleetService(db)
	ctx := context.Background()

	// CAS matches zero rows: the group already moved on.
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(groupRow("test-group-1", "checkout", model.GroupStatePromoted))

	err := svc.UpdateLifecycle(ctx, "test-group-1", model.GroupStateReady, model.GroupStateServing)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLifecycleRegression)
	assert.Contains(t, err.Error(), model.GroupStatePromoted)
	db.AssertExpectations(t)
}

func TestFleetService_UpdateLifecycle_TerminatedFromAborted(t *testing.T) {
	db := &mockDB{}
	svc := NewFleetService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := svc.UpdateLifecycle(ctx, "test-group-1", model.GroupStateAborted, model.GroupStateTerminated)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

// ---------- UpdateReadiness ----------

func TestFleetService_UpdateReadiness_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewFleetService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := svc.UpdateReadiness(ctx, "test-group-1", 4, 3)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestFleetService_UpdateReadiness_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewFleetService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := svc.UpdateReadiness(ctx, "nonexistent-group", 4, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	db.AssertExpectations(t)
}
