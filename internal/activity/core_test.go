package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/rollout/internal/model"
)

// ---------- Mock DB ----------

type mockDB struct {
	mock.Mock
}

func (m *mockDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDB) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Rows), args.Error(1)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// ---------- Mock Row ----------

type mockRow struct {
	scanFunc func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error {
	return m.scanFunc(dest...)
}

// ---------- GetRollout ----------

func TestCore_GetRollout_Success(t *testing.T) {
	db := &mockDB{}
	a := NewCore(db)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond)
	row := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = "test-rollout-1"
		*(dest[1].(*string)) = "checkout"
		*(dest[2].(*string)) = "checkout"
		*(dest[3].(*string)) = "2.4.1"
		*(dest[4].(*string)) = model.StrategyCanary
		*(dest[5].(*model.StrategyParams)) = model.StrategyParams{CanaryPercent: 10}
		*(dest[6].(*string)) = "req_abc123"
		*(dest[7].(*string)) = model.RolloutStatePending
		*(dest[8].(*string)) = model.ReasonAccepted
		*(dest[9].(**string)) = nil
		*(dest[10].(**string)) = nil
		*(dest[11].(**string)) = nil
		*(dest[12].(*time.Time)) = now
		*(dest[13].(*time.Time)) = now
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	r, err := a.GetRollout(ctx, "test-rollout-1")
	require.NoError(t, err)
	assert.Equal(t, "test-rollout-1", r.ID)
	assert.Equal(t, model.StrategyCanary, r.Strategy)
	assert.Equal(t, 10, r.Params.CanaryPercent)
	db.AssertExpectations(t)
}

func TestCore_GetRollout_Error(t *testing.T) {
	db := &mockDB{}
	a := NewCore(db)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error {
		return errors.New("no rows in result set")
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	r, err := a.GetRollout(ctx, "nonexistent-rollout")
	require.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "get rollout by id")
	db.AssertExpectations(t)
}

// ---------- RecordTransition ----------

func TestCore_RecordTransition_Success(t *testing.T) {
	db := &mockDB{}
	a := NewCore(db)
	ctx := context.Background()

	updateRow := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = model.StrategyBlueGreen
		*(dest[1].(*time.Time)) = time.Now()
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(updateRow).Once()
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, nil).Once()

	err := a.RecordTransition(ctx, RecordTransitionParams{
		RolloutID:  "test-rollout-1",
		FromState:  model.RolloutStatePending,
		ToState:    model.RolloutStateProvisioning,
		ReasonCode: model.ReasonAccepted,
	})
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestCore_RecordTransition_UpdateError(t *testing.T) {
	db := &mockDB{}
	a := NewCore(db)
	ctx := context.Background()

	failedRow := &mockRow{scanFunc: func(dest ...any) error {
		return errors.New("db error")
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(failedRow)

	err := a.RecordTransition(ctx, RecordTransitionParams{
		RolloutID: "test-rollout-1",
		FromState: model.RolloutStatePending,
		ToState:   model.RolloutStateProvisioning,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update rollout state")
	db.AssertExpectations(t)
}

// ---------- GetServingGroup ----------

func TestCore_GetServingGroup_NoneReturnsNil(t *testing.T) {
	db := &mockDB{}
	a := NewCore(db)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error {
		return pgx.ErrNoRows
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	g, err := a.GetServingGroup(ctx, "brand-new-service")
	require.NoError(t, err)
	assert.Nil(t, g)
	db.AssertExpectations(t)
}

// ---------- UpdateGroupLifecycle ----------

func TestCore_UpdateGroupLifecycle_Success(t *testing.T) {
	db := &mockDB{}
	a := NewCore(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := a.UpdateGroupLifecycle(ctx, UpdateGroupLifecycleParams{
		GroupID: "test-group-1",
		From:    model.GroupStateProvisioning,
		To:      model.GroupStateReady,
	})
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestCore_UpdateGroupLifecycle_RejectsRegression(t *testing.T) {
	db := &mockDB{}
	a := NewCore(db)

	err := a.UpdateGroupLifecycle(context.Background(), UpdateGroupLifecycleParams{
		GroupID: "test-group-1",
		From:    model.GroupStatePromoted,
		To:      model.GroupStateServing,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed")
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestCore_UpdateGroupLifecycle_StaleState(t *testing.T) {
	db := &mockDB{}
	a := NewCore(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := a.UpdateGroupLifecycle(ctx, UpdateGroupLifecycleParams{
		GroupID: "test-group-1",
		From:    model.GroupStateReady,
		To:      model.GroupStateServing,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in state")
	db.AssertExpectations(t)
}
