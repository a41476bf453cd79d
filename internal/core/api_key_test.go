package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyService_Create_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewAPIKeyService(db)
	ctx := context.Background()

	insertRow := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*time.Time)) = time.Now()
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(insertRow)

	key, rawKey, err := svc.Create(ctx, "ci-deployer")
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, "ci-deployer", key.Name)
	assert.True(t, strings.HasPrefix(rawKey, "ro_"))
	assert.Len(t, rawKey, 3+64)
	db.AssertExpectations(t)
}

func TestAPIKeyService_Create_DBError(t *testing.T) {
	db := &mockDB{}
	svc := NewAPIKeyService(db)
	ctx := context.Background()

	errorRow := &mockRow{scanFunc: func(dest ...any) error {
		return errors.New("db error")
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(errorRow)

	_, _, err := svc.Create(ctx, "ci-deployer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert api key")
	db.AssertExpectations(t)
}

func TestAPIKeyService_Authenticate_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewAPIKeyService(db)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = "test-key-1"
		*(dest[1].(*string)) = "ci-deployer"
		*(dest[2].(*time.Time)) = time.Now()
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	key, err := svc.Authenticate(ctx, "ro_deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "test-key-1", key.ID)
	db.AssertExpectations(t)
}

func TestAPIKeyService_Authenticate_Unknown(t *testing.T) {
	db := &mockDB{}
	svc := NewAPIKeyService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(noRows())

	key, err := svc.Authenticate(ctx, "ro_bogus")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, key)
	db.AssertExpectations(t)
}

func TestAPIKeyService_Revoke_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewAPIKeyService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := svc.Revoke(ctx, "test-key-1")
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestAPIKeyService_Revoke_AlreadyRevoked(t *testing.T) {
	db := &mockDB{}
	svc := NewAPIKeyService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := svc.Revoke(ctx, "test-key-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found or already revoked")
	db.AssertExpectations(t)
}
