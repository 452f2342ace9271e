package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelweave-server/modules/common/apperr"
	"pixelweave-server/modules/common/database/dbtest"
	"pixelweave-server/modules/common/model"
)

func TestCompletePaymentOnce(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, db, 0)

	p := &model.Payment{UserID: user.ID, SessionID: "cs_test_1", Amount: 5, Credits: 50}
	require.NoError(t, db.CreatePayment(ctx, p))

	done, ok, err := db.CompletePayment(ctx, db.DB(), "cs_test_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, user.ID, done.UserID)
	assert.Equal(t, 50, done.Credits)

	_, ok, err = db.CompletePayment(ctx, db.DB(), "cs_test_1")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := db.FetchPaymentBySession(ctx, db.DB(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, got.Status)

	_, err = db.FetchPaymentBySession(ctx, db.DB(), "cs_missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDuplicateSessionRejected(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, db, 0)

	require.NoError(t, db.CreatePayment(ctx, &model.Payment{UserID: user.ID, SessionID: "cs_dup", Amount: 1, Credits: 10}))
	err := db.CreatePayment(ctx, &model.Payment{UserID: user.ID, SessionID: "cs_dup", Amount: 1, Credits: 10})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	payments, err := db.ListPayments(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestDuplicateEmailRejected(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	require.NoError(t, db.CreateUser(ctx, &model.User{UserName: "a", Email: "same@example.com"}))
	err := db.CreateUser(ctx, &model.User{UserName: "b", Email: "same@example.com"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}
