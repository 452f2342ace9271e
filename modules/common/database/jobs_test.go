package database_test

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelweave-server/modules/common/apperr"
	"pixelweave-server/modules/common/database"
	"pixelweave-server/modules/common/database/dbtest"
	"pixelweave-server/modules/common/model"
)

func newJob(t *testing.T, db *database.Client, userID string) *model.Job {
	t.Helper()
	ref := "staging/input.png"
	job := &model.Job{
		UserID:   userID,
		Kind:     model.KindWardrobe,
		Params:   map[string]any{"bg_color": "white"},
		InputRef: &ref,
	}
	require.NoError(t, db.CreateJob(context.Background(), job))
	return job
}

func TestCreateAndFetchJob(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, db, 5)

	job := newJob(t, db, user.ID)

	got, err := db.FetchJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, map[string]any{"bg_color": "white"}, got.Params)
	require.NotNil(t, got.InputRef)
	assert.Equal(t, "staging/input.png", *got.InputRef)
	assert.Nil(t, got.ResultRef)
	assert.Nil(t, got.StartedAt)
	assert.WithinDuration(t, job.Created, got.Created, time.Millisecond)

	_, err = db.FetchJob(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// SQLite 는 연결 하나(MaxOpenConns=1)라 고루틴들이 풀에서 직렬화됨.
// 여기서는 결과만 확인하고, SQL 수준 경합은 pgx 환경에서만 발생함.
func TestClaimIsExclusive(t *testing.T) {
	db := dbtest.New(t)
	user := dbtest.SeedUser(t, db, 5)
	job := newJob(t, db, user.ID)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := db.ClaimJob(context.Background(), job.ID)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	got, err := db.FetchJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, got.Status)
	assert.NotNil(t, got.StartedAt)
}

func TestTerminalStatesAreFinal(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, db, 5)
	job := newJob(t, db, user.ID)

	// PENDING 에서는 완료 불가
	ok, err := db.CompleteJob(ctx, db.DB(), job.ID, "results/a.webp")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = db.ClaimJob(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = db.FailJob(ctx, job.ID, model.StatusProcessing, "boom")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.CompleteJob(ctx, db.DB(), job.ID, "results/a.webp")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = db.ClaimJob(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := db.FetchJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "boom", *got.ErrorMessage)
	assert.Nil(t, got.ResultRef)
	assert.NotNil(t, got.CompletedAt)
}

func TestListJobsAndDependents(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, db, 5)
	other := dbtest.SeedUser(t, db, 5)

	wardrobe := newJob(t, db, user.ID)
	newJob(t, db, other.ID)

	studio := &model.Job{UserID: user.ID, Kind: model.KindStudio, WardrobeID: &wardrobe.ID}
	require.NoError(t, db.CreateJob(ctx, studio))

	wardrobes, err := db.ListJobs(ctx, user.ID, model.KindWardrobe)
	require.NoError(t, err)
	require.Len(t, wardrobes, 1)
	assert.Equal(t, wardrobe.ID, wardrobes[0].ID)

	deps, err := db.ListDependents(ctx, db.DB(), wardrobe.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, studio.ID, deps[0].ID)

	require.NoError(t, db.DeleteJobs(ctx, db.DB(), studio.ID, wardrobe.ID))
	wardrobes, err = db.ListJobs(ctx, user.ID, model.KindWardrobe)
	require.NoError(t, err)
	assert.Empty(t, wardrobes)
}

func TestStaleAndLeftoverQueries(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, db, 5)

	pending := newJob(t, db, user.ID)
	failed := newJob(t, db, user.ID)
	_, err := db.ClaimJob(ctx, failed.ID)
	require.NoError(t, err)
	_, err = db.FailJob(ctx, failed.ID, model.StatusProcessing, "boom")
	require.NoError(t, err)

	stale, err := db.ListStaleJobs(ctx, model.StatusPending, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, pending.ID, stale[0].ID)

	stale, err = db.ListStaleJobs(ctx, model.StatusPending, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stale)

	leftovers, err := db.ListLeftoverInputs(ctx)
	require.NoError(t, err)
	require.Len(t, leftovers, 1)
	assert.Equal(t, failed.ID, leftovers[0].ID)

	require.NoError(t, db.ClearInputRef(ctx, failed.ID))
	leftovers, err = db.ListLeftoverInputs(ctx)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestDeleteJobsRefusesProcessing(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, db, 5)

	pending := newJob(t, db, user.ID)
	running := newJob(t, db, user.ID)
	claimed, err := db.ClaimJob(ctx, running.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	// 같은 트랜잭션의 앞선 삭제도 롤백됨
	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		return db.DeleteJobs(ctx, tx, pending.ID, running.ID)
	})
	require.ErrorIs(t, err, apperr.ErrConflict)

	for _, id := range []string{pending.ID, running.ID} {
		_, err := db.FetchJob(ctx, id)
		assert.NoError(t, err)
	}

	err = db.DeleteJobs(ctx, db.DB(), "missing")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}
