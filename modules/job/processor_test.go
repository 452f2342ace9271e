package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelweave-server/modules/common/apperr"
	"pixelweave-server/modules/common/database/dbtest"
	"pixelweave-server/modules/common/model"
)

func submit(t *testing.T, h *harness, userID, kind string) *model.Job {
	t.Helper()
	job, err := h.service.SubmitJob(context.Background(), SubmitRequest{
		UserID: userID, Kind: kind, Input: testImage, InputName: "garment.png",
	})
	require.NoError(t, err)
	return job
}

func fetch(t *testing.T, h *harness, jobID string) *model.Job {
	t.Helper()
	job, err := h.db.FetchJob(context.Background(), jobID)
	require.NoError(t, err)
	return job
}

func TestProcessSuccessDebitsOnCompletion(t *testing.T) {
	h := newHarness(t)
	user := dbtest.SeedUser(t, h.db, 5)
	job := submit(t, h, user.ID, model.KindWardrobe)
	staging := *job.InputRef

	h.drain(t)

	done := fetch(t, h, job.ID)
	assert.Equal(t, model.StatusCompleted, done.Status)
	require.NotNil(t, done.ResultRef)
	assert.True(t, strings.HasPrefix(*done.ResultRef, "generated-images/wardrobe/user-"+user.ID+"/"))
	assert.True(t, h.store.Has(*done.ResultRef))
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.Nil(t, done.InputRef)
	assert.False(t, h.store.Has(staging))

	assert.Equal(t, 3, h.balance(t, user.ID))

	assert.Equal(t, []string{model.StatusProcessing, model.StatusCompleted}, h.publisher.statuses())
	last := h.publisher.last()
	assert.Equal(t, user.ID, last.UserID)
	assert.Equal(t, "wardrobe_generation", last.Event.Type)
	assert.Equal(t, "https://cdn.test/"+*done.ResultRef, last.Event.ImageURL)
}

func TestProcessGatewayFailureKeepsCredits(t *testing.T) {
	h := newHarness(t)
	user := dbtest.SeedUser(t, h.db, 5)
	job := submit(t, h, user.ID, model.KindStudio)
	h.gateway.err = fmt.Errorf("%w: quota exceeded", apperr.ErrGenerationFailed)

	h.drain(t)

	failed := fetch(t, h, job.ID)
	assert.Equal(t, model.StatusFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "quota exceeded")
	assert.Nil(t, failed.ResultRef)
	assert.Equal(t, 5, h.balance(t, user.ID))
	assert.Empty(t, h.store.Keys())

	last := h.publisher.last()
	assert.Equal(t, model.StatusFailed, last.Event.Status)
	assert.Equal(t, "studio_generation", last.Event.Type)
	assert.Equal(t, *failed.ErrorMessage, last.Event.Error)
}

func TestProcessStorageFailure(t *testing.T) {
	h := newHarness(t)
	user := dbtest.SeedUser(t, h.db, 5)
	job := submit(t, h, user.ID, model.KindWardrobe)
	h.store.FailPuts = 3

	h.drain(t)

	failed := fetch(t, h, job.ID)
	assert.Equal(t, model.StatusFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.True(t, strings.HasPrefix(*failed.ErrorMessage, "failed to store generated image"))
	assert.Equal(t, 5, h.balance(t, user.ID))
}

func TestProcessStorageRetrySucceeds(t *testing.T) {
	h := newHarness(t)
	user := dbtest.SeedUser(t, h.db, 5)
	job := submit(t, h, user.ID, model.KindWardrobe)
	h.store.FailPuts = 2

	h.drain(t)

	assert.Equal(t, model.StatusCompleted, fetch(t, h, job.ID).Status)
	assert.Equal(t, 3, h.balance(t, user.ID))
}

func TestProcessRecoversFromGatewayPanic(t *testing.T) {
	h := newHarness(t)
	user := dbtest.SeedUser(t, h.db, 5)
	job := submit(t, h, user.ID, model.KindWardrobe)
	h.gateway.panics = true

	err := h.processor.Process(context.Background(), h.queue.all()[0])
	require.ErrorIs(t, err, apperr.ErrGenerationFailed)

	failed := fetch(t, h, job.ID)
	assert.Equal(t, model.StatusFailed, failed.Status)
	assert.Equal(t, 5, h.balance(t, user.ID))
}

func TestProcessUnreadableInput(t *testing.T) {
	h := newHarness(t)
	user := dbtest.SeedUser(t, h.db, 5)
	job := submit(t, h, user.ID, model.KindStudio)
	h.store.FailGets = true

	h.drain(t)

	failed := fetch(t, h, job.ID)
	assert.Equal(t, model.StatusFailed, failed.Status)
	assert.Contains(t, *failed.ErrorMessage, "failed to read input image")
	assert.Zero(t, h.gateway.calls)
}

func TestDuplicateDeliveryChargesOnce(t *testing.T) {
	h := newHarness(t)
	user := dbtest.SeedUser(t, h.db, 5)
	job := submit(t, h, user.ID, model.KindWardrobe)
	task := h.queue.all()[0]

	require.NoError(t, h.processor.Process(context.Background(), task))
	require.NoError(t, h.processor.Process(context.Background(), task))

	assert.Equal(t, model.StatusCompleted, fetch(t, h, job.ID).Status)
	assert.Equal(t, 1, h.gateway.calls)
	assert.Equal(t, 3, h.balance(t, user.ID))

	txs, err := h.db.ListTransactions(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestTaskForDeletedJobReleasesStaging(t *testing.T) {
	h := newHarness(t)
	user := dbtest.SeedUser(t, h.db, 5)
	job := submit(t, h, user.ID, model.KindWardrobe)
	task := h.queue.all()[0]

	_, err := h.db.DB().Exec(`DELETE FROM generation_jobs WHERE id = $1`, job.ID)
	require.NoError(t, err)
	require.True(t, h.store.Has(task.InputRef))

	require.NoError(t, h.processor.Process(context.Background(), task))
	assert.False(t, h.store.Has(task.InputRef))
	assert.Zero(t, h.gateway.calls)
}

func TestStudioFromWardrobeResult(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, h.db, 5)
	wardrobe := submit(t, h, user.ID, model.KindWardrobe)
	h.drain(t)

	studio, err := h.service.SubmitJob(ctx, SubmitRequest{
		UserID:     user.ID,
		Kind:       model.KindStudio,
		Params:     map[string]any{"garment_type": "dress"},
		WardrobeID: wardrobe.ID,
	})
	require.NoError(t, err)
	assert.Nil(t, studio.InputRef)
	h.drain(t)

	done := fetch(t, h, studio.ID)
	assert.Equal(t, model.StatusCompleted, done.Status)
	require.NotNil(t, done.WardrobeID)
	assert.Equal(t, wardrobe.ID, *done.WardrobeID)
	assert.Equal(t, 1, h.balance(t, user.ID))
}

// 사전 확인과 차감 사이의 경쟁: 두 작업 모두 확인을 통과하고 둘 다 성공하면 잔액이 음수
func TestPrecheckRaceCanOverdraw(t *testing.T) {
	h := newHarness(t)
	user := dbtest.SeedUser(t, h.db, 2)

	first := submit(t, h, user.ID, model.KindWardrobe)
	second := submit(t, h, user.ID, model.KindWardrobe)
	h.drain(t)

	assert.Equal(t, model.StatusCompleted, fetch(t, h, first.ID).Status)
	assert.Equal(t, model.StatusCompleted, fetch(t, h, second.ID).Status)
	assert.Equal(t, -2, h.balance(t, user.ID))

	// 이후 제출은 거부됨
	_, err := h.service.SubmitJob(context.Background(), SubmitRequest{
		UserID: user.ID, Kind: model.KindWardrobe, Input: testImage, InputName: "shirt.png",
	})
	assert.ErrorIs(t, err, apperr.ErrInsufficientCredits)
}

func TestConvertFallsBackToOriginal(t *testing.T) {
	h := newHarness(t)
	user := dbtest.SeedUser(t, h.db, 10)
	h.processor.cfg.Convert = func([]byte) ([]byte, error) { return nil, errors.New("libwebp unavailable") }

	job := submit(t, h, user.ID, model.KindWardrobe)
	h.drain(t)
	done := fetch(t, h, job.ID)
	require.Equal(t, model.StatusCompleted, done.Status)
	assert.True(t, strings.HasSuffix(*done.ResultRef, ".png"))

	h.processor.cfg.Convert = func([]byte) ([]byte, error) { return []byte("RIFF....WEBP"), nil }
	job = submit(t, h, user.ID, model.KindWardrobe)
	h.drain(t)
	done = fetch(t, h, job.ID)
	require.Equal(t, model.StatusCompleted, done.Status)
	assert.True(t, strings.HasSuffix(*done.ResultRef, ".webp"))
}

// interruptingGateway - 생성 도중 sweep 이 작업을 FAILED 로 바꾼 상황 재현
type interruptingGateway struct {
	h     *harness
	jobID string
}

func (g *interruptingGateway) Generate(ctx context.Context, kind string, source []byte, params map[string]any) ([]byte, error) {
	if _, err := g.h.db.FailJob(ctx, g.jobID, model.StatusProcessing, "worker interrupted"); err != nil {
		return nil, err
	}
	return []byte("\x89PNG\r\n\x1a\nlate result"), nil
}

func TestCompletionAfterInterruptDiscardsResult(t *testing.T) {
	h := newHarness(t)
	user := dbtest.SeedUser(t, h.db, 5)
	job := submit(t, h, user.ID, model.KindWardrobe)

	gw := &interruptingGateway{h: h, jobID: job.ID}
	processor := NewProcessor(h.db, h.ledger, h.store, gw, h.publisher, Costs{"wardrobe": 2, "studio": 2}, ProcessorConfig{})

	err := processor.Process(context.Background(), h.queue.all()[0])
	require.ErrorIs(t, err, apperr.ErrConflict)

	failed := fetch(t, h, job.ID)
	assert.Equal(t, model.StatusFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Equal(t, "worker interrupted", *failed.ErrorMessage)
	assert.Nil(t, failed.ResultRef)

	assert.Equal(t, 5, h.balance(t, user.ID))
	assert.Empty(t, h.store.Keys())
	assert.Equal(t, []string{model.StatusProcessing}, h.publisher.statuses())

	txs, err := h.db.ListTransactions(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)
}
