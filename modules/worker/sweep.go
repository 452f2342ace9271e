package worker

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"pixelweave-server/modules/common/database"
	"pixelweave-server/modules/common/model"
	"pixelweave-server/modules/common/storage"
	"pixelweave-server/modules/job"
	"pixelweave-server/modules/notification"
)

// InterruptedMessage - 처리 중 worker 가 사라진 작업의 error_message
const InterruptedMessage = "worker interrupted"

// Requeuer - PENDING 작업 재투입 (*job.Service)
type Requeuer interface {
	Requeue(ctx context.Context, jobID string) (*model.Job, error)
}

// SweepReport - 한 번의 정리 결과
type SweepReport struct {
	Failed   int `json:"failed"`
	Requeued int `json:"requeued"`
	Released int `json:"released"`
}

// Sweeper - 프로세스 중단 후 남은 상태 정리
type Sweeper struct {
	db         *database.Client
	store      storage.Storage
	requeuer   Requeuer
	publisher  notification.Publisher
	staleAfter time.Duration
}

// NewSweeper - Sweeper 생성
func NewSweeper(db *database.Client, store storage.Storage, requeuer Requeuer, publisher notification.Publisher, staleAfter time.Duration) *Sweeper {
	return &Sweeper{db: db, store: store, requeuer: requeuer, publisher: publisher, staleAfter: staleAfter}
}

// Sweep - staleAfter 이상 멈춰 있는 작업 정리
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	return s.SweepBefore(ctx, time.Now().Add(-s.staleAfter))
}

// SweepBefore - cutoff 이전부터 멈춰 있는 작업 정리
//   - PROCESSING → FAILED (생성 결과를 알 수 없으므로 차감 없음)
//   - PENDING → 큐 재투입
//   - 종료된 작업의 staging blob 해제
func (s *Sweeper) SweepBefore(ctx context.Context, cutoff time.Time) (SweepReport, error) {
	var report SweepReport

	processing, err := s.db.ListStaleJobs(ctx, model.StatusProcessing, cutoff)
	if err != nil {
		return report, err
	}
	for _, j := range processing {
		ok, err := s.db.FailJob(ctx, j.ID, model.StatusProcessing, InterruptedMessage)
		if err != nil {
			return report, err
		}
		if !ok {
			continue
		}
		report.Failed++
		log.Printf("🧹 Job %s marked FAILED (%s)", j.ID, InterruptedMessage)

		ev := notification.JobEvent(j.Kind, j.ID, model.StatusFailed)
		ev.Error = InterruptedMessage
		if s.publisher != nil {
			if err := s.publisher.Publish(ctx, j.UserID, ev); err != nil {
				log.Warnf("⚠️  Notification for job %s not delivered: %v", j.ID, err)
			}
		}
	}

	pending, err := s.db.ListStaleJobs(ctx, model.StatusPending, cutoff)
	if err != nil {
		return report, err
	}
	for _, j := range pending {
		if _, err := s.requeuer.Requeue(ctx, j.ID); err != nil {
			log.Warnf("⚠️  Failed to requeue job %s: %v", j.ID, err)
			continue
		}
		report.Requeued++
	}

	leftovers, err := s.db.ListLeftoverInputs(ctx)
	if err != nil {
		return report, err
	}
	for _, j := range leftovers {
		if err := s.store.Delete(ctx, *j.InputRef); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			log.Warnf("⚠️  Failed to delete staging blob %s: %v", *j.InputRef, err)
			continue
		}
		if err := s.db.ClearInputRef(ctx, j.ID); err != nil {
			return report, err
		}
		report.Released++
	}

	log.Printf("🧹 Sweep done: failed=%d requeued=%d released=%d", report.Failed, report.Requeued, report.Released)
	return report, nil
}

var _ Requeuer = (*job.Service)(nil)
