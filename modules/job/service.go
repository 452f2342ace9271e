package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"pixelweave-server/modules/common/apperr"
	"pixelweave-server/modules/common/credit"
	"pixelweave-server/modules/common/database"
	"pixelweave-server/modules/common/model"
	"pixelweave-server/modules/common/storage"
	"pixelweave-server/modules/generation"
)

// CancelledMessage - 사용자 취소 시 error_message
const CancelledMessage = "cancelled by user"

// Costs - kind 별 성공 시 차감 크레딧
type Costs map[string]int

// SubmitRequest - 작업 생성 요청
type SubmitRequest struct {
	UserID     string
	Kind       string
	Params     map[string]any
	Input      []byte // 업로드 원본 (WardrobeID 가 없을 때 필수)
	InputName  string
	WardrobeID string // studio 전용: 완료된 wardrobe 결과를 원본으로 사용
}

// Service - 작업 수명주기 (생성 / 조회 / 삭제)
type Service struct {
	db     *database.Client
	ledger *credit.Ledger
	store  storage.Storage
	queue  Queue
	costs  Costs
}

// NewService - Service 생성
func NewService(db *database.Client, ledger *credit.Ledger, store storage.Storage, queue Queue, costs Costs) *Service {
	return &Service{db: db, ledger: ledger, store: store, queue: queue, costs: costs}
}

// Cost - kind 의 크레딧 비용
func (s *Service) Cost(kind string) int {
	return s.costs[kind]
}

// SubmitJob - 검증 → 크레딧 사전 확인 → 원본 staging → PENDING 생성 → 큐 투입
func (s *Service) SubmitJob(ctx context.Context, req SubmitRequest) (*model.Job, error) {
	if !model.IsValidKind(req.Kind) {
		return nil, apperr.Validation("kind", "must be wardrobe or studio")
	}

	job := &model.Job{
		UserID: req.UserID,
		Kind:   req.Kind,
		Params: req.Params,
	}

	if req.WardrobeID != "" {
		if req.Kind != model.KindStudio {
			return nil, apperr.Validation("wardrobe_id", "only studio jobs can use a wardrobe image")
		}
		source, err := s.db.FetchJob(ctx, req.WardrobeID)
		if err != nil || source.UserID != req.UserID || source.Kind != model.KindWardrobe {
			return nil, fmt.Errorf("%w: wardrobe %s", apperr.ErrNotFound, req.WardrobeID)
		}
		if source.Status != model.StatusCompleted || source.ResultRef == nil {
			return nil, apperr.Validation("wardrobe_id", "wardrobe image is not ready")
		}
		job.WardrobeID = &source.ID
	} else if len(req.Input) == 0 {
		return nil, apperr.Validation("input_image", "this field is required")
	}

	// 사전 확인은 advisory, 실제 차감은 성공 시점
	if err := s.ledger.Precheck(ctx, req.UserID, s.Cost(req.Kind)); err != nil {
		return nil, err
	}

	if len(req.Input) > 0 {
		key := storage.StagingKey(req.UserID, req.InputName)
		if err := s.store.Put(ctx, key, req.Input, generation.DetectMimeType(req.Input)); err != nil {
			return nil, fmt.Errorf("%w: stage input: %v", apperr.ErrPersistence, err)
		}
		job.InputRef = &key
	}

	if err := s.db.CreateJob(ctx, job); err != nil {
		s.discardStaging(job)
		return nil, err
	}

	task := Task{JobID: job.ID}
	if job.InputRef != nil {
		task.InputRef = *job.InputRef
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		log.Printf("❌ Failed to dispatch job %s: %v", job.ID, err)
		if _, ferr := s.db.FailJob(ctx, job.ID, model.StatusPending, "failed to dispatch job"); ferr == nil {
			s.discardStaging(job)
			_ = s.db.ClearInputRef(ctx, job.ID)
		}
		return nil, fmt.Errorf("%w: dispatch: %v", apperr.ErrPersistence, err)
	}

	log.Printf("🚀 %s job %s submitted by %s", job.Kind, job.ID, job.UserID)
	return job, nil
}

// GetJob - 소유자 확인 포함 조회 (다른 사용자 / 다른 kind 는 NotFound)
func (s *Service) GetJob(ctx context.Context, userID, kind, jobID string) (*model.Job, error) {
	job, err := s.db.FetchJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID || (kind != "" && job.Kind != kind) {
		return nil, fmt.Errorf("%w: job %s", apperr.ErrNotFound, jobID)
	}
	return job, nil
}

// ListJobs - 사용자 작업 목록
func (s *Service) ListJobs(ctx context.Context, userID, kind string) ([]*model.Job, error) {
	if !model.IsValidKind(kind) {
		return nil, apperr.Validation("kind", "must be wardrobe or studio")
	}
	return s.db.ListJobs(ctx, userID, kind)
}

// DeleteJob - 작업 삭제 (wardrobe 면 파생 studio 작업도 함께), blob 은 커밋 후 정리
func (s *Service) DeleteJob(ctx context.Context, userID, kind, jobID string) error {
	var removed []*model.Job

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		job, err := s.db.LockJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if job.UserID != userID || (kind != "" && job.Kind != kind) {
			return fmt.Errorf("%w: job %s", apperr.ErrNotFound, jobID)
		}

		targets := []*model.Job{}
		if job.Kind == model.KindWardrobe {
			deps, err := s.db.ListDependents(ctx, tx, job.ID)
			if err != nil {
				return err
			}
			targets = append(targets, deps...)
		}
		targets = append(targets, job)

		ids := make([]string, 0, len(targets))
		for _, t := range targets {
			if t.Status == model.StatusProcessing {
				return fmt.Errorf("%w: job %s is processing", apperr.ErrConflict, t.ID)
			}
			ids = append(ids, t.ID)
		}
		if err := s.db.DeleteJobs(ctx, tx, ids...); err != nil {
			return err
		}
		removed = targets
		return nil
	})
	if err != nil {
		return err
	}

	for _, job := range removed {
		s.deleteBlobs(ctx, job)
	}
	log.Printf("🗑️  Deleted %d job(s) starting from %s", len(removed), jobID)
	return nil
}

// CancelJob - 대기 중인 작업 취소 (PENDING → FAILED, 차감 없음)
// 이미 처리 중인 작업은 생성 호출을 중단할 수 없으므로 거부
func (s *Service) CancelJob(ctx context.Context, userID, kind, jobID string) (*model.Job, error) {
	job, err := s.GetJob(ctx, userID, kind, jobID)
	if err != nil {
		return nil, err
	}

	ok, err := s.db.FailJob(ctx, job.ID, model.StatusPending, CancelledMessage)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.db.FetchJob(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: job %s is %s", apperr.ErrConflict, job.ID, current.Status)
	}

	s.discardStaging(job)
	if err := s.db.ClearInputRef(ctx, job.ID); err != nil {
		log.Warnf("⚠️  Failed to clear input ref of job %s: %v", job.ID, err)
	}
	log.Printf("🛑 Job %s cancelled by %s", job.ID, userID)
	return s.db.FetchJob(ctx, job.ID)
}

// Requeue - PENDING 작업을 큐에 다시 투입 (유실된 메시지 복구)
func (s *Service) Requeue(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.db.FetchJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.StatusPending {
		return nil, fmt.Errorf("%w: job %s is %s", apperr.ErrConflict, job.ID, job.Status)
	}
	if err := s.db.TouchJob(ctx, job.ID); err != nil {
		return nil, err
	}

	task := Task{JobID: job.ID}
	if job.InputRef != nil {
		task.InputRef = *job.InputRef
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("%w: dispatch: %v", apperr.ErrPersistence, err)
	}
	log.Printf("🔁 Job %s requeued", job.ID)
	return job, nil
}

// ImageURL - 완료된 작업의 결과 URL
func (s *Service) ImageURL(job *model.Job) string {
	if job.ResultRef == nil {
		return ""
	}
	return s.store.URL(*job.ResultRef)
}

func (s *Service) deleteBlobs(ctx context.Context, job *model.Job) {
	for _, ref := range []*string{job.ResultRef, job.InputRef} {
		if ref == nil {
			continue
		}
		if err := s.store.Delete(ctx, *ref); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			log.Warnf("⚠️  Failed to delete blob %s of job %s: %v", *ref, job.ID, err)
		}
	}
}

func (s *Service) discardStaging(job *model.Job) {
	if job.InputRef == nil {
		return
	}
	if err := s.store.Delete(context.Background(), *job.InputRef); err != nil {
		log.Warnf("⚠️  Failed to discard staging blob %s: %v", *job.InputRef, err)
	}
}
