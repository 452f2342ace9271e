package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"pixelweave-server/modules/common/apperr"
	"pixelweave-server/modules/common/credit"
	"pixelweave-server/modules/common/database"
	"pixelweave-server/modules/common/logger"
	"pixelweave-server/modules/common/model"
	"pixelweave-server/modules/common/storage"
	"pixelweave-server/modules/generation"
	"pixelweave-server/modules/notification"
)

// ProcessorConfig - worker 동작 설정
type ProcessorConfig struct {
	GatewayTimeout time.Duration
	StoreRetries   int
	CommitRetries  int
	RetryDelay     time.Duration
	// nil 이면 원본 바이트 그대로 저장
	Convert func([]byte) ([]byte, error)
}

// Processor - 큐에서 꺼낸 작업 하나를 끝까지 처리
type Processor struct {
	db        *database.Client
	ledger    *credit.Ledger
	store     storage.Storage
	gateway   generation.Gateway
	publisher notification.Publisher
	costs     Costs
	cfg       ProcessorConfig
}

// NewProcessor - Processor 생성
func NewProcessor(db *database.Client, ledger *credit.Ledger, store storage.Storage, gateway generation.Gateway,
	publisher notification.Publisher, costs Costs, cfg ProcessorConfig) *Processor {
	if cfg.StoreRetries < 1 {
		cfg.StoreRetries = 3
	}
	if cfg.CommitRetries < 1 {
		cfg.CommitRetries = 3
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 3 * time.Minute
	}
	return &Processor{db: db, ledger: ledger, store: store, gateway: gateway, publisher: publisher, costs: costs, cfg: cfg}
}

// Process - 선점 → 생성 → 결과 저장 → 완료(차감) 또는 실패
// 반환 에러는 로깅용, 작업 상태는 항상 DB 에 반영됨
func (p *Processor) Process(ctx context.Context, task Task) error {
	claimed, err := p.db.ClaimJob(ctx, task.JobID)
	if err != nil {
		return err
	}
	if !claimed {
		p.handleUnclaimed(ctx, task)
		return nil
	}

	job, err := p.db.FetchJob(ctx, task.JobID)
	if err != nil {
		return err
	}
	entry := logger.ForJob(job.ID, job.UserID)
	entry.Printf("🔄 Processing %s job", job.Kind)

	// staging 원본은 어떤 경로로 끝나든 정리
	defer p.releaseInput(job)

	p.notify(ctx, job, notification.JobEvent(job.Kind, job.ID, model.StatusProcessing))

	if err := p.run(ctx, job); err != nil {
		entry.Printf("❌ Job failed: %v", err)
		p.fail(ctx, job, err.Error())
		return err
	}
	return nil
}

func (p *Processor) run(ctx context.Context, job *model.Job) error {
	source, err := p.loadSource(ctx, job)
	if err != nil {
		return err
	}

	image, err := p.generate(ctx, job, source)
	if err != nil {
		return err
	}

	contentType := generation.DetectMimeType(image)
	if p.cfg.Convert != nil {
		if converted, cerr := p.cfg.Convert(image); cerr != nil {
			log.Warnf("⚠️  WebP conversion failed for job %s, storing original: %v", job.ID, cerr)
		} else {
			image, contentType = converted, "image/webp"
		}
	}

	resultRef := storage.ResultKey(job.Kind, job.UserID, generation.ExtensionFor(contentType))
	if err := p.storeResult(ctx, resultRef, image, contentType); err != nil {
		return fmt.Errorf("failed to store generated image: %v", err)
	}

	if err := p.complete(ctx, job, resultRef); err != nil {
		// 참조 없는 결과 blob 정리
		log.Errorf("❌ Orphaned result %s for job %s: %v", resultRef, job.ID, err)
		if derr := p.store.Delete(context.Background(), resultRef); derr != nil {
			log.Warnf("⚠️  Failed to remove orphaned result %s: %v", resultRef, derr)
		}
		return fmt.Errorf("failed to record completion: %w", err)
	}
	return nil
}

// loadSource - 업로드 원본 또는 원본 wardrobe 결과
func (p *Processor) loadSource(ctx context.Context, job *model.Job) ([]byte, error) {
	var ref string
	switch {
	case job.InputRef != nil:
		ref = *job.InputRef
	case job.WardrobeID != nil:
		wardrobe, err := p.db.FetchJob(ctx, *job.WardrobeID)
		if err != nil {
			return nil, fmt.Errorf("source wardrobe unavailable: %v", err)
		}
		if wardrobe.ResultRef == nil {
			return nil, errors.New("source wardrobe has no image")
		}
		ref = *wardrobe.ResultRef
	default:
		return nil, errors.New("job has no input image")
	}

	data, err := p.store.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read input image: %v", err)
	}
	return data, nil
}

// generate - 게이트웨이 호출 (종료 신호와 분리, 자체 타임아웃, panic 복구)
func (p *Processor) generate(ctx context.Context, job *model.Job, source []byte) (image []byte, err error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.GatewayTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("💥 Gateway panic for job %s: %v", job.ID, r)
			image, err = nil, fmt.Errorf("%w: unexpected generator error", apperr.ErrGenerationFailed)
		}
	}()

	image, err = p.gateway.Generate(callCtx, job.Kind, source, job.Params)
	if err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", apperr.ErrGenerationFailed)
	}
	return image, nil
}

// storeResult - 결과 업로드 (로컬 재시도)
func (p *Processor) storeResult(ctx context.Context, key string, data []byte, contentType string) error {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.StoreRetries; attempt++ {
		if lastErr = p.store.Put(context.WithoutCancel(ctx), key, data, contentType); lastErr == nil {
			return nil
		}
		log.Warnf("⚠️  Result upload attempt %d/%d failed: %v", attempt, p.cfg.StoreRetries, lastErr)
		if attempt < p.cfg.StoreRetries {
			time.Sleep(p.cfg.RetryDelay)
		}
	}
	return lastErr
}

// complete - COMPLETED 전이 + 차감을 한 트랜잭션으로 (재시도 포함)
func (p *Processor) complete(ctx context.Context, job *model.Job, resultRef string) error {
	cost := p.costs[job.Kind]
	ctx = context.WithoutCancel(ctx)

	var lastErr error
	for attempt := 1; attempt <= p.cfg.CommitRetries; attempt++ {
		var balance int
		lastErr = p.db.WithTx(ctx, func(tx *sql.Tx) error {
			ok, err := p.db.CompleteJob(ctx, tx, job.ID, resultRef)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: job %s is no longer processing", apperr.ErrConflict, job.ID)
			}
			balance, err = p.ledger.Debit(ctx, tx, job.UserID, cost, job.ID, job.Kind+" generation")
			return err
		})
		if lastErr == nil {
			logger.ForJob(job.ID, job.UserID).Printf("✅ Job completed (-%d credits, balance %d)", cost, balance)
			ev := notification.JobEvent(job.Kind, job.ID, model.StatusCompleted)
			ev.ImageURL = p.store.URL(resultRef)
			p.notify(ctx, job, ev)
			return nil
		}
		if errors.Is(lastErr, apperr.ErrConflict) {
			return lastErr
		}
		log.Warnf("⚠️  Completion attempt %d/%d for job %s failed: %v", attempt, p.cfg.CommitRetries, job.ID, lastErr)
		if attempt < p.cfg.CommitRetries {
			time.Sleep(p.cfg.RetryDelay)
		}
	}
	return lastErr
}

// fail - PROCESSING → FAILED + 알림 (차감 없음)
func (p *Processor) fail(ctx context.Context, job *model.Job, message string) {
	ctx = context.WithoutCancel(ctx)
	ok, err := p.db.FailJob(ctx, job.ID, model.StatusProcessing, message)
	if err != nil {
		log.Errorf("❌ Failed to mark job %s FAILED: %v", job.ID, err)
		return
	}
	if !ok {
		return
	}
	ev := notification.JobEvent(job.Kind, job.ID, model.StatusFailed)
	ev.Error = message
	p.notify(ctx, job, ev)
}

// handleUnclaimed - 선점 실패: 작업이 없거나 이미 끝났으면 staging 정리
// 다른 worker 가 PROCESSING 중이면 그 worker 가 정리함
func (p *Processor) handleUnclaimed(ctx context.Context, task Task) {
	job, err := p.db.FetchJob(ctx, task.JobID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		log.Printf("⚠️  Job %s no longer exists, dropping task", task.JobID)
		if task.InputRef != "" {
			p.deleteBlob(task.InputRef)
		}
	case err != nil:
		log.Errorf("❌ Failed to inspect unclaimed job %s: %v", task.JobID, err)
	case job.IsTerminal():
		log.Printf("⚠️  Job %s already %s, dropping duplicate delivery", job.ID, job.Status)
		p.releaseInput(job)
	default:
		log.Printf("⏭️  Job %s is %s by another worker, skipping", job.ID, job.Status)
	}
}

func (p *Processor) releaseInput(job *model.Job) {
	if job.InputRef == nil {
		return
	}
	p.deleteBlob(*job.InputRef)
	if err := p.db.ClearInputRef(context.Background(), job.ID); err != nil {
		log.Warnf("⚠️  Failed to clear input ref of job %s: %v", job.ID, err)
	}
}

func (p *Processor) deleteBlob(ref string) {
	if err := p.store.Delete(context.Background(), ref); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		log.Warnf("⚠️  Failed to delete staging blob %s: %v", ref, err)
	}
}

func (p *Processor) notify(ctx context.Context, job *model.Job, ev notification.Event) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(context.WithoutCancel(ctx), job.UserID, ev); err != nil {
		log.Warnf("⚠️  Notification for job %s not delivered: %v", job.ID, err)
	}
}
