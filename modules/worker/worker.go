package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ncobase/ncore/concurrency/worker"
	log "github.com/sirupsen/logrus"

	"pixelweave-server/modules/job"
)

// Source - 작업 큐 소비 측
type Source interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*job.Task, error)
	PushBack(ctx context.Context, task job.Task) error
}

// TaskProcessor - 작업 하나 처리 (*job.Processor)
type TaskProcessor interface {
	Process(ctx context.Context, task job.Task) error
}

// Config - worker 풀 설정
type Config struct {
	Concurrency int
	// 풀이 작업 하나를 기다리는 최대 시간 (게이트웨이 타임아웃보다 길게)
	TaskTimeout time.Duration
	PollTimeout time.Duration
	RetryDelay  time.Duration
}

// Runner - Redis 큐 → ncore worker 풀
type Runner struct {
	source      Source
	processor   TaskProcessor
	pool        *worker.Pool
	concurrency int
	pollTimeout time.Duration
	retryDelay  time.Duration

	busy     atomic.Int64
	mu       sync.Mutex
	stopping bool
	inflight sync.WaitGroup
}

// NewRunner - Runner 생성
func NewRunner(source Source, processor TaskProcessor, cfg Config) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 5 * time.Minute
	}
	if cfg.PollTimeout < time.Second {
		cfg.PollTimeout = time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}

	r := &Runner{
		source:      source,
		processor:   processor,
		concurrency: cfg.Concurrency,
		pollTimeout: cfg.PollTimeout,
		retryDelay:  cfg.RetryDelay,
	}
	r.pool = worker.NewPool(&worker.Config{
		MaxWorkers:  cfg.Concurrency,
		QueueSize:   cfg.Concurrency,
		TaskTimeout: cfg.TaskTimeout,
	}, r)
	return r
}

// Run - ctx 가 끝날 때까지 큐 감시
func (r *Runner) Run(ctx context.Context) error {
	r.pool.Start()
	log.Printf("👀 Watching queue: %s (workers: %d)", job.QueueName, r.concurrency)

	for {
		if ctx.Err() != nil {
			return nil
		}

		// 빈 worker 가 있을 때만 꺼냄
		if r.busy.Load() >= int64(r.concurrency) {
			if !sleep(ctx, 200*time.Millisecond) {
				return nil
			}
			continue
		}

		task, err := r.source.Dequeue(ctx, r.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("❌ Queue read error: %v", err)
			if !sleep(ctx, r.retryDelay) {
				return nil
			}
			continue
		}
		if task == nil {
			continue
		}

		log.Printf("🎯 Received job: %s", task.JobID)
		r.dispatch(ctx, *task)
	}
}

func (r *Runner) dispatch(ctx context.Context, task job.Task) {
	r.busy.Add(1)
	err := r.pool.Submit(task)
	if err == nil {
		return
	}
	r.busy.Add(-1)

	if errors.Is(err, worker.ErrQueueFull) {
		log.Printf("⏳ Worker pool full, returning job %s to queue", task.JobID)
	} else {
		log.Errorf("❌ Failed to submit job %s: %v", task.JobID, err)
	}
	if perr := r.source.PushBack(context.WithoutCancel(ctx), task); perr != nil {
		log.Errorf("❌ Job %s lost from queue, sweep will requeue it: %v", task.JobID, perr)
	}
	sleep(ctx, 200*time.Millisecond)
}

// Process - ncore worker.Processor 구현
func (r *Runner) Process(task any) error {
	t, ok := task.(job.Task)
	if !ok {
		r.busy.Add(-1)
		return fmt.Errorf("unexpected task type %T", task)
	}

	r.mu.Lock()
	if r.stopping {
		r.mu.Unlock()
		r.busy.Add(-1)
		return r.source.PushBack(context.Background(), t)
	}
	r.inflight.Add(1)
	r.mu.Unlock()

	defer func() {
		r.busy.Add(-1)
		r.inflight.Done()
		if p := recover(); p != nil {
			log.Errorf("💥 Worker panic on job %s: %v", t.JobID, p)
		}
	}()

	// 진행 중 작업은 종료 신호와 무관하게 끝까지 처리
	return r.processor.Process(context.Background(), t)
}

// Stop - 새 작업 수락 중단 후 진행 중 작업 대기
func (r *Runner) Stop(ctx context.Context) {
	r.mu.Lock()
	r.stopping = true
	r.mu.Unlock()

	r.pool.Stop(ctx)

	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("✅ Worker stopped, all in-flight jobs finished")
	case <-ctx.Done():
		log.Warnf("⚠️  Worker stop timed out with %d job(s) still running", r.busy.Load())
	}
}

// Metrics - 풀 지표 + 처리 중 작업 수
func (r *Runner) Metrics() map[string]int64 {
	m := r.pool.GetMetrics()
	m["busy"] = r.busy.Load()
	m["concurrency"] = int64(r.concurrency)
	return m
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
