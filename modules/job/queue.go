package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// QueueName - 작업 큐 Redis 키
const QueueName = "jobs:queue"

// Task - 큐 메시지
type Task struct {
	JobID    string `json:"job_id"`
	InputRef string `json:"input_ref,omitempty"`
}

// Queue - 작업 투입 (요청 처리 중 블록하지 않음)
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
}

// RedisQueue - LPUSH / BRPOP 기반 at-least-once 큐
type RedisQueue struct {
	rdb  *redis.Client
	name string
}

func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb, name: QueueName}
}

// Enqueue - 큐 앞쪽에 추가
func (q *RedisQueue) Enqueue(ctx context.Context, task Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.name, body).Err(); err != nil {
		return fmt.Errorf("redis LPUSH failed: %w", err)
	}
	log.Printf("📥 Job %s enqueued to %s", task.JobID, q.name)
	return nil
}

// PushBack - 꺼낸 작업을 소비 쪽 끝에 되돌림 (다음 BRPOP 에서 바로 나옴)
func (q *RedisQueue) PushBack(ctx context.Context, task Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	return q.rdb.RPush(ctx, q.name, body).Err()
}

// Dequeue - timeout 동안 대기, 작업이 없으면 (nil, nil)
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	result, err := q.rdb.BRPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis BRPOP failed: %w", err)
	}

	// result[0] 은 큐 이름, result[1] 이 메시지
	var task Task
	if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
		// 예전 형식 (job_id 문자열만)
		task = Task{JobID: result[1]}
	}
	if task.JobID == "" {
		return nil, fmt.Errorf("malformed task: %q", result[1])
	}
	return &task, nil
}

// Len - 대기 중인 작업 수
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.name).Result()
}
