package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"pixelweave-server/modules/common/apperr"
	"pixelweave-server/modules/common/model"
)

const jobColumns = `id, user_id, kind, wardrobe_id, status, error_message, params, input_ref, result_ref,
	created, modified, started_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var (
		job                    model.Job
		wardrobeID, errMsg     sql.NullString
		inputRef, resultRef    sql.NullString
		startedAt, completedAt sql.NullTime
		params                 string
	)
	if err := row.Scan(&job.ID, &job.UserID, &job.Kind, &wardrobeID, &job.Status, &errMsg, &params,
		&inputRef, &resultRef, &job.Created, &job.Modified, &startedAt, &completedAt); err != nil {
		return nil, err
	}

	job.WardrobeID = nullString(wardrobeID)
	job.ErrorMessage = nullString(errMsg)
	job.InputRef = nullString(inputRef)
	job.ResultRef = nullString(resultRef)
	job.StartedAt = nullTime(startedAt)
	job.CompletedAt = nullTime(completedAt)
	job.Created = job.Created.UTC()
	job.Modified = job.Modified.UTC()

	if err := json.Unmarshal([]byte(params), &job.Params); err != nil {
		return nil, fmt.Errorf("failed to parse params of job %s: %w", job.ID, err)
	}
	return &job, nil
}

func collectJobs(rows *sql.Rows) ([]*model.Job, error) {
	defer rows.Close()

	jobs := []*model.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, persistErr("scan job", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate jobs", err)
	}
	return jobs, nil
}

// CreateJob - PENDING 상태로 Job 생성
func (c *Client) CreateJob(ctx context.Context, job *model.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Params == nil {
		job.Params = map[string]any{}
	}
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("%w: params not serializable: %v", apperr.ErrValidation, err)
	}

	ts := now()
	job.Status = model.StatusPending
	job.Created, job.Modified = ts, ts

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO generation_jobs (id, user_id, kind, wardrobe_id, status, params, input_ref, created, modified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.UserID, job.Kind, job.WardrobeID, job.Status, string(params), job.InputRef, job.Created, job.Modified)
	if err != nil {
		return persistErr("create job", err)
	}

	log.Printf("📝 Job created: %s (kind: %s, user: %s)", job.ID, job.Kind, job.UserID)
	return nil
}

// FetchJob - Job 조회
func (c *Client) FetchJob(ctx context.Context, jobID string) (*model.Job, error) {
	return c.fetchJob(ctx, c.db, jobID)
}

func (c *Client) fetchJob(ctx context.Context, q Querier, jobID string) (*model.Job, error) {
	return c.selectJob(ctx, q, `SELECT `+jobColumns+` FROM generation_jobs WHERE id = $1`, jobID)
}

func (c *Client) selectJob(ctx context.Context, q Querier, query, jobID string) (*model.Job, error) {
	row := q.QueryRowContext(ctx, query, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s", apperr.ErrNotFound, jobID)
	}
	if err != nil {
		return nil, persistErr("fetch job", err)
	}
	return job, nil
}

// ListJobs - 사용자 Job 목록 (kind 별, 최신순)
func (c *Client) ListJobs(ctx context.Context, userID, kind string) ([]*model.Job, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM generation_jobs WHERE user_id = $1 AND kind = $2 ORDER BY created DESC, id`,
		userID, kind)
	if err != nil {
		return nil, persistErr("list jobs", err)
	}
	return collectJobs(rows)
}

// ListDependents - wardrobe job 을 원본으로 쓰는 studio job 목록
func (c *Client) ListDependents(ctx context.Context, q Querier, wardrobeID string) ([]*model.Job, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM generation_jobs WHERE wardrobe_id = $1`, wardrobeID)
	if err != nil {
		return nil, persistErr("list dependents", err)
	}
	return collectJobs(rows)
}

// ListStaleJobs - status 상태로 before 이전부터 머물러 있는 Job 목록
func (c *Client) ListStaleJobs(ctx context.Context, status string, before time.Time) ([]*model.Job, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM generation_jobs WHERE status = $1 AND modified < $2 ORDER BY modified`,
		status, before.UTC())
	if err != nil {
		return nil, persistErr("list stale jobs", err)
	}
	return collectJobs(rows)
}

// ListLeftoverInputs - 종료됐는데 staging blob 이 남아 있는 Job 목록
func (c *Client) ListLeftoverInputs(ctx context.Context) ([]*model.Job, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM generation_jobs WHERE input_ref IS NOT NULL AND status IN ($1, $2)`,
		model.StatusCompleted, model.StatusFailed)
	if err != nil {
		return nil, persistErr("list leftover inputs", err)
	}
	return collectJobs(rows)
}

// ClaimJob - PENDING → PROCESSING (조건부 업데이트, 한 worker 만 성공)
func (c *Client) ClaimJob(ctx context.Context, jobID string) (bool, error) {
	ts := now()
	res, err := c.db.ExecContext(ctx,
		`UPDATE generation_jobs SET status = $1, started_at = $2, modified = $3 WHERE id = $4 AND status = $5`,
		model.StatusProcessing, ts, ts, jobID, model.StatusPending)
	if err != nil {
		return false, persistErr("claim job", err)
	}
	return affectedOne(res)
}

// FailJob - from 상태일 때만 FAILED 로 전이
func (c *Client) FailJob(ctx context.Context, jobID, from, message string) (bool, error) {
	ts := now()
	res, err := c.db.ExecContext(ctx,
		`UPDATE generation_jobs SET status = $1, error_message = $2, modified = $3, completed_at = $4
		 WHERE id = $5 AND status = $6`,
		model.StatusFailed, message, ts, ts, jobID, from)
	if err != nil {
		return false, persistErr("fail job", err)
	}
	ok, err := affectedOne(res)
	if ok {
		log.Printf("❌ Job %s marked FAILED: %s", jobID, message)
	}
	return ok, err
}

// CompleteJob - PROCESSING → COMPLETED (호출자의 트랜잭션 안에서)
func (c *Client) CompleteJob(ctx context.Context, q Querier, jobID, resultRef string) (bool, error) {
	ts := now()
	res, err := q.ExecContext(ctx,
		`UPDATE generation_jobs SET status = $1, result_ref = $2, error_message = NULL, modified = $3, completed_at = $4
		 WHERE id = $5 AND status = $6`,
		model.StatusCompleted, resultRef, ts, ts, jobID, model.StatusProcessing)
	if err != nil {
		return false, persistErr("complete job", err)
	}
	return affectedOne(res)
}

// ClearInputRef - staging blob 해제 표시
func (c *Client) ClearInputRef(ctx context.Context, jobID string) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE generation_jobs SET input_ref = NULL, modified = $1 WHERE id = $2 AND input_ref IS NOT NULL`,
		now(), jobID)
	if err != nil {
		return persistErr("clear input ref", err)
	}
	return nil
}

// TouchJob - modified 갱신 (재큐잉 시 stale 판정 리셋)
func (c *Client) TouchJob(ctx context.Context, jobID string) error {
	_, err := c.db.ExecContext(ctx, `UPDATE generation_jobs SET modified = $1 WHERE id = $2`, now(), jobID)
	if err != nil {
		return persistErr("touch job", err)
	}
	return nil
}

// DeleteJobs - Job 삭제 (호출자의 트랜잭션 안에서)
// PROCESSING 이거나 이미 없는 Job 이 하나라도 있으면 ErrConflict
func (c *Client) DeleteJobs(ctx context.Context, q Querier, jobIDs ...string) error {
	for _, id := range jobIDs {
		res, err := q.ExecContext(ctx,
			`DELETE FROM generation_jobs WHERE id = $1 AND status <> $2`, id, model.StatusProcessing)
		if err != nil {
			return persistErr("delete job", err)
		}
		ok, err := affectedOne(res)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: job %s is processing or already removed", apperr.ErrConflict, id)
		}
	}
	return nil
}

// LockJob - 트랜잭션 안에서 Job 다시 읽기 (pgx 는 행 잠금)
func (c *Client) LockJob(ctx context.Context, q Querier, jobID string) (*model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1`
	if c.driver == "pgx" {
		query += ` FOR UPDATE`
	}
	return c.selectJob(ctx, q, query, jobID)
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, persistErr("rows affected", err)
	}
	return n == 1, nil
}
