package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pixelweave-server/modules/common/apperr"
	"pixelweave-server/modules/common/model"
)

const paymentColumns = `id, user_id, session_id, amount, credits, status, created, modified`

func scanPayment(row rowScanner) (*model.Payment, error) {
	var p model.Payment
	if err := row.Scan(&p.ID, &p.UserID, &p.SessionID, &p.Amount, &p.Credits, &p.Status, &p.Created, &p.Modified); err != nil {
		return nil, err
	}
	p.Created = p.Created.UTC()
	p.Modified = p.Modified.UTC()
	return &p, nil
}

// CreatePayment - PENDING 결제 기록 생성
func (c *Client) CreatePayment(ctx context.Context, p *model.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	ts := now()
	p.Status = model.PaymentPending
	p.Created, p.Modified = ts, ts

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.UserID, p.SessionID, p.Amount, p.Credits, p.Status, p.Created, p.Modified)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: session %s already recorded", apperr.ErrConflict, p.SessionID)
		}
		return persistErr("create payment", err)
	}
	return nil
}

// FetchPaymentBySession - session_id 로 결제 조회
func (c *Client) FetchPaymentBySession(ctx context.Context, q Querier, sessionID string) (*model.Payment, error) {
	row := q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE session_id = $1`, sessionID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: payment session %s", apperr.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, persistErr("fetch payment", err)
	}
	return p, nil
}

// CompletePayment - PENDING → COMPLETED (한 번만 성공)
// 전이에 성공하면 결제의 id, user_id, amount, credits 를 채워서 반환
func (c *Client) CompletePayment(ctx context.Context, q Querier, sessionID string) (*model.Payment, bool, error) {
	p := model.Payment{SessionID: sessionID, Status: model.PaymentCompleted}
	err := q.QueryRowContext(ctx,
		`UPDATE payments SET status = $1, modified = $2 WHERE session_id = $3 AND status = $4
		 RETURNING id, user_id, amount, credits`,
		model.PaymentCompleted, now(), sessionID, model.PaymentPending).
		Scan(&p.ID, &p.UserID, &p.Amount, &p.Credits)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, persistErr("complete payment", err)
	}
	return &p, true, nil
}

// ListPayments - 사용자 결제 내역 (최신순)
func (c *Client) ListPayments(ctx context.Context, userID string) ([]*model.Payment, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created DESC, id`, userID)
	if err != nil {
		return nil, persistErr("list payments", err)
	}
	defer rows.Close()

	payments := []*model.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, persistErr("scan payment", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list payments", err)
	}
	return payments, nil
}
