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

// CreateUser - 사용자 생성 (ID 가 비어 있으면 발급)
func (c *Client) CreateUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	ts := now()
	user.Created, user.Modified = ts, ts

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO users (id, user_name, email, credit, created, modified) VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.UserName, user.Email, user.Credit, user.Created, user.Modified)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: email %s already registered", apperr.ErrConflict, user.Email)
		}
		return persistErr("create user", err)
	}
	return nil
}

// FetchUser - 사용자 조회
func (c *Client) FetchUser(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	err := c.db.QueryRowContext(ctx,
		`SELECT id, user_name, email, credit, created, modified FROM users WHERE id = $1`, userID).
		Scan(&u.ID, &u.UserName, &u.Email, &u.Credit, &u.Created, &u.Modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, userID)
	}
	if err != nil {
		return nil, persistErr("fetch user", err)
	}
	return &u, nil
}

// FetchUserByEmail - 이메일로 사용자 조회
func (c *Client) FetchUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := c.db.QueryRowContext(ctx,
		`SELECT id, user_name, email, credit, created, modified FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.UserName, &u.Email, &u.Credit, &u.Created, &u.Modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, email)
	}
	if err != nil {
		return nil, persistErr("fetch user", err)
	}
	return &u, nil
}

// ListTransactions - 사용자 크레딧 거래 내역 (최신순)
func (c *Client) ListTransactions(ctx context.Context, userID string) ([]*model.CreditTransaction, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, user_id, amount, balance_after, kind, reference, description, created
		 FROM credit_transactions WHERE user_id = $1 ORDER BY created DESC, id`, userID)
	if err != nil {
		return nil, persistErr("list transactions", err)
	}
	defer rows.Close()

	var out []*model.CreditTransaction
	for rows.Next() {
		var t model.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.BalanceAfter, &t.Kind, &t.Reference, &t.Description, &t.Created); err != nil {
			return nil, persistErr("scan transaction", err)
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list transactions", err)
	}
	return out, nil
}
