package credit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"pixelweave-server/modules/common/apperr"
	"pixelweave-server/modules/common/database"
	"pixelweave-server/modules/common/model"
)

var ErrInvalidAmount = fmt.Errorf("%w: credit amount must be positive", apperr.ErrValidation)

// Ledger - 사용자 크레딧 잔액 (상대 증감 + 거래 기록)
//
// 차감은 잔액 하한을 두지 않는다. 사전 확인(Precheck)과 실제 차감 사이에
// 동시 요청이 끼어들면 잔액이 음수가 될 수 있다.
type Ledger struct {
	db *sql.DB
}

// NewLedger - Ledger 생성
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Precheck - 잔액이 required 이상인지 확인 (advisory read)
func (l *Ledger) Precheck(ctx context.Context, userID string, required int) error {
	balance, err := l.Balance(ctx, userID)
	if err != nil {
		return err
	}
	if balance < required {
		log.Printf("💳 Insufficient credits: user=%s balance=%d required=%d", userID, balance, required)
		return fmt.Errorf("%w: balance %d, required %d", apperr.ErrInsufficientCredits, balance, required)
	}
	return nil
}

// Balance - 현재 잔액 조회
func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := l.db.QueryRowContext(ctx, `SELECT credit FROM users WHERE id = $1`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: user %s", apperr.ErrNotFound, userID)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read balance: %v", apperr.ErrPersistence, err)
	}
	return balance, nil
}

// Debit - 크레딧 차감 및 트랜잭션 기록 (q 는 *sql.DB 또는 *sql.Tx)
func (l *Ledger) Debit(ctx context.Context, q database.Querier, userID string, amount int, reference, description string) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	balance, err := l.apply(ctx, q, userID, -amount, model.TransactionDebit, reference, description)
	if err != nil {
		return 0, err
	}
	log.Printf("💰 Credits deducted: user=%s -%d → %d (ref: %s)", userID, amount, balance, reference)
	return balance, nil
}

// Credit - 크레딧 충전 및 트랜잭션 기록
func (l *Ledger) Credit(ctx context.Context, q database.Querier, userID string, amount int, reference, description string) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	balance, err := l.apply(ctx, q, userID, amount, model.TransactionCredit, reference, description)
	if err != nil {
		return 0, err
	}
	log.Printf("💰 Credits added: user=%s +%d → %d (ref: %s)", userID, amount, balance, reference)
	return balance, nil
}

// apply - 저장된 값 기준 상대 갱신 (read-then-write 없음)
func (l *Ledger) apply(ctx context.Context, q database.Querier, userID string, delta int, kind, reference, description string) (int, error) {
	ts := time.Now().UTC().Truncate(time.Microsecond)

	var balance int
	err := q.QueryRowContext(ctx,
		`UPDATE users SET credit = credit + $1, modified = $2 WHERE id = $3 RETURNING credit`,
		delta, ts, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: user %s", apperr.ErrNotFound, userID)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: update credit: %v", apperr.ErrPersistence, err)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO credit_transactions (id, user_id, amount, balance_after, kind, reference, description, created)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), userID, delta, balance, kind, reference, description, ts)
	if err != nil {
		return 0, fmt.Errorf("%w: record transaction: %v", apperr.ErrPersistence, err)
	}
	return balance, nil
}
