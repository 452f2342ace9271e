package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"pixelweave-server/modules/common/apperr"
	"pixelweave-server/modules/common/credit"
	"pixelweave-server/modules/common/database"
	"pixelweave-server/modules/common/model"
)

// Checkout - 생성된 결제 세션 정보
type Checkout struct {
	PaymentID   string `json:"payment_id"`
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
	Amount      int    `json:"amount"`
	Credits     int    `json:"credits"`
}

// Settlement - 웹훅 처리 결과
type Settlement struct {
	EventType string `json:"event_type"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Credits   int    `json:"credits,omitempty"`
	Balance   int    `json:"balance,omitempty"`
	// 이미 처리된 세션 (재전송)
	Duplicate bool `json:"duplicate"`
	// 처리 대상이 아닌 이벤트
	Ignored bool `json:"ignored"`
}

// Service - 결제 생성 및 정산
type Service struct {
	db              *database.Client
	ledger          *credit.Ledger
	provider        Provider
	creditPerDollar int
}

// NewService - Service 생성
func NewService(db *database.Client, ledger *credit.Ledger, provider Provider, creditPerDollar int) *Service {
	return &Service{db: db, ledger: ledger, provider: provider, creditPerDollar: creditPerDollar}
}

// CreateCheckout - 결제 세션 생성 + PENDING 결제 기록
func (s *Service) CreateCheckout(ctx context.Context, userID string, amount int, origin string) (*Checkout, error) {
	if amount <= 0 {
		return nil, apperr.Validation("amount", "must be at least 1")
	}
	if _, err := s.db.FetchUser(ctx, userID); err != nil {
		return nil, err
	}

	origin = strings.TrimRight(origin, "/")
	payment := &model.Payment{
		ID:      uuid.NewString(),
		UserID:  userID,
		Amount:  amount,
		Credits: amount * s.creditPerDollar,
	}

	session, err := s.provider.CreateSession(ctx, SessionRequest{
		UserID:     userID,
		PaymentID:  payment.ID,
		AmountUSD:  amount,
		Credits:    payment.Credits,
		SuccessURL: origin + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  origin + "/payment/failure",
	})
	if err != nil {
		return nil, err
	}

	payment.SessionID = session.ID
	if err := s.db.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"user_id": userID, "session_id": session.ID}).
		Printf("💳 Checkout created: $%d → %d credits", amount, payment.Credits)
	return &Checkout{
		PaymentID:   payment.ID,
		SessionID:   session.ID,
		CheckoutURL: session.URL,
		Amount:      amount,
		Credits:     payment.Credits,
	}, nil
}

// ConfirmPayment - 서명 검증 → 이벤트 종류 확인 → 정산
// 서명이 틀리면 아무 상태도 바꾸지 않음
func (s *Service) ConfirmPayment(ctx context.Context, payload []byte, signature string) (*Settlement, error) {
	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		log.Warnf("🔒 Webhook rejected: %v", err)
		return nil, err
	}

	if event.Type != EventCheckoutCompleted {
		log.Debugf("⏭️  Ignoring webhook event %s (%s)", event.ID, event.Type)
		return &Settlement{EventType: event.Type, Ignored: true}, nil
	}

	result, err := s.Settle(ctx, event.SessionID)
	if err != nil {
		return nil, err
	}
	result.EventType = event.Type
	return result, nil
}

// Settle - PENDING → COMPLETED 전이와 크레딧 충전을 한 트랜잭션으로
// 같은 세션을 여러 번 정산해도 충전은 한 번
func (s *Service) Settle(ctx context.Context, sessionID string) (*Settlement, error) {
	if sessionID == "" {
		return nil, apperr.Validation("session_id", "this field is required")
	}
	result := &Settlement{SessionID: sessionID}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		payment, ok, err := s.db.CompletePayment(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if !ok {
			existing, err := s.db.FetchPaymentBySession(ctx, tx, sessionID)
			if err != nil {
				return err
			}
			result.UserID = existing.UserID
			result.Credits = existing.Credits
			result.Duplicate = true
			return nil
		}

		balance, err := s.ledger.Credit(ctx, tx, payment.UserID, payment.Credits, payment.ID,
			fmt.Sprintf("payment $%d", payment.Amount))
		if err != nil {
			return err
		}
		result.UserID = payment.UserID
		result.Credits = payment.Credits
		result.Balance = balance
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			log.Errorf("❌ Settlement of session %s failed: %v", sessionID, err)
		}
		return nil, err
	}

	entry := log.WithFields(log.Fields{"user_id": result.UserID, "session_id": sessionID})
	if result.Duplicate {
		entry.Printf("🔁 Payment already settled, skipping")
	} else {
		entry.Printf("✅ Payment settled: +%d credits (balance %d)", result.Credits, result.Balance)
	}
	return result, nil
}

// History - 사용자 결제 내역
func (s *Service) History(ctx context.Context, userID string) ([]*model.Payment, error) {
	return s.db.ListPayments(ctx, userID)
}
