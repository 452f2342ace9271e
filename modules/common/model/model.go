package model

import "time"

// User - users 테이블 구조
type User struct {
	ID       string    `json:"id"`
	UserName string    `json:"user_name"`
	Email    string    `json:"email"`
	Credit   int       `json:"credit"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// Job - generation_jobs 테이블 구조 (Wardrobe / Studio 공용)
type Job struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Kind         string         `json:"kind"`
	WardrobeID   *string        `json:"wardrobe_id,omitempty"` // studio job 의 원본 wardrobe
	Status       string         `json:"status"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	Params       map[string]any `json:"params"`
	InputRef     *string        `json:"-"` // staging blob, worker 가 해제
	ResultRef    *string        `json:"-"`
	Created      time.Time      `json:"created"`
	Modified     time.Time      `json:"modified"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// IsTerminal - COMPLETED / FAILED 여부
func (j *Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Payment - payments 테이블 구조
type Payment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Amount    int       `json:"amount"` // dollars
	Credits   int       `json:"credits"`
	Status    string    `json:"status"`
	Created   time.Time `json:"created"`
	Modified  time.Time `json:"modified"`
}

// CreditTransaction - credit_transactions 테이블 구조
type CreditTransaction struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Amount       int       `json:"amount"` // 차감은 음수
	BalanceAfter int       `json:"balance_after"`
	Kind         string    `json:"kind"`
	Reference    string    `json:"reference"`
	Description  string    `json:"description"`
	Created      time.Time `json:"created"`
}

const (
	KindWardrobe = "wardrobe"
	KindStudio   = "studio"
)

const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
)

const (
	TransactionDebit  = "DEBIT"
	TransactionCredit = "CREDIT"
)

// IsValidKind - job kind 검증
func IsValidKind(kind string) bool {
	return kind == KindWardrobe || kind == KindStudio
}
