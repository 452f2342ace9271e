package response

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"pixelweave-server/modules/common/apperr"
)

// Response codes
const (
	CodeSuccess             = "SUCCESS"
	CodeCreated             = "CREATED"
	CodeValidationError     = "VALIDATION_ERROR"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeConflict            = "CONFLICT"
	CodeWebhookVerification = "WEBHOOK_VERIFICATION_FAILED"
	CodePersistenceError    = "PERSISTENCE_ERROR"
	CodeInternalError       = "INTERNAL_ERROR"
)

// Envelope - 모든 API 응답의 공통 구조
type Envelope struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Data    any    `json:"data,omitempty"`
	Message any    `json:"message,omitempty"`
}

// JSON - 성공 응답 작성
func JSON(w http.ResponseWriter, status int, data any) {
	code := CodeSuccess
	if status == http.StatusCreated {
		code = CodeCreated
	}
	write(w, status, Envelope{Success: true, Code: code, Data: data})
}

// Message - 데이터 없이 메시지만 있는 성공 응답
func Message(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope{Success: true, Code: CodeSuccess, Message: message})
}

// Fail - 코드를 직접 지정한 실패 응답
func Fail(w http.ResponseWriter, status int, code string, message any) {
	write(w, status, Envelope{Success: false, Code: code, Message: message})
}

// Error - 서비스 에러를 HTTP 상태/코드로 매핑해서 응답
func Error(w http.ResponseWriter, err error) {
	status, code := Classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Errorf("❌ Internal error: %v", err)
		message = "internal server error"
	}

	var fieldErr *apperr.FieldError
	if errors.As(err, &fieldErr) {
		Fail(w, status, code, map[string]string{fieldErr.Field: fieldErr.Message})
		return
	}
	Fail(w, status, code, message)
}

// Classify - 에러 → (HTTP 상태, 응답 코드)
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, CodeValidationError
	case errors.Is(err, apperr.ErrInsufficientCredits):
		return http.StatusPaymentRequired, CodeInsufficientCredits
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, apperr.ErrWebhookVerification):
		return http.StatusBadRequest, CodeWebhookVerification
	case errors.Is(err, apperr.ErrPersistence):
		return http.StatusInternalServerError, CodePersistenceError
	default:
		return http.StatusInternalServerError, CodeInternalError
	}
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warnf("⚠️  Failed to encode response: %v", err)
	}
}
