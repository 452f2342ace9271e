package apperr

import "errors"

// 서비스 계층 공통 에러 (errors.Is 로 판별)
var (
	ErrValidation          = errors.New("validation error")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrNotFound            = errors.New("not found")
	ErrGenerationFailed    = errors.New("image generation failed")
	ErrPersistence         = errors.New("persistence failure")
	ErrWebhookVerification = errors.New("webhook verification failed")
	ErrConflict            = errors.New("conflict")
	ErrUnauthorized        = errors.New("unauthorized")
)

// FieldError - 필드 단위 검증 에러
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *FieldError) Unwrap() error {
	return ErrValidation
}

// Validation - 필드 검증 에러 생성
func Validation(field, message string) error {
	return &FieldError{Field: field, Message: message}
}
