package notification

import (
	"context"
	"encoding/json"
	"fmt"
)

// GroupName - 모든 인증 클라이언트가 들어가는 공용 그룹 (Redis 채널명으로도 사용)
const GroupName = "pixel_notifications_group"

// 인증 실패 close code
const (
	CloseInvalidToken = 4001
	CloseMissingToken = 4002
)

// Event - job 상태 변경 알림 본문
type Event struct {
	Type       string `json:"type"` // "wardrobe_generation" | "studio_generation"
	Status     string `json:"status"`
	JobID      string `json:"job_id"`
	// 기존 클라이언트 호환용 kind 별 id (둘 중 하나만 채워짐)
	WardrobeID string `json:"wardrobe_id,omitempty"`
	StudioID   string `json:"studio_id,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
	Error      string `json:"error,omitempty"`
}

// JobEvent - kind 에 맞는 이벤트 생성
func JobEvent(kind, jobID, status string) Event {
	ev := Event{Type: kind + "_generation", Status: status, JobID: jobID}
	switch kind {
	case "wardrobe":
		ev.WardrobeID = jobID
	case "studio":
		ev.StudioID = jobID
	}
	return ev
}

// Envelope - 그룹 전체로 방송되는 메시지 (수신 측에서 user_id 로 필터)
type Envelope struct {
	UserID  string          `json:"user_id"`
	Message json.RawMessage `json:"message"`
}

// NewEnvelope - payload 를 직렬화해서 Envelope 생성
func NewEnvelope(userID string, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode notification: %w", err)
	}
	return Envelope{UserID: userID, Message: body}, nil
}

// Publisher - 알림 발행
type Publisher interface {
	Publish(ctx context.Context, userID string, payload any) error
}
