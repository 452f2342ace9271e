package job

import (
	"time"

	"pixelweave-server/modules/common/model"
)

// View - API 응답용 Job 표현 (blob 참조 대신 이미지 URL)
type View struct {
	ID           string         `json:"id"`
	Kind         string         `json:"kind"`
	Status       string         `json:"status"`
	WardrobeID   *string        `json:"wardrobe_id,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	Params       map[string]any `json:"params"`
	ImageURL     string         `json:"image_url,omitempty"`
	Cost         int            `json:"cost"`
	Created      time.Time      `json:"created"`
	Modified     time.Time      `json:"modified"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// View - Job → View
func (s *Service) View(j *model.Job) View {
	return View{
		ID:           j.ID,
		Kind:         j.Kind,
		Status:       j.Status,
		WardrobeID:   j.WardrobeID,
		ErrorMessage: j.ErrorMessage,
		Params:       j.Params,
		ImageURL:     s.ImageURL(j),
		Cost:         s.Cost(j.Kind),
		Created:      j.Created,
		Modified:     j.Modified,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
