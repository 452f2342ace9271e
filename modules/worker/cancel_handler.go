package worker

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"pixelweave-server/modules/common/auth"
	"pixelweave-server/modules/common/model"
	"pixelweave-server/modules/common/response"
	"pixelweave-server/modules/job"
	"pixelweave-server/modules/notification"
)

// CancelHandler - 대기 중인 작업 취소 API
type CancelHandler struct {
	service   *job.Service
	publisher notification.Publisher
}

// NewCancelHandler - 핸들러 생성
func NewCancelHandler(service *job.Service, publisher notification.Publisher) *CancelHandler {
	return &CancelHandler{service: service, publisher: publisher}
}

// RegisterRoutes - 라우트 등록
func (h *CancelHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/{kind:wardrobe|studio}/{id}/cancel", h.CancelJob).Methods("POST")
	log.Println("✅ [CancelHandler] Routes registered: POST /api/{wardrobe|studio}/{id}/cancel")
}

// CancelJob - PENDING 작업만 취소 가능, 처리 중이면 409
func (h *CancelHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())
	vars := mux.Vars(r)

	cancelled, err := h.service.CancelJob(r.Context(), userID, vars["kind"], vars["id"])
	if err != nil {
		response.Error(w, err)
		return
	}

	if h.publisher != nil {
		ev := notification.JobEvent(cancelled.Kind, cancelled.ID, model.StatusFailed)
		ev.Error = job.CancelledMessage
		if err := h.publisher.Publish(r.Context(), userID, ev); err != nil {
			log.Warnf("⚠️  Cancel notification for job %s not delivered: %v", cancelled.ID, err)
		}
	}
	response.JSON(w, http.StatusOK, h.service.View(cancelled))
}
