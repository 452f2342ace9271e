package worker

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"pixelweave-server/modules/common/auth"
	"pixelweave-server/modules/common/response"
	"pixelweave-server/modules/job"
)

// QueueLength - 큐 길이 조회 (*job.RedisQueue)
type QueueLength interface {
	Len(ctx context.Context) (int64, error)
}

// AdminHandler - 운영용 재투입 / 정리 API
type AdminHandler struct {
	token   string
	service *job.Service
	queue   QueueLength
	sweeper *Sweeper
}

// RequeueResponse - 재투입 결과
type RequeueResponse struct {
	JobID         string `json:"job_id"`
	Queue         string `json:"queue"`
	QueuePosition int64  `json:"queue_position"`
}

// NewAdminHandler - token 이 비어 있으면 모든 요청 거부
func NewAdminHandler(token string, service *job.Service, queue QueueLength, sweeper *Sweeper) *AdminHandler {
	return &AdminHandler{token: token, service: service, queue: queue, sweeper: sweeper}
}

// RegisterRoutes - 라우트 등록
func (h *AdminHandler) RegisterRoutes(r *mux.Router) {
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(h.requireToken)
	admin.HandleFunc("/jobs/{id}/requeue", h.HandleRequeue).Methods("POST")
	admin.HandleFunc("/sweep", h.HandleSweep).Methods("POST")
	log.Println("✅ Admin routes registered: /admin/jobs/{id}/requeue, /admin/sweep")
}

func (h *AdminHandler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r)
		if h.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
			response.Fail(w, http.StatusUnauthorized, response.CodeUnauthorized, "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HandleRequeue - POST /admin/jobs/{id}/requeue (PENDING 작업만)
func (h *AdminHandler) HandleRequeue(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	log.Printf("📥 [Admin] Requeue requested for job %s", jobID)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if _, err := h.service.Requeue(ctx, jobID); err != nil {
		response.Error(w, err)
		return
	}

	resp := RequeueResponse{JobID: jobID, Queue: job.QueueName}
	if h.queue != nil {
		resp.QueuePosition, _ = h.queue.Len(ctx)
	}
	log.Printf("✅ [Admin] Job %s requeued (position: %d)", jobID, resp.QueuePosition)
	response.JSON(w, http.StatusOK, resp)
}

// HandleSweep - POST /admin/sweep
func (h *AdminHandler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, report)
}
