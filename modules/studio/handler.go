package studio

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"pixelweave-server/modules/common/apperr"
	"pixelweave-server/modules/common/model"
	"pixelweave-server/modules/common/response"
	"pixelweave-server/modules/job"
)

// Handler - /api/studio
type Handler struct {
	jobs *job.Handler
}

// NewHandler - Handler 생성
func NewHandler(service *job.Service) *Handler {
	return &Handler{jobs: job.NewHandler(service, model.KindStudio)}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/studio", h.HandleCreate).Methods("POST")
	r.HandleFunc("/studio", h.jobs.HandleList).Methods("GET")
	r.HandleFunc("/studio/{id}", h.jobs.HandleGet).Methods("GET")
	r.HandleFunc("/studio/{id}", h.jobs.HandleDelete).Methods("DELETE")
	log.Println("✅ Studio routes registered: /api/studio, /api/studio/{id}")
}

// HandleCreate - POST /api/studio
// multipart: input_image 또는 wardrobe_id, parameters (JSON)
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if err := job.ParseForm(w, r); err != nil {
		response.Error(w, err)
		return
	}

	params, err := ParseParams(r.FormValue("parameters"))
	if err != nil {
		response.Error(w, err)
		return
	}

	input, name, err := job.ReadUpload(r, "input_image")
	if err != nil {
		response.Error(w, err)
		return
	}

	wardrobeID := r.FormValue("wardrobe_id")
	if input != nil && wardrobeID != "" {
		response.Error(w, apperr.Validation("wardrobe_id", "send either input_image or wardrobe_id"))
		return
	}

	h.jobs.Submit(w, r, job.SubmitRequest{
		Params:     params,
		Input:      input,
		InputName:  name,
		WardrobeID: wardrobeID,
	})
}
