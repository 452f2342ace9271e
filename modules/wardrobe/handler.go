package wardrobe

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"pixelweave-server/modules/common/model"
	"pixelweave-server/modules/common/response"
	"pixelweave-server/modules/common/validate"
	"pixelweave-server/modules/job"
)

// Params - wardrobe 생성 파라미터
type Params struct {
	BgColor string `json:"bg_color" validate:"omitempty,max=50"`
}

// Handler - /api/wardrobe
type Handler struct {
	jobs *job.Handler
}

// NewHandler - Handler 생성
func NewHandler(service *job.Service) *Handler {
	return &Handler{jobs: job.NewHandler(service, model.KindWardrobe)}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/wardrobe", h.HandleCreate).Methods("POST")
	r.HandleFunc("/wardrobe", h.jobs.HandleList).Methods("GET")
	r.HandleFunc("/wardrobe/{id}", h.jobs.HandleGet).Methods("GET")
	r.HandleFunc("/wardrobe/{id}", h.jobs.HandleDelete).Methods("DELETE")
	log.Println("✅ Wardrobe routes registered: /api/wardrobe, /api/wardrobe/{id}")
}

// HandleCreate - POST /api/wardrobe (multipart: input_image, bg_color)
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if err := job.ParseForm(w, r); err != nil {
		response.Error(w, err)
		return
	}

	params := Params{BgColor: r.FormValue("bg_color")}
	if err := validate.Struct(params); err != nil {
		response.Error(w, err)
		return
	}

	input, name, err := job.ReadUpload(r, "input_image")
	if err != nil {
		response.Error(w, err)
		return
	}

	req := job.SubmitRequest{Input: input, InputName: name, Params: map[string]any{}}
	if params.BgColor != "" {
		req.Params["bg_color"] = params.BgColor
	}
	h.jobs.Submit(w, r, req)
}
