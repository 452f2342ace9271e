package job

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"pixelweave-server/modules/common/apperr"
	"pixelweave-server/modules/common/auth"
	"pixelweave-server/modules/common/response"
)

// MaxUploadSize - 업로드 원본 최대 크기
const MaxUploadSize = 20 << 20

var allowedUploadTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// Handler - kind 하나에 대한 조회 / 삭제 / 제출 공통 처리
type Handler struct {
	service *Service
	kind    string
}

// NewHandler - kind 전용 Handler 생성
func NewHandler(service *Service, kind string) *Handler {
	return &Handler{service: service, kind: kind}
}

// Kind - 담당 kind
func (h *Handler) Kind() string {
	return h.kind
}

// Submit - 요청 정보로 작업 생성 후 201 응답
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request, req SubmitRequest) {
	req.UserID, _ = auth.UserIDFrom(r.Context())
	req.Kind = h.kind

	job, err := h.service.SubmitJob(r.Context(), req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, h.service.View(job))
}

// HandleList - GET /api/{kind}
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	jobs, err := h.service.ListJobs(r.Context(), userID, h.kind)
	if err != nil {
		response.Error(w, err)
		return
	}
	views := make([]View, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, h.service.View(j))
	}
	response.JSON(w, http.StatusOK, views)
}

// HandleGet - GET /api/{kind}/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	job, err := h.service.GetJob(r.Context(), userID, h.kind, mux.Vars(r)["id"])
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, h.service.View(job))
}

// HandleDelete - DELETE /api/{kind}/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	if err := h.service.DeleteJob(r.Context(), userID, h.kind, mux.Vars(r)["id"]); err != nil {
		response.Error(w, err)
		return
	}
	response.Message(w, http.StatusOK, h.kind+" deleted")
}

// ParseForm - multipart 본문 파싱 (크기 제한 포함)
func ParseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("input_image", "file is too large")
		}
		return apperr.Validation("body", "invalid multipart form")
	}
	return nil
}

// ReadUpload - 업로드 파일 읽기, 없으면 (nil, "", nil)
func ReadUpload(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", apperr.Validation(field, "unreadable file")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadSize+1))
	if err != nil {
		return nil, "", apperr.Validation(field, "unreadable file")
	}
	if len(data) > MaxUploadSize {
		return nil, "", apperr.Validation(field, "file is too large")
	}
	if len(data) == 0 {
		return nil, "", apperr.Validation(field, "file is empty")
	}
	if mime := http.DetectContentType(data); !allowedUploadTypes[mime] {
		return nil, "", apperr.Validation(field, fmt.Sprintf("unsupported image type %s", mime))
	}
	return data, header.Filename, nil
}
