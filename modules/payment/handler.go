package payment

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"pixelweave-server/modules/common/apperr"
	"pixelweave-server/modules/common/auth"
	"pixelweave-server/modules/common/response"
	"pixelweave-server/modules/common/validate"
)

const maxWebhookBody = 64 << 10

// CheckoutRequest - POST /api/payment/create-checkout
type CheckoutRequest struct {
	Amount int `json:"amount" validate:"required,min=1,max=10000"`
}

// Handler - 결제 HTTP 핸들러
type Handler struct {
	service *Service
}

// NewHandler - Handler 생성
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes - 라우트 등록 (webhook 은 인증 없음)
func (h *Handler) RegisterRoutes(public, protected *mux.Router) {
	protected.HandleFunc("/payment/create-checkout", h.HandleCreateCheckout).Methods("POST")
	protected.HandleFunc("/payment/history", h.HandleHistory).Methods("GET")
	public.HandleFunc("/payment/webhook", h.HandleWebhook).Methods("POST")
	log.Println("✅ Payment routes registered: /api/payment/create-checkout, /api/payment/history, /api/payment/webhook")
}

// HandleCreateCheckout - 결제 세션 생성
func (h *Handler) HandleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apperr.Validation("body", "invalid JSON"))
		return
	}
	if err := validate.Struct(req); err != nil {
		response.Error(w, err)
		return
	}

	checkout, err := h.service.CreateCheckout(r.Context(), userID, req.Amount, requestOrigin(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, checkout)
}

// HandleHistory - 결제 내역
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	payments, err := h.service.History(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, payments)
}

// HandleWebhook - Stripe 웹훅 (원본 바이트 그대로 서명 검증)
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		response.Error(w, apperr.Validation("body", "payload too large"))
		return
	}

	result, err := h.service.ConfirmPayment(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

// requestOrigin - 결제 완료 후 돌아올 주소
func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
