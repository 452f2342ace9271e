package user

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"pixelweave-server/modules/common/auth"
	"pixelweave-server/modules/common/model"
	"pixelweave-server/modules/common/response"
)

// Store - 사용자 / 거래 조회
type Store interface {
	FetchUser(ctx context.Context, userID string) (*model.User, error)
	ListTransactions(ctx context.Context, userID string) ([]*model.CreditTransaction, error)
}

// Profile - GET /api/user/profile 응답
type Profile struct {
	ID       string `json:"id"`
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	Credit   int    `json:"credit"`
}

// Handler - /api/user
type Handler struct {
	store Store
}

// NewHandler - Handler 생성
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/user/profile", h.HandleProfile).Methods("GET")
	r.HandleFunc("/user/credits", h.HandleCredits).Methods("GET")
	log.Println("✅ User routes registered: /api/user/profile, /api/user/credits")
}

// HandleProfile - 프로필 + 현재 크레딧
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	u, err := h.store.FetchUser(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, Profile{ID: u.ID, UserName: u.UserName, Email: u.Email, Credit: u.Credit})
}

// HandleCredits - 크레딧 거래 내역
func (h *Handler) HandleCredits(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	txs, err := h.store.ListTransactions(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, txs)
}
