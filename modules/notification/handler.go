package notification

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"pixelweave-server/modules/common/model"
)

// TokenParser - 토큰 → userID
type TokenParser interface {
	Parse(token string) (string, error)
}

// UserLookup - 토큰의 사용자가 실제로 있는지 확인
type UserLookup interface {
	FetchUser(ctx context.Context, userID string) (*model.User, error)
}

// Handler - GET /ws?token=...
type Handler struct {
	hub      *Hub
	tokens   TokenParser
	users    UserLookup
	upgrader websocket.Upgrader
}

// NewHandler - websocket 핸들러 생성
func NewHandler(hub *Hub, tokens TokenParser, users UserLookup) *Handler {
	return &Handler{
		hub:    hub,
		tokens: tokens,
		users:  users,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// 인증은 토큰으로 처리
				return true
			},
		},
	}
}

// ServeHTTP - 연결 수락 후 인증, 실패 시 close code 로 종료
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		h.reject(conn, CloseMissingToken, "token required")
		return
	}

	userID, err := h.tokens.Parse(token)
	if err != nil {
		log.Printf("🔒 WebSocket token rejected: %v", err)
		h.reject(conn, CloseInvalidToken, "invalid token")
		return
	}

	if _, err := h.users.FetchUser(r.Context(), userID); err != nil {
		log.Printf("🔒 WebSocket user %s not found: %v", userID, err)
		h.reject(conn, CloseInvalidToken, "invalid token")
		return
	}

	client := newClient(h.hub, conn, userID)
	h.hub.add(client)

	go client.writePump()
	go client.readPump()
}

func (h *Handler) reject(conn *websocket.Conn, code int, reason string) {
	h.hub.recordRejection()
	deadline := time.Now().Add(writeWait)
	if err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline); err != nil {
		log.Debugf("close frame not sent: %v", err)
	}
	conn.Close()
}
