package notification

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Hub - 공용 그룹 멤버 관리 + 방송
type Hub struct {
	group   string
	clients map[*Client]struct{}
	mutex   sync.RWMutex

	metrics *Metrics
}

// Metrics - 연결 통계
type Metrics struct {
	TotalConnections int       `json:"totalConnections"`
	Rejected         int       `json:"rejected"`
	Broadcasts       int       `json:"broadcasts"`
	Delivered        int       `json:"delivered"`
	Dropped          int       `json:"dropped"`
	StartTime        time.Time `json:"startTime"`
	mutex            sync.Mutex
}

// NewHub - Hub 생성
func NewHub() *Hub {
	return &Hub{
		group:   GroupName,
		clients: make(map[*Client]struct{}),
		metrics: &Metrics{StartTime: time.Now()},
	}
}

// add - 그룹에 클라이언트 추가
func (h *Hub) add(c *Client) {
	h.mutex.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mutex.Unlock()

	h.metrics.mutex.Lock()
	h.metrics.TotalConnections++
	h.metrics.mutex.Unlock()

	log.Printf("👤 Client %s joined %s (Clients: %d)", c.userID, h.group, count)
}

// remove - 그룹에서 클라이언트 제거 (중복 호출 안전)
func (h *Hub) remove(c *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		log.Printf("👋 Client %s left %s (Remaining: %d)", c.userID, h.group, len(h.clients))
	}
}

// Broadcast - 그룹 전체에 방송, 각 클라이언트가 user_id 로 걸러서 전달
func (h *Hub) Broadcast(env Envelope) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	delivered, dropped := 0, 0
	for c := range h.clients {
		if !c.accepts(env) {
			continue
		}
		select {
		case c.send <- env.Message:
			delivered++
		default:
			// 버퍼가 가득 찬 클라이언트는 끊음
			delete(h.clients, c)
			close(c.send)
			dropped++
		}
	}

	h.metrics.mutex.Lock()
	h.metrics.Broadcasts++
	h.metrics.Delivered += delivered
	h.metrics.Dropped += dropped
	h.metrics.mutex.Unlock()

	log.Debugf("📢 Broadcast to %s: user=%s delivered=%d dropped=%d", h.group, env.UserID, delivered, dropped)
}

// ClientCount - 현재 연결 수
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Snapshot - /metrics 용 통계
func (h *Hub) Snapshot() map[string]any {
	current := h.ClientCount()

	h.metrics.mutex.Lock()
	defer h.metrics.mutex.Unlock()
	return map[string]any{
		"group":            h.group,
		"currentClients":   current,
		"totalConnections": h.metrics.TotalConnections,
		"rejected":         h.metrics.Rejected,
		"broadcasts":       h.metrics.Broadcasts,
		"delivered":        h.metrics.Delivered,
		"dropped":          h.metrics.Dropped,
		"uptime":           time.Since(h.metrics.StartTime).Round(time.Second).String(),
	}
}

func (h *Hub) recordRejection() {
	h.metrics.mutex.Lock()
	h.metrics.Rejected++
	h.metrics.mutex.Unlock()
}
