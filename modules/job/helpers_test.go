package job

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"pixelweave-server/modules/common/credit"
	"pixelweave-server/modules/common/database"
	"pixelweave-server/modules/common/database/dbtest"
	"pixelweave-server/modules/common/storage/storagetest"
	"pixelweave-server/modules/notification"
)

var testImage = []byte("\x89PNG\r\n\x1a\ngarment")

type memQueue struct {
	mu    sync.Mutex
	tasks []Task
	err   error
}

func (q *memQueue) Enqueue(ctx context.Context, task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *memQueue) all() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Task(nil), q.tasks...)
}

type fakeGateway struct {
	mu     sync.Mutex
	calls  int
	image  []byte
	err    error
	panics bool
}

func (g *fakeGateway) Generate(ctx context.Context, kind string, source []byte, params map[string]any) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.panics {
		panic("model exploded")
	}
	if g.err != nil {
		return nil, g.err
	}
	if len(source) == 0 {
		return nil, errors.New("no source")
	}
	return g.image, nil
}

type sentEvent struct {
	UserID string
	Event  notification.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []sentEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, userID string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, sentEvent{UserID: userID, Event: payload.(notification.Event)})
	return nil
}

func (p *recordingPublisher) statuses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Event.Status)
	}
	return out
}

func (p *recordingPublisher) last() sentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type harness struct {
	db        *database.Client
	ledger    *credit.Ledger
	store     *storagetest.Memory
	queue     *memQueue
	gateway   *fakeGateway
	publisher *recordingPublisher
	service   *Service
	processor *Processor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.New(t)
	h := &harness{
		db:        db,
		ledger:    credit.NewLedger(db.DB()),
		store:     storagetest.New(),
		queue:     &memQueue{},
		gateway:   &fakeGateway{image: []byte("\x89PNG\r\n\x1a\ngenerated")},
		publisher: &recordingPublisher{},
	}
	costs := Costs{"wardrobe": 2, "studio": 2}
	h.service = NewService(db, h.ledger, h.store, h.queue, costs)
	h.processor = NewProcessor(db, h.ledger, h.store, h.gateway, h.publisher, costs, ProcessorConfig{})
	return h
}

func (h *harness) balance(t *testing.T, userID string) int {
	t.Helper()
	b, err := h.ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

// drain - 큐에 쌓인 작업 모두 처리
func (h *harness) drain(t *testing.T) {
	t.Helper()
	for _, task := range h.queue.all() {
		_ = h.processor.Process(context.Background(), task)
	}
	h.queue.mu.Lock()
	h.queue.tasks = nil
	h.queue.mu.Unlock()
}
