package payment

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"pixelweave-server/modules/common/apperr"
	"pixelweave-server/modules/common/credit"
	"pixelweave-server/modules/common/database"
	"pixelweave-server/modules/common/database/dbtest"
	"pixelweave-server/modules/common/model"
)

const testWebhookSecret = "whsec_test_secret"

type fakeProvider struct {
	*StripeProvider
	requests []SessionRequest
}

func (f *fakeProvider) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	f.requests = append(f.requests, req)
	id := fmt.Sprintf("cs_test_%d", len(f.requests))
	return &Session{ID: id, URL: "https://checkout.test/" + id}, nil
}

type fixture struct {
	db       *database.Client
	ledger   *credit.Ledger
	provider *fakeProvider
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	f := &fixture{
		db:       db,
		ledger:   credit.NewLedger(db.DB()),
		provider: &fakeProvider{StripeProvider: NewStripeProvider("sk_test_unused", testWebhookSecret)},
	}
	f.service = NewService(db, f.ledger, f.provider, 10)
	return f
}

func (f *fixture) seedPayment(t *testing.T, userID, sessionID string, amount int) *model.Payment {
	t.Helper()
	p := &model.Payment{UserID: userID, SessionID: sessionID, Amount: amount, Credits: amount * 10}
	require.NoError(t, f.db.CreatePayment(context.Background(), p))
	return p
}

func signed(t *testing.T, secret, payload string) ([]byte, string) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func checkoutEvent(sessionID string) string {
	return fmt.Sprintf(`{"id":"evt_1","object":"event","type":"checkout.session.completed",`+
		`"data":{"object":{"id":%q,"object":"checkout.session"}}}`, sessionID)
}

func balance(t *testing.T, f *fixture, userID string) int {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func TestCreateCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, f.db, 0)

	checkout, err := f.service.CreateCheckout(ctx, user.ID, 10, "https://app.test/")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", checkout.SessionID)
	assert.Equal(t, 100, checkout.Credits)

	require.Len(t, f.provider.requests, 1)
	req := f.provider.requests[0]
	assert.Equal(t, 10, req.AmountUSD)
	assert.Equal(t, "https://app.test/payment/failure", req.CancelURL)
	assert.Contains(t, req.SuccessURL, "https://app.test/payment/success")

	payments, err := f.service.History(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, model.PaymentPending, payments[0].Status)
	assert.Equal(t, 100, payments[0].Credits)

	// 결제 생성만으로는 충전 없음
	assert.Equal(t, 0, balance(t, f, user.ID))

	_, err = f.service.CreateCheckout(ctx, user.ID, 0, "https://app.test")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.service.CreateCheckout(ctx, "ghost", 5, "https://app.test")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDuplicateWebhookCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, f.db, 5)
	f.seedPayment(t, user.ID, "cs_live_42", 10)

	payload, header := signed(t, testWebhookSecret, checkoutEvent("cs_live_42"))

	first, err := f.service.ConfirmPayment(ctx, payload, header)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.Equal(t, 105, first.Balance)

	second, err := f.service.ConfirmPayment(ctx, payload, header)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	assert.Equal(t, 105, balance(t, f, user.ID))
	txs, err := f.db.ListTransactions(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	payment, err := f.db.FetchPaymentBySession(ctx, f.db.DB(), "cs_live_42")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, payment.Status)
}

func TestConcurrentSettlementCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, f.db, 0)
	f.seedPayment(t, user.ID, "cs_race", 3)

	const n = 6
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		duplicates int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.service.Settle(ctx, "cs_race")
			if !assert.NoError(t, err) {
				return
			}
			if res.Duplicate {
				mu.Lock()
				duplicates++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, n-1, duplicates)
	assert.Equal(t, 30, balance(t, f, user.ID))
}

func TestBadSignatureChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, f.db, 5)
	f.seedPayment(t, user.ID, "cs_forged", 50)

	payload, header := signed(t, "whsec_wrong", checkoutEvent("cs_forged"))
	_, err := f.service.ConfirmPayment(ctx, payload, header)
	require.ErrorIs(t, err, apperr.ErrWebhookVerification)

	_, err = f.service.ConfirmPayment(ctx, payload, "")
	require.ErrorIs(t, err, apperr.ErrWebhookVerification)

	payment, err := f.db.FetchPaymentBySession(ctx, f.db.DB(), "cs_forged")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, payment.Status)
	assert.Equal(t, 5, balance(t, f, user.ID))
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t)
	payload, header := signed(t, testWebhookSecret, checkoutEvent("cs_missing"))

	_, err := f.service.ConfirmPayment(context.Background(), payload, header)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestOtherEventsAreIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, f.db, 5)
	f.seedPayment(t, user.ID, "cs_other", 10)

	payload, header := signed(t, testWebhookSecret,
		`{"id":"evt_2","object":"event","type":"payment_intent.created","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`)
	res, err := f.service.ConfirmPayment(ctx, payload, header)
	require.NoError(t, err)
	assert.True(t, res.Ignored)
	assert.Equal(t, "payment_intent.created", res.EventType)
	assert.Equal(t, 5, balance(t, f, user.ID))
}
