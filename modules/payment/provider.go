package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"pixelweave-server/modules/common/apperr"
)

const EventCheckoutCompleted = "checkout.session.completed"

// SessionRequest - 결제 세션 생성 요청
type SessionRequest struct {
	UserID     string
	PaymentID  string
	AmountUSD  int
	Credits    int
	SuccessURL string
	CancelURL  string
}

// Session - 결제 제공자가 발급한 세션
type Session struct {
	ID  string
	URL string
}

// WebhookEvent - 서명 검증을 통과한 이벤트
type WebhookEvent struct {
	ID        string
	Type      string
	SessionID string
}

// Provider - 외부 결제 제공자
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// StripeProvider - Stripe Checkout 기반 Provider
type StripeProvider struct {
	webhookSecret string
}

// NewStripeProvider - Stripe 키 설정 후 Provider 생성
func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{webhookSecret: webhookSecret}
}

// CreateSession - 카드 결제 / USD 단건 Checkout 세션 생성
func (p *StripeProvider) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("%d PixelWeave credits", req.Credits)),
					},
					UnitAmount: stripe.Int64(int64(req.AmountUSD) * 100),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID),
	}
	params.Context = ctx
	params.AddMetadata("user_id", req.UserID)
	params.AddMetadata("payment_id", req.PaymentID)

	s, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

// ParseWebhook - Stripe-Signature 검증 후 이벤트 해석
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrWebhookVerification, err)
	}

	ev := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if ev.Type != EventCheckoutCompleted {
		return ev, nil
	}

	var session stripe.CheckoutSession
	if event.Data == nil || json.Unmarshal(event.Data.Raw, &session) != nil || session.ID == "" {
		return nil, fmt.Errorf("%w: malformed checkout session payload", apperr.ErrValidation)
	}
	ev.SessionID = session.ID
	return ev, nil
}
