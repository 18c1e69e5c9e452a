package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

const metadataUserID = "user_id"

// StripeProcessor implements Processor on top of Stripe Billing.
type StripeProcessor struct {
	api    *client.API
	secret string
	clock  Clock
}

// StripeOption configures a StripeProcessor.
type StripeOption func(*stripeOptions)

type stripeOptions struct {
	backends *stripe.Backends
	clock    Clock
}

// WithStripeBackends overrides the HTTP backends, mainly to point the client at a test server.
func WithStripeBackends(b *stripe.Backends) StripeOption {
	return func(o *stripeOptions) { o.backends = b }
}

// WithStripeClock sets the clock used for immediate effective dates.
func WithStripeClock(c Clock) StripeOption {
	return func(o *stripeOptions) { o.clock = c }
}

// NewStripeProcessor creates a Stripe-backed Processor.
func NewStripeProcessor(cfg StripeConfig, opts ...StripeOption) (*StripeProcessor, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}
	o := stripeOptions{clock: SystemClock}
	for _, opt := range opts {
		opt(&o)
	}
	return &StripeProcessor{
		api:    client.New(cfg.SecretKey, o.backends),
		secret: cfg.WebhookSecret,
		clock:  o.clock,
	}, nil
}

func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*RedirectSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(req.UserID.String()),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(req.PriceID),
			Quantity: stripe.Int64(1),
		}},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{metadataUserID: req.UserID.String()},
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataUserID, req.UserID.String())
	params.AddMetadata("plan", string(req.Plan))

	switch {
	case req.CustomerID != "":
		params.Customer = stripe.String(req.CustomerID)
	case req.CustomerEmail != "":
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.TrialEnd != nil {
		params.SubscriptionData.TrialEnd = stripe.Int64(req.TrialEnd.Unix())
	}

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	if s.URL == "" {
		return nil, ErrNoCheckoutURL
	}
	return &RedirectSession{ID: s.ID, URL: s.URL}, nil
}

func (p *StripeProcessor) CreatePortalSession(ctx context.Context, req PortalRequest) (*RedirectSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(req.CustomerID),
		ReturnURL: stripe.String(req.ReturnURL),
	}
	params.Context = ctx

	s, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	if s.URL == "" {
		return nil, ErrNoPortalURL
	}
	return &RedirectSession{ID: s.ID, URL: s.URL}, nil
}

func (p *StripeProcessor) GetSubscription(ctx context.Context, subscriptionID string) (*ProcessorSubscription, error) {
	s, err := p.subscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	ps := toProcessorSubscription(s)
	return &ps, nil
}

func (p *StripeProcessor) subscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	s, err := p.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	if s.Items == nil || len(s.Items.Data) == 0 {
		return nil, fmt.Errorf("%w: subscription %s has no items", ErrInvalidSubscription, id)
	}
	return s, nil
}

// PreviewPlanChange asks Stripe for the upcoming invoice with the new price.
// Proration lines are reported as the immediate charge.
func (p *StripeProcessor) PreviewPlanChange(ctx context.Context, req PlanChangeRequest) (*ProrationPreview, error) {
	s, err := p.subscription(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}

	params := &stripe.InvoiceUpcomingParams{
		Customer:     stripe.String(s.Customer.ID),
		Subscription: stripe.String(s.ID),
		SubscriptionItems: []*stripe.SubscriptionItemsParams{{
			ID:    stripe.String(s.Items.Data[0].ID),
			Price: stripe.String(req.PriceID),
		}},
		SubscriptionProrationBehavior: stripe.String(prorationBehavior(req.Timing)),
	}
	params.Context = ctx

	inv, err := p.api.Invoices.Upcoming(params)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	var prorated int64
	if inv.Lines != nil {
		for _, line := range inv.Lines.Data {
			if line.Proration {
				prorated += line.Amount
			}
		}
	}

	preview := &ProrationPreview{
		ImmediateCharge:   prorated,
		NextInvoiceAmount: inv.AmountDue - prorated,
		Currency:          string(inv.Currency),
		EffectiveDate:     p.clock.Now(),
	}
	if req.Timing == ChangeAtPeriodEnd {
		preview.ImmediateCharge = 0
		preview.NextInvoiceAmount = inv.AmountDue
		preview.EffectiveDate = time.Unix(s.CurrentPeriodEnd, 0).UTC()
	}
	return preview, nil
}

func (p *StripeProcessor) ChangePlan(ctx context.Context, req PlanChangeRequest) (*ProcessorSubscription, error) {
	s, err := p.subscription(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{{
			ID:    stripe.String(s.Items.Data[0].ID),
			Price: stripe.String(req.PriceID),
		}},
		ProrationBehavior: stripe.String(prorationBehavior(req.Timing)),
	}
	params.Context = ctx

	updated, err := p.api.Subscriptions.Update(s.ID, params)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	ps := toProcessorSubscription(updated)
	return &ps, nil
}

func (p *StripeProcessor) CancelSubscription(ctx context.Context, subscriptionID string) (*ProcessorSubscription, error) {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	s, err := p.api.Subscriptions.Cancel(subscriptionID, params)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	ps := toProcessorSubscription(s)
	return &ps, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
func (p *StripeProcessor) ParseWebhook(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}

	out := &Event{
		ID:        ev.ID,
		Type:      string(ev.Type),
		CreatedAt: time.Unix(ev.Created, 0).UTC(),
		Payload:   Unsupported{},
	}
	if ev.Data == nil {
		return out, nil
	}

	switch ev.Type {
	case "checkout.session.completed":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		if s.Mode != stripe.CheckoutSessionModeSubscription {
			return out, nil
		}
		cc := CheckoutCompleted{SessionID: s.ID, UserID: parseUserID(s.ClientReferenceID, s.Metadata)}
		if s.Customer != nil {
			cc.CustomerID = s.Customer.ID
		}
		if s.Subscription != nil {
			cc.SubscriptionID = s.Subscription.ID
		}
		out.Payload = cc

	case "customer.subscription.updated", "customer.subscription.deleted":
		var s stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		ps := toProcessorSubscription(&s)
		if ev.Type == "customer.subscription.deleted" {
			out.Payload = SubscriptionDeleted{Subscription: ps}
		} else {
			out.Payload = SubscriptionUpdated{Subscription: ps}
		}

	case "invoice.payment_failed", "invoice.payment_succeeded":
		var inv stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		var subID, customerID string
		if inv.Subscription != nil {
			subID = inv.Subscription.ID
		}
		if inv.Customer != nil {
			customerID = inv.Customer.ID
		}
		if ev.Type == "invoice.payment_failed" {
			out.Payload = InvoicePaymentFailed{
				InvoiceID:      inv.ID,
				SubscriptionID: subID,
				CustomerID:     customerID,
				AttemptCount:   inv.AttemptCount,
			}
		} else {
			out.Payload = InvoicePaymentSucceeded{InvoiceID: inv.ID, SubscriptionID: subID, CustomerID: customerID}
		}
	}
	return out, nil
}

func toProcessorSubscription(s *stripe.Subscription) ProcessorSubscription {
	ps := ProcessorSubscription{
		ID:                s.ID,
		UserID:            parseUserID("", s.Metadata),
		Status:            mapStripeStatus(s.Status),
		CurrentPeriodEnd:  time.Unix(s.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	if s.Customer != nil {
		ps.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 && s.Items.Data[0].Price != nil {
		ps.PriceID = s.Items.Data[0].Price.ID
	}
	if s.TrialEnd > 0 {
		t := time.Unix(s.TrialEnd, 0).UTC()
		ps.TrialEnd = &t
	}
	return ps
}

// mapStripeStatus folds Stripe's subscription statuses onto the local ones.
// Every state that still expects a payment is treated as PAST_DUE.
func mapStripeStatus(s stripe.SubscriptionStatus) Status {
	switch s {
	case stripe.SubscriptionStatusTrialing:
		return StatusTrial
	case stripe.SubscriptionStatusActive:
		return StatusActive
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return StatusCanceled
	default:
		return StatusPastDue
	}
}

func prorationBehavior(t ChangeTiming) string {
	if t == ChangeAtPeriodEnd {
		return "none"
	}
	return "always_invoice"
}

func parseUserID(ref string, metadata map[string]string) uuid.UUID {
	if id, err := uuid.Parse(ref); err == nil {
		return id
	}
	if id, err := uuid.Parse(metadata[metadataUserID]); err == nil {
		return id
	}
	return uuid.Nil
}

// wrapStripeError marks a subscription the processor no longer has and
// everything else as a processor failure.
func wrapStripeError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
		return errors.Join(ErrProcessorSubscriptionNotFound, err)
	}
	return errors.Join(ErrProcessorUnavailable, err)
}
