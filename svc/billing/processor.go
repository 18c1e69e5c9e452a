package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Processor is the payment processor port. The concrete client is built once
// at startup and injected into the Orchestrator and the Dispatcher.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*RedirectSession, error)
	CreatePortalSession(ctx context.Context, req PortalRequest) (*RedirectSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*ProcessorSubscription, error)
	PreviewPlanChange(ctx context.Context, req PlanChangeRequest) (*ProrationPreview, error)
	ChangePlan(ctx context.Context, req PlanChangeRequest) (*ProcessorSubscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*ProcessorSubscription, error)
	// ParseWebhook verifies the signature and decodes the payload.
	// Event types the engine does not handle decode to Unsupported.
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// CheckoutRequest describes a hosted checkout for a new subscription.
type CheckoutRequest struct {
	UserID        uuid.UUID
	CustomerID    string // reuse an existing processor customer when known
	CustomerEmail string
	Plan          Plan
	PriceID       string
	SuccessURL    string
	CancelURL     string
	TrialEnd      *time.Time
}

// PortalRequest describes a hosted billing-portal session.
type PortalRequest struct {
	CustomerID string
	ReturnURL  string
}

// RedirectSession is a processor-hosted page the client is sent to.
type RedirectSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ChangeTiming selects when a price change takes effect at the processor.
type ChangeTiming int

const (
	// ChangeImmediately swaps the price now and invoices the prorated difference.
	ChangeImmediately ChangeTiming = iota
	// ChangeAtPeriodEnd swaps the price without proration so the new amount
	// is billed from the next period.
	ChangeAtPeriodEnd
)

// PlanChangeRequest asks the processor to move a subscription to a price.
type PlanChangeRequest struct {
	SubscriptionID string
	PriceID        string
	Timing         ChangeTiming
}

// ProrationPreview holds amounts in the smallest currency unit.
type ProrationPreview struct {
	ImmediateCharge   int64     `json:"immediate_charge"`
	NextInvoiceAmount int64     `json:"next_invoice_amount"`
	Currency          string    `json:"currency"`
	EffectiveDate     time.Time `json:"effective_date"`
}

// ProcessorSubscription is the processor's view of a subscription mapped
// onto local statuses.
type ProcessorSubscription struct {
	ID                string
	CustomerID        string
	UserID            uuid.UUID
	PriceID           string
	Status            Status
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
	TrialEnd          *time.Time
}
