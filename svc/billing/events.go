package billing

import (
	"time"

	"github.com/google/uuid"
)

// Event is a verified, decoded webhook delivery.
type Event struct {
	ID        string
	Type      string
	CreatedAt time.Time
	Payload   Payload
}

// Payload is the closed set of event bodies the engine understands.
// Only types in this package implement it.
type Payload interface {
	payload()
}

// CheckoutCompleted reports a finished hosted checkout.
type CheckoutCompleted struct {
	SessionID      string
	CustomerID     string
	SubscriptionID string
	UserID         uuid.UUID
}

// SubscriptionUpdated carries the processor's current subscription state.
type SubscriptionUpdated struct {
	Subscription ProcessorSubscription
}

// SubscriptionDeleted reports a subscription that ended at the processor.
type SubscriptionDeleted struct {
	Subscription ProcessorSubscription
}

// InvoicePaymentFailed reports a failed charge on a subscription invoice.
type InvoicePaymentFailed struct {
	InvoiceID      string
	SubscriptionID string
	CustomerID     string
	AttemptCount   int64
}

// InvoicePaymentSucceeded reports a settled subscription invoice.
type InvoicePaymentSucceeded struct {
	InvoiceID      string
	SubscriptionID string
	CustomerID     string
}

// Unsupported is any event type the engine acknowledges without acting on.
type Unsupported struct{}

func (CheckoutCompleted) payload()       {}
func (SubscriptionUpdated) payload()     {}
func (SubscriptionDeleted) payload()     {}
func (InvoicePaymentFailed) payload()    {}
func (InvoicePaymentSucceeded) payload() {}
func (Unsupported) payload()             {}
