package billing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/propfin/pkg/logger"
)

// Outcome classifies what happened to a dispatched event.
type Outcome int

const (
	// OutcomeProcessed means a handler ran and the event is settled.
	OutcomeProcessed Outcome = iota
	// OutcomeIgnored means the event type is not handled.
	OutcomeIgnored
	// OutcomeDuplicate means the event id was processed within the dedupe window.
	OutcomeDuplicate
	// OutcomeRejected is a domain validation failure. Retrying cannot help.
	OutcomeRejected
	// OutcomeRetry is a transient failure the processor should redeliver.
	OutcomeRetry
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeRejected:
		return "rejected"
	case OutcomeRetry:
		return "retry"
	}
	return "unknown"
}

// Result is the dispatch verdict for one event.
type Result struct {
	EventID   string  `json:"event_id"`
	EventType string  `json:"event_type"`
	Outcome   Outcome `json:"-"`
	Changed   bool    `json:"changed"`
	Err       error   `json:"-"`
}

// StatusCode maps the outcome onto the HTTP status returned to the processor.
// Everything but a transient failure is acknowledged so it is not redelivered.
func (r Result) StatusCode() int {
	if r.Outcome == OutcomeRetry {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

// Dispatcher verifies webhook deliveries and routes them to EventHandlers.
type Dispatcher struct {
	processor Processor
	handlers  *EventHandlers
	dedupe    Deduplicator
	notifier  Notifier
	metrics   *Metrics
	log       *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

func WithDeduplicator(d Deduplicator) DispatcherOption {
	return func(ds *Dispatcher) { ds.dedupe = d }
}

func WithNotifier(n Notifier) DispatcherOption {
	return func(ds *Dispatcher) { ds.notifier = n }
}

func WithDispatcherMetrics(m *Metrics) DispatcherOption {
	return func(ds *Dispatcher) { ds.metrics = m }
}

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(ds *Dispatcher) {
		if l != nil {
			ds.log = l
		}
	}
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(processor Processor, handlers *EventHandlers, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		processor: processor,
		handlers:  handlers,
		log:       discardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Verify authenticates and decodes a raw delivery. Any failure wraps
// ErrInvalidSignature and the body must not be processed further.
func (d *Dispatcher) Verify(payload []byte, signature string) (*Event, error) {
	if signature == "" {
		return nil, errors.Join(ErrInvalidSignature, errors.New("missing signature header"))
	}
	ev, err := d.processor.ParseWebhook(payload, signature)
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	return ev, nil
}

// Dispatch runs the handler for a verified event and classifies the result.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) Result {
	start := time.Now()
	res := d.dispatch(ctx, ev)
	d.metrics.webhookDispatched(ev.Type, res.Outcome, time.Since(start))

	log := d.log.With(logger.EventID(ev.ID), logger.EventType(ev.Type), logger.Outcome(res.Outcome.String()))
	switch res.Outcome {
	case OutcomeRetry:
		log.ErrorContext(ctx, "webhook dispatch failed, awaiting redelivery", logger.Error(res.Err))
	case OutcomeRejected:
		log.WarnContext(ctx, "webhook rejected by domain validation", logger.Error(res.Err))
	default:
		log.DebugContext(ctx, "webhook dispatched", slog.Bool("changed", res.Changed))
	}
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, ev *Event) Result {
	res := Result{EventID: ev.ID, EventType: ev.Type}

	if _, unsupported := ev.Payload.(Unsupported); unsupported || ev.Payload == nil {
		res.Outcome = OutcomeIgnored
		return res
	}

	if d.dedupe != nil && ev.ID != "" {
		seen, err := d.dedupe.Seen(ctx, ev.ID)
		if err != nil {
			d.log.WarnContext(ctx, "dedupe lookup failed, processing anyway",
				logger.EventID(ev.ID), logger.Error(err))
		}
		if seen {
			res.Outcome = OutcomeDuplicate
			return res
		}
	}

	change, err := d.handlers.Handle(ctx, ev.Payload)
	if err != nil {
		res.Err = err
		res.Outcome = classify(err)
		if res.Outcome == OutcomeRetry {
			return res
		}
	} else {
		res.Outcome = OutcomeProcessed
		res.Changed = change.Applied()
	}

	if d.dedupe != nil && ev.ID != "" {
		if err := d.dedupe.MarkProcessed(ctx, ev.ID); err != nil {
			d.log.WarnContext(ctx, "failed to record processed webhook",
				logger.EventID(ev.ID), logger.Error(err))
		}
	}

	if d.notifier != nil && change.StatusChanged() {
		if err := d.notifier.StatusChanged(ctx, change.Before, change.After); err != nil {
			d.log.WarnContext(ctx, "billing notification not sent",
				logger.UserID(change.After.UserID), logger.Error(err))
		}
	}
	return res
}

// classify separates failures a redelivery cannot fix from infrastructure ones.
// Unknown errors are treated as transient.
func classify(err error) Outcome {
	switch {
	case errors.Is(err, ErrSubscriptionNotFound),
		errors.Is(err, ErrProcessorSubscriptionNotFound),
		errors.Is(err, ErrUnknownPrice),
		errors.Is(err, ErrPlanNotFound),
		errors.Is(err, ErrMissingEventReference),
		errors.Is(err, ErrInvalidSubscription):
		return OutcomeRejected
	default:
		return OutcomeRetry
	}
}
