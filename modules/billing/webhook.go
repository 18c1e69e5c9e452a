package billing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/propfin/core"
	"github.com/dmitrymomot/propfin/pkg/logger"
	"github.com/dmitrymomot/propfin/svc/billing"
)

// MaxWebhookBody caps webhook payloads read from the processor.
const MaxWebhookBody = 64 << 10

// SignatureHeader carries the processor's payload signature.
const SignatureHeader = "Stripe-Signature"

// WebhookDispatcher verifies and routes processor deliveries.
type WebhookDispatcher interface {
	Verify(payload []byte, signature string) (*billing.Event, error)
	Dispatch(ctx context.Context, ev *billing.Event) billing.Result
}

// WebhookService receives processor webhooks. It is not behind auth: the
// signature is the only credential.
type WebhookService struct {
	dispatcher WebhookDispatcher
	log        *slog.Logger
}

func NewWebhookService(dispatcher WebhookDispatcher, log *slog.Logger) *WebhookService {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &WebhookService{dispatcher: dispatcher, log: log.With(logger.Component("billing.webhook"))}
}

func (s *WebhookService) Handle() http.Handler {
	r := chi.NewRouter()
	r.Post("/", s.receive)
	return r
}

func (s *WebhookService) receive(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			core.WriteError(w, core.ErrRequestTooLarge)
			return
		}
		core.WriteError(w, core.ErrBadRequest.WithMessage("failed to read webhook body"))
		return
	}

	ev, err := s.dispatcher.Verify(payload, r.Header.Get(SignatureHeader))
	if err != nil {
		s.log.WarnContext(r.Context(), "webhook rejected", logger.Error(err))
		core.WriteError(w, errInvalidSignature)
		return
	}

	res := s.dispatcher.Dispatch(r.Context(), ev)
	status := res.StatusCode()
	if status >= http.StatusInternalServerError {
		core.WriteError(w, core.ErrInternalServerError.WithMessage("event not processed, redeliver later").
			WithDetails(map[string]any{"event_id": res.EventID}))
		return
	}
	_ = core.WriteJSON(w, status, core.Envelope{Data: webhookAck{
		Received: true,
		Outcome:  res.Outcome.String(),
		Result:   res,
	}})
}

type webhookAck struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome"`
	billing.Result
}
