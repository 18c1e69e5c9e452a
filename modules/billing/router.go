package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Mountable interface {
	Handle() http.Handler
}

// RouterOptions configures which services to mount in the billing module.
// Each service is optional and will only be mounted if provided.
type RouterOptions struct {
	Billing      Mountable
	Webhook      Mountable
	Provisioning Mountable
}

// Router creates the billing module router.
//
// Example:
//
//	r := chi.NewRouter()
//	r.Mount("/", billingmod.Router(billingmod.RouterOptions{
//	    Billing:      billingmod.NewService(orchestrator, errs),
//	    Webhook:      billingmod.NewWebhookService(dispatcher, log),
//	    Provisioning: billingmod.NewProvisioningService(orchestrator, token, errs),
//	}))
func Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Route("/billing", func(b chi.Router) {
		if opts.Webhook != nil {
			b.Mount("/webhook", opts.Webhook.Handle())
		}
		if opts.Billing != nil {
			b.Mount("/", opts.Billing.Handle())
		}
	})

	if opts.Provisioning != nil {
		r.Mount("/internal/accounts", opts.Provisioning.Handle())
	}

	return r
}
