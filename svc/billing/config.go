package billing

import (
	"log/slog"
	"time"
)

// Config holds billing engine settings.
type Config struct {
	TrialDays          int           `env:"BILLING_TRIAL_DAYS" envDefault:"14"`
	TrialPlan          string        `env:"BILLING_TRIAL_PLAN" envDefault:"STARTER"`
	CatalogPath        string        `env:"BILLING_CATALOG_PATH"`
	Store              string        `env:"BILLING_STORE" envDefault:"postgres"`
	DedupeTTL          time.Duration `env:"BILLING_DEDUPE_TTL" envDefault:"72h"`
	DedupeCapacity     int           `env:"BILLING_DEDUPE_CAPACITY" envDefault:"10000"`
	ConflictRetries    int           `env:"BILLING_CONFLICT_RETRIES" envDefault:"1"`
	CheckoutSuccessURL string        `env:"BILLING_CHECKOUT_SUCCESS_URL" envDefault:"http://localhost:8080/billing?checkout=success"`
	CheckoutCancelURL  string        `env:"BILLING_CHECKOUT_CANCEL_URL" envDefault:"http://localhost:8080/billing?checkout=cancel"`
	PortalReturnURL    string        `env:"BILLING_PORTAL_RETURN_URL" envDefault:"http://localhost:8080/billing"`
	InternalToken      string        `env:"BILLING_INTERNAL_TOKEN"`
}

// StripeConfig holds processor credentials.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
