package billing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"

	"github.com/google/uuid"

	"github.com/dmitrymomot/propfin/pkg/email"
	"github.com/dmitrymomot/propfin/pkg/pg"
)

var ErrRecipientNotFound = errors.New("no email address on file for user")

// Notifier is told about every status change a webhook applied.
type Notifier interface {
	StatusChanged(ctx context.Context, before, after *Subscription) error
}

// UserDirectory resolves the contact address of an account.
type UserDirectory interface {
	Email(ctx context.Context, userID uuid.UUID) (string, error)
}

// PGUserDirectory reads addresses from the accounts table owned by the auth service.
type PGUserDirectory struct {
	db DBTX
}

func NewPGUserDirectory(db DBTX) *PGUserDirectory {
	return &PGUserDirectory{db: db}
}

func (d *PGUserDirectory) Email(ctx context.Context, userID uuid.UUID) (string, error) {
	var addr string
	err := d.db.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&addr)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return "", ErrRecipientNotFound
		}
		return "", err
	}
	return addr, nil
}

type notice struct {
	tag     string
	subject string
	body    *template.Template
}

var notices = map[string]notice{
	"activated": {
		tag:     "billing-subscription-activated",
		subject: "Your {{.Plan}} plan is active",
		body: template.Must(template.New("activated").Parse(
			`<p>Thanks for subscribing. Your {{.Plan}} plan is active and lets you manage up to {{.Limit}} properties.</p>`)),
	},
	"recovered": {
		tag:     "billing-payment-recovered",
		subject: "Payment received",
		body: template.Must(template.New("recovered").Parse(
			`<p>We received your payment. Your {{.Plan}} plan is active again and editing is unlocked.</p>`)),
	},
	"past_due": {
		tag:     "billing-payment-failed",
		subject: "Your payment failed",
		body: template.Must(template.New("past_due").Parse(
			`<p>We could not charge your card for the {{.Plan}} plan. Your account is read-only until the payment method is updated{{if .PortalURL}} in the <a href="{{.PortalURL}}">billing portal</a>{{end}}.</p>`)),
	},
	"canceled": {
		tag:     "billing-subscription-canceled",
		subject: "Your subscription has ended",
		body: template.Must(template.New("canceled").Parse(
			`<p>Your {{.Plan}} subscription has ended. Your properties remain available read-only; subscribe again any time to continue editing.</p>`)),
	},
}

// EmailNotifier sends a billing notice for status changes users must act on.
type EmailNotifier struct {
	sender    email.EmailSender
	users     UserDirectory
	portalURL string
}

// NewEmailNotifier creates a Notifier backed by an email sender.
func NewEmailNotifier(sender email.EmailSender, users UserDirectory, portalURL string) *EmailNotifier {
	return &EmailNotifier{sender: sender, users: users, portalURL: portalURL}
}

func (n *EmailNotifier) StatusChanged(ctx context.Context, before, after *Subscription) error {
	key := noticeKey(before.Status, after.Status)
	if key == "" {
		return nil
	}
	msg := notices[key]

	to, err := n.users.Email(ctx, after.UserID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}

	data := struct {
		Plan      Plan
		Limit     int
		PortalURL string
	}{after.Plan, after.PropertyLimit, n.portalURL}

	var body bytes.Buffer
	if err := msg.body.Execute(&body, data); err != nil {
		return fmt.Errorf("render %s notice: %w", key, err)
	}
	subject, err := renderSubject(msg.subject, data)
	if err != nil {
		return err
	}

	return n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   to,
		Subject:  subject,
		BodyHTML: body.String(),
		Tag:      msg.tag,
	})
}

func noticeKey(from, to Status) string {
	switch {
	case to == StatusActive && from == StatusPastDue:
		return "recovered"
	case to == StatusActive:
		return "activated"
	case to == StatusPastDue:
		return "past_due"
	case to == StatusCanceled:
		return "canceled"
	}
	return ""
}

func renderSubject(tpl string, data any) (string, error) {
	t, err := template.New("subject").Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
