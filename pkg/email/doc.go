// Package email sends transactional emails through a provider-agnostic
// EmailSender interface.
//
// Two implementations are provided:
//   - Postmark (NewPostmarkClient) for production delivery
//   - DevSender, which writes every message to a local directory
//
// NewSender picks one based on Config: without Postmark tokens the service
// runs with DevSender so local setups never need credentials.
//
// All implementations validate SendEmailParams before sending and wrap
// provider failures in ErrFailedToSendEmail.
//
// # Usage
//
//	var cfg email.Config
//	config.MustLoad(&cfg)
//
//	sender, err := email.NewSender(cfg)
//	if err != nil {
//		return err
//	}
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//		SendTo:   "user@example.com",
//		Subject:  "Payment failed",
//		BodyHTML: "<p>...</p>",
//		Tag:      "billing-payment-failed",
//	})
package email
