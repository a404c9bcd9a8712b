// Package notify delivers account tokens to users, normally by email.
package notify

import (
	"context"
	"log"
)

// TokenSender delivers password-reset and email-verification tokens.
// Delivery is best-effort from the caller's point of view; a failed send
// must never reveal to the requester whether the account exists.
type TokenSender interface {
	SendPasswordReset(ctx context.Context, email, token string) error
	SendEmailVerification(ctx context.Context, email, token string) error
}

// LogSender writes tokens to the process log instead of sending mail.
// Development use only.
type LogSender struct{}

func (LogSender) SendPasswordReset(_ context.Context, email, token string) error {
	log.Printf("notify: password reset for %s: %s", email, token)
	return nil
}

func (LogSender) SendEmailVerification(_ context.Context, email, token string) error {
	log.Printf("notify: email verification for %s: %s", email, token)
	return nil
}
