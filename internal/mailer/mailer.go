package mailer

import (
	"context"
	"log"
)

// Mailer is the external email collaborator. The kernel only depends on the
// interface; delivery is someone else's problem.
type Mailer interface {
	SendInvitation(ctx context.Context, email, projectName, token string) error
	SendResetPin(ctx context.Context, email, pin string) error
}

// LogMailer is the development implementation: it logs instead of sending.
type LogMailer struct{}

func (LogMailer) SendInvitation(_ context.Context, email, projectName, token string) error {
	log.Printf("mailer: invitation to %s for project %q (token %s)", email, projectName, token)
	return nil
}

func (LogMailer) SendResetPin(_ context.Context, email, pin string) error {
	log.Printf("mailer: reset pin for %s: %s", email, pin)
	return nil
}
