// internal/email/mailer/welcome.go
package mailer

import (
	"context"
	"fmt"

	"github.com/dangerclosesec/assessly/internal/email"
)

// WelcomeKind is the template directory for the post-registration email.
const WelcomeKind = "welcome"

// WelcomeTemplateData contains data for the welcome email template
type WelcomeTemplateData struct {
	Name              string
	OrganizationName  string
	TeamSelectionLink string
}

// Sender is the part of email.Service the welcome flow needs.
type Sender interface {
	Send(ctx context.Context, msg email.Message) error
}

// Welcomer sends the welcome email after registration.
type Welcomer struct {
	sender Sender
}

func NewWelcomer(sender Sender) *Welcomer {
	return &Welcomer{sender: sender}
}

func (w *Welcomer) SendWelcome(ctx context.Context, to, name, organizationName, teamSelectionLink string) error {
	return w.sender.Send(ctx, email.Message{
		To:       to,
		ToName:   name,
		Subject:  fmt.Sprintf("Welcome to %s on Assessly", organizationName),
		Template: WelcomeKind,
		Data: WelcomeTemplateData{
			Name:              name,
			OrganizationName:  organizationName,
			TeamSelectionLink: teamSelectionLink,
		},
	})
}
