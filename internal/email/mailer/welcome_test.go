package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/dangerclosesec/assessly/internal/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	msg email.Message
	err error
}

func (c *captureSender) Send(_ context.Context, msg email.Message) error {
	c.msg = msg
	return c.err
}

func TestWelcomer_SendWelcome(t *testing.T) {
	sender := &captureSender{}
	w := NewWelcomer(sender)

	err := w.SendWelcome(context.Background(), "hire@example.com", "New Hire", "Acme", "https://app.example.com/onboarding/team")
	require.NoError(t, err)

	assert.Equal(t, "hire@example.com", sender.msg.To)
	assert.Equal(t, "New Hire", sender.msg.ToName)
	assert.Equal(t, WelcomeKind, sender.msg.Template)
	assert.Equal(t, "Welcome to Acme on Assessly", sender.msg.Subject)
	assert.Equal(t, WelcomeTemplateData{
		Name:              "New Hire",
		OrganizationName:  "Acme",
		TeamSelectionLink: "https://app.example.com/onboarding/team",
	}, sender.msg.Data)

	sender.err = errors.New("relay down")
	assert.Error(t, w.SendWelcome(context.Background(), "hire@example.com", "New Hire", "Acme", ""))
}
