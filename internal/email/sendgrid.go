package email

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendgridTransport struct {
	client *sendgrid.Client
}

// newSendgridTransport targets the public API unless host is set.
func newSendgridTransport(apiKey, host string) *sendgridTransport {
	if host == "" {
		return &sendgridTransport{client: sendgrid.NewSendClient(apiKey)}
	}
	request := sendgrid.GetRequest(apiKey, "/v3/mail/send", host)
	request.Method = http.MethodPost
	return &sendgridTransport{client: &sendgrid.Client{Request: request}}
}

func (t *sendgridTransport) deliver(ctx context.Context, from sender, msg Message, body Rendered) error {
	message := mail.NewSingleEmail(
		mail.NewEmail(from.Name, from.Address),
		msg.Subject,
		mail.NewEmail(msg.ToName, msg.To),
		body.Text,
		body.HTML,
	)

	response, err := t.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if response.StatusCode != http.StatusAccepted {
		return fmt.Errorf("sendgrid answered %d: %s", response.StatusCode, response.Body)
	}
	return nil
}
