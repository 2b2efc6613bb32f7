// internal/email/service.go
package email

import (
	"context"
	"fmt"

	"github.com/dangerclosesec/assessly"
	"github.com/dangerclosesec/assessly/internal/config"
)

// Provider identifies supported email providers
type Provider string

const (
	ProviderSMTP     Provider = "smtp"
	ProviderSendgrid Provider = "sendgrid"

	// SenderName is shown as the display name on every outbound message.
	SenderName = "Assessly"
)

// ParseProvider maps a configured provider name to a Provider.
func ParseProvider(name string) (Provider, error) {
	switch Provider(name) {
	case ProviderSMTP, ProviderSendgrid:
		return Provider(name), nil
	}
	return "", fmt.Errorf("unsupported email provider: %q", name)
}

// Message is a single notification addressed to one recipient. Template
// names a directory under TemplateRoot.
type Message struct {
	To       string
	ToName   string
	Subject  string
	Template string
	Data     any
}

type sender struct {
	Name    string
	Address string
}

type transport interface {
	deliver(ctx context.Context, from sender, msg Message, body Rendered) error
}

// Service renders notifications from the embedded catalog and hands them to
// the configured provider.
type Service struct {
	provider  Provider
	from      sender
	catalog   *Catalog
	transport transport
}

// NewEmailService builds a Service for provider. It fails when the provider
// has no sender address or credentials.
func NewEmailService(cfg *config.Config, provider Provider) (*Service, error) {
	catalog, err := LoadCatalog(assessly.EmailFS, TemplateRoot)
	if err != nil {
		return nil, fmt.Errorf("loading email templates: %w", err)
	}

	s := &Service{provider: provider, catalog: catalog}
	switch provider {
	case ProviderSendgrid:
		if cfg.Sendgrid.APIKey == "" {
			return nil, fmt.Errorf("sendgrid selected but SENDGRID_API_KEY is empty")
		}
		s.from = sender{Name: SenderName, Address: cfg.Sendgrid.From}
		s.transport = newSendgridTransport(cfg.Sendgrid.APIKey, "")
	case ProviderSMTP:
		s.from = sender{Name: SenderName, Address: cfg.SMTP.From}
		s.transport = newSMTPTransport(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
	default:
		return nil, fmt.Errorf("unsupported email provider: %q", provider)
	}

	if s.from.Address == "" {
		return nil, fmt.Errorf("no sender address configured for %s", provider)
	}
	return s, nil
}

// Send renders msg and delivers it.
func (s *Service) Send(ctx context.Context, msg Message) error {
	body, err := s.catalog.Render(msg.Template, msg.Data)
	if err != nil {
		return err
	}
	if err := s.transport.deliver(ctx, s.from, msg, body); err != nil {
		return fmt.Errorf("delivering %s email via %s: %w", msg.Template, s.provider, err)
	}
	return nil
}
