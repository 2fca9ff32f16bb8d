package mail

import (
	"context"

	"go.uber.org/zap"

	"grantflow/grant-portal-backend/internal/users"
)

// Recipient is the address plus the subscription bitmask that gates delivery.
type Recipient struct {
	Email         string
	Subscriptions users.Subscription
}

// UserRecipient builds a Recipient from a user record.
func UserRecipient(u *users.User) Recipient {
	return Recipient{Email: u.EmailAddress, Subscriptions: u.EmailSettings}
}

// Channel delivers a single rendered message.
type Channel interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Dispatcher renders templates and delivers them best-effort. Delivery and
// rendering errors are logged, never returned: a notification failure must not
// roll back the state transition that triggered it.
type Dispatcher struct {
	channel Channel
	logger  *zap.Logger
}

// NewDispatcher creates a mail dispatcher over a delivery channel.
func NewDispatcher(channel Channel, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{channel: channel, logger: logger}
}

// Send delivers a templated email to a recipient if their subscription
// bitmask includes the template's category.
func (d *Dispatcher) Send(ctx context.Context, to Recipient, template Template, args map[string]any) {
	if !to.Subscriptions.Has(Category(template)) {
		d.logger.Debug("recipient unsubscribed from category",
			zap.String("template", string(template)),
			zap.String("to", to.Email))
		return
	}

	body, err := render(template, args)
	if err != nil {
		d.logger.Error("failed to render email template",
			zap.String("template", string(template)), zap.Error(err))
		return
	}

	if err := d.channel.Send(ctx, to.Email, Subject(template), body); err != nil {
		d.logger.Error("failed to send email",
			zap.String("template", string(template)),
			zap.String("to", to.Email),
			zap.Error(err))
	}
}

// SendAll delivers the same templated email to every recipient.
func (d *Dispatcher) SendAll(ctx context.Context, to []Recipient, template Template, args map[string]any) {
	for _, r := range to {
		d.Send(ctx, r, template, args)
	}
}
