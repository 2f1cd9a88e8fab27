package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailGateway is the last-resort channel: it emails the carrier's SMS
// gateway address for the number. Delivery is never confirmed, so it runs
// fire-and-forget at the end of the chain.
type EmailGateway struct {
	key    string
	from   string
	domain string
}

func NewEmailGateway(key, from, domain string) *EmailGateway {
	return &EmailGateway{key: key, from: from, domain: domain}
}

func (g *EmailGateway) Name() string { return "email_gateway" }

func (g *EmailGateway) Send(ctx context.Context, number, text string) error {
	if g.key == "" || g.from == "" {
		return errors.New("email gateway: sendgrid not configured")
	}

	addr := gatewayAddress(number, g.domain)
	msg := mail.NewSingleEmail(
		mail.NewEmail("BusWatch Alerts", g.from),
		"BusWatch alert",
		mail.NewEmail("", addr),
		text,
		text,
	)
	client := sendgrid.NewSendClient(g.key)
	resp, err := client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("email gateway: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("email gateway: sendgrid status %d", resp.StatusCode)
	}
	return nil
}

// gatewayAddress maps a phone number to its carrier gateway mailbox,
// keeping digits only.
func gatewayAddress(number, domain string) string {
	var digits strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return digits.String() + "@" + domain
}
