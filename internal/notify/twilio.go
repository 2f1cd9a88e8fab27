package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Twilio is the secondary SMS channel, using the official REST SDK.
type Twilio struct {
	client *twilio.RestClient
	from   string
}

func NewTwilio(accountSID, authToken, from string) *Twilio {
	t := &Twilio{from: from}
	if accountSID != "" && authToken != "" {
		t.client = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		})
	}
	return t
}

func (t *Twilio) Name() string { return "twilio" }

func (t *Twilio) Send(ctx context.Context, number, text string) error {
	if t.client == nil || t.from == "" {
		return errors.New("twilio: credentials not configured")
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(number)
	params.SetFrom(t.from)
	params.SetBody(text)

	// The SDK call carries no context; bound it ourselves.
	done := make(chan error, 1)
	go func() {
		_, err := t.client.Api.CreateMessage(params)
		done <- err
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("twilio: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("twilio: %w", err)
		}
		return nil
	}
}
