// internal/sender/twilio_gateway.go
package sender

import (
	"context"
	"errors"

	twilio "github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// GatewayError carries whatever status and message a provider returned.
// Either may be empty.
type GatewayError struct {
	Status  int
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "provider error"
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) ProviderStatus() (int, string) { return e.Status, e.Message }

type twilioMessageAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

type TwilioGateway struct {
	API twilioMessageAPI
}

var _ MessageGateway = (*TwilioGateway)(nil)

func NewTwilioGateway(accountSID, authToken string) *TwilioGateway {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioGateway{API: client.Api}
}

func (g *TwilioGateway) Create(ctx context.Context, p MessageParams) (*MessageReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(p.To)
	params.SetFrom(p.From)
	params.SetBody(p.Body)

	msg, err := g.API.CreateMessage(params)
	if err != nil {
		var restErr *twilioclient.TwilioRestError
		if errors.As(err, &restErr) {
			return nil, &GatewayError{Status: restErr.Status, Message: restErr.Message, Err: err}
		}
		return nil, &GatewayError{Err: err}
	}

	receipt := &MessageReceipt{}
	if msg != nil && msg.Sid != nil {
		receipt.SID = *msg.Sid
	}
	return receipt, nil
}
