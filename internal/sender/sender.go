// internal/sender/sender.go
package sender

import (
	"context"

	"github.com/unclebandit/notify-event/internal/model"
)

// ProviderResponse is what a dispatcher reports for a delivered message.
type ProviderResponse struct {
	StatusCode int    `json:"statusCode"`
	ID         string `json:"id,omitempty"`
}

// Dispatcher delivers a rendered message over one channel. Errors are
// *appErrors.AppError of kind KindProvider.
type Dispatcher interface {
	Channel() model.Channel
	SendMessage(ctx context.Context, body, encryptedSender, recipient, subject string) (*ProviderResponse, error)
}

type MessageParams struct {
	Body string
	From string
	To   string
}

type MessageReceipt struct {
	SID        string
	StatusCode int
}

// MessageGateway sends SMS and WhatsApp messages.
type MessageGateway interface {
	Create(ctx context.Context, params MessageParams) (*MessageReceipt, error)
}

type Email struct {
	To      string
	From    string
	Subject string
	Text    string
	HTML    string
}

type EmailReceipt struct {
	StatusCode int
	MessageID  string
}

type EmailGateway interface {
	Send(ctx context.Context, email Email) ([]EmailReceipt, error)
}

// Registry indexes dispatchers by channel.
type Registry map[model.Channel]Dispatcher

func NewRegistry(dispatchers ...Dispatcher) Registry {
	r := Registry{}
	for _, d := range dispatchers {
		if d != nil {
			r[d.Channel()] = d
		}
	}
	return r
}
