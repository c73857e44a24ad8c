// internal/sender/smtp_gateway.go
package sender

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPGateway struct {
	Dialer mailDialer
	Domain string // Message-ID domain
}

var _ EmailGateway = (*SMTPGateway)(nil)

func NewSMTPGateway(host string, port int, user, password string) *SMTPGateway {
	return &SMTPGateway{Dialer: gomail.NewDialer(host, port, user, password), Domain: host}
}

func (g *SMTPGateway) Send(ctx context.Context, email Email) ([]EmailReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	domain := g.Domain
	if domain == "" {
		domain = "localhost"
	}
	messageID := "<" + uuid.NewString() + "@" + domain + ">"

	m := gomail.NewMessage()
	m.SetHeader("From", email.From)
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Subject)
	m.SetHeader("Message-ID", messageID)
	m.SetBody("text/plain", email.Text)
	m.AddAlternative("text/html", email.HTML)

	if err := g.Dialer.DialAndSend(m); err != nil {
		return nil, &GatewayError{Message: err.Error(), Err: err}
	}
	return []EmailReceipt{{StatusCode: http.StatusAccepted, MessageID: messageID}}, nil
}
