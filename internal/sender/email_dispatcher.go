// internal/sender/email_dispatcher.go
package sender

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/notify-event/internal/crypto"
	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
)

type EmailDispatcher struct {
	Gateway EmailGateway
	Secret  string
	Log     logrus.FieldLogger
}

var _ Dispatcher = (*EmailDispatcher)(nil)

func NewEmailDispatcher(gw EmailGateway, secret string, log logrus.FieldLogger) *EmailDispatcher {
	return &EmailDispatcher{Gateway: gw, Secret: secret, Log: log}
}

func (d *EmailDispatcher) Channel() model.Channel { return model.ChannelEmail }

// SendMessage sends body as both the text and the HTML part.
func (d *EmailDispatcher) SendMessage(ctx context.Context, body, encryptedSender, recipient, subject string) (*ProviderResponse, error) {
	log := d.Log.WithFields(logrus.Fields{"channel": model.ChannelEmail, "recipient": recipient})

	from, err := crypto.DecryptString(encryptedSender, d.Secret)
	if err != nil {
		log.WithError(err).Error("Error sending email message: failed to decrypt sender")
		return nil, appErrors.NormalizeProvider(http.StatusInternalServerError, "Failed to decrypt sender", err)
	}

	log.Info("Sending email message")
	receipts, err := d.Gateway.Send(ctx, Email{To: recipient, From: from, Subject: subject, Text: body, HTML: body})
	if err != nil {
		perr := asProviderError(err)
		log.WithError(err).WithField("statusCode", perr.StatusCode).Errorf("Error sending email message: %s", perr.Message)
		return nil, perr
	}

	resp := &ProviderResponse{StatusCode: http.StatusAccepted}
	if len(receipts) > 0 {
		resp.ID = receipts[0].MessageID
		if receipts[0].StatusCode != 0 {
			resp.StatusCode = receipts[0].StatusCode
		}
	}
	return resp, nil
}
