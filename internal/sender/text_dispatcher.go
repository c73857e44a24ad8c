// internal/sender/text_dispatcher.go
package sender

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/notify-event/internal/crypto"
	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
)

const whatsAppPrefix = "whatsapp:"

// TextDispatcher sends SMS or WhatsApp messages through a MessageGateway.
// The two channels differ only in the address prefix.
type TextDispatcher struct {
	Gateway MessageGateway
	Secret  string
	Log     logrus.FieldLogger

	channel model.Channel
	label   string
	prefix  string
}

var _ Dispatcher = (*TextDispatcher)(nil)

func NewSMSDispatcher(gw MessageGateway, secret string, log logrus.FieldLogger) *TextDispatcher {
	return &TextDispatcher{Gateway: gw, Secret: secret, Log: log, channel: model.ChannelSMS, label: "SMS"}
}

func NewWhatsAppDispatcher(gw MessageGateway, secret string, log logrus.FieldLogger) *TextDispatcher {
	return &TextDispatcher{Gateway: gw, Secret: secret, Log: log, channel: model.ChannelWhatsApp, label: "WhatsApp", prefix: whatsAppPrefix}
}

func (d *TextDispatcher) Channel() model.Channel { return d.channel }

func (d *TextDispatcher) SendMessage(ctx context.Context, body, encryptedSender, recipient, _ string) (*ProviderResponse, error) {
	log := d.Log.WithFields(logrus.Fields{"channel": d.channel, "recipient": recipient})

	from, err := crypto.DecryptString(encryptedSender, d.Secret)
	if err != nil {
		log.WithError(err).Errorf("Error sending %s message: failed to decrypt sender", d.label)
		return nil, appErrors.NormalizeProvider(http.StatusInternalServerError, "Failed to decrypt sender", err)
	}

	params := MessageParams{Body: body, From: d.prefix + from, To: d.prefix + recipient}
	log.Infof("Sending %s message", d.label)

	receipt, err := d.Gateway.Create(ctx, params)
	if err != nil {
		perr := asProviderError(err)
		log.WithError(err).WithField("statusCode", perr.StatusCode).Errorf("Error sending %s message: %s", d.label, perr.Message)
		return nil, perr
	}

	resp := &ProviderResponse{StatusCode: http.StatusOK}
	if receipt != nil {
		resp.ID = receipt.SID
		if receipt.StatusCode != 0 {
			resp.StatusCode = receipt.StatusCode
		}
	}
	return resp, nil
}

type providerError interface {
	ProviderStatus() (int, string)
}

// asProviderError keeps whatever status and message the gateway supplied.
func asProviderError(err error) *appErrors.AppError {
	var pe providerError
	if errors.As(err, &pe) {
		status, msg := pe.ProviderStatus()
		return appErrors.NormalizeProvider(status, msg, err)
	}
	if appErrors.IsKind(err, appErrors.KindProvider) {
		return appErrors.Normalize(err)
	}
	return appErrors.NormalizeProvider(0, "", err)
}
