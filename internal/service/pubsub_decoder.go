// internal/service/pubsub_decoder.go
package service

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
)

var validate = validator.New()

// DecodePubSubData turns the base64 JSON push payload into an envelope.
func DecodePubSubData(msg model.PushMessage) (*model.Envelope, error) {
	data := strings.TrimSpace(msg.Data)
	if data == "" {
		return nil, appErrors.NewMissingPubSubMessageData()
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, appErrors.NewJSONParsing(err)
	}

	env := &model.Envelope{}
	if err := json.Unmarshal(raw, env); err != nil {
		return nil, appErrors.NewJSONParsing(err)
	}
	return env, nil
}

// DecodePushBody parses a full push request body.
func DecodePushBody(body []byte) (*model.Envelope, error) {
	var req model.PushRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, appErrors.NewJSONParsing(err)
	}
	return DecodePubSubData(req.Message)
}

// ValidateEnvelope checks the fields every processed event must carry.
func ValidateEnvelope(env *model.Envelope) error {
	if env == nil {
		return appErrors.NewValidation("Missing event envelope")
	}
	if err := validate.Struct(env); err != nil {
		return appErrors.New(appErrors.KindValidation, 400, "Invalid event envelope: "+err.Error(), err)
	}
	return nil
}

// EncodeJSONBase64 is the inverse of the push payload encoding.
func EncodeJSONBase64(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
