// internal/model/channel.go
package model

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// Channels lists every supported channel in a stable order.
var Channels = []Channel{ChannelEmail, ChannelSMS, ChannelWhatsApp}

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelWhatsApp:
		return true
	}
	return false
}

// MessageTemplate is the per-trigger template for one channel.
type MessageTemplate struct {
	Subject    string `json:"subject,omitempty"`
	Message    string `json:"message"`
	SendToPath string `json:"sendToPath"`
}

type ChannelConfiguration struct {
	IsEnabled   bool                       `json:"isEnabled"`
	Sender      string                     `json:"sender,omitempty"` // encrypted
	MessageBody map[string]MessageTemplate `json:"messageBody"`
}

// ChannelSettings is persisted as a single custom object.
type ChannelSettings struct {
	Channels map[Channel]ChannelConfiguration `json:"channels"`
}

func (s *ChannelSettings) Config(ch Channel) (ChannelConfiguration, bool) {
	if s == nil || s.Channels == nil {
		return ChannelConfiguration{}, false
	}
	cfg, ok := s.Channels[ch]
	return cfg, ok
}

// DefaultChannelSettings returns every channel disabled with no templates.
func DefaultChannelSettings() *ChannelSettings {
	s := &ChannelSettings{Channels: map[Channel]ChannelConfiguration{}}
	for _, ch := range Channels {
		s.Channels[ch] = ChannelConfiguration{MessageBody: map[string]MessageTemplate{}}
	}
	return s
}
