// internal/model/process_log.go
package model

import "time"

const MessageSentSuccessfully = "Message sent successfully"

type ProcessLog struct {
	Message    string    `json:"message"`
	StatusCode int       `json:"statusCode"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ChannelLog struct {
	IsSent            bool         `json:"isSent"`
	LastProcessedDate time.Time    `json:"lastProcessedDate"`
	Recipient         string       `json:"recipient"`
	ProcessLogs       []ProcessLog `json:"processLogs"`
}

// MessageLog is the persisted delivery history of one event. Message holds the
// base64 encoded JSON of the envelope.
type MessageLog struct {
	Message  string                 `json:"message"`
	Channels map[string]*ChannelLog `json:"channels"`
}

// DeliveryOutcome is the result of one channel attempt.
type DeliveryOutcome struct {
	IsSent     bool
	StatusCode int
	Message    string
}

// MessageLogView is a log with its decoded payload, used by the log browsing API.
type MessageLogView struct {
	MessageID      string                 `json:"messageId"`
	Version        int64                  `json:"version"`
	Message        map[string]any         `json:"message,omitempty"`
	Channels       map[string]*ChannelLog `json:"channels"`
	CreatedAt      time.Time              `json:"createdAt"`
	LastModifiedAt time.Time              `json:"lastModifiedAt"`
}
