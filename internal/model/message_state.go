// internal/model/message_state.go
package model

import "time"

const (
	StateInProgress = "in_progress"
	StateCompleted  = "completed"
)

// MessageState is the dedup record keyed by event id.
type MessageState struct {
	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
}
