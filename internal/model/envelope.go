// internal/model/envelope.go
package model

import "encoding/json"

const NotificationTypeMessage = "Message"

// PushRequest is the body delivered by the push transport.
type PushRequest struct {
	Message      PushMessage `json:"message"`
	Subscription string      `json:"subscription,omitempty"`
}

type PushMessage struct {
	Data        string            `json:"data"`
	MessageID   string            `json:"messageId,omitempty"`
	PublishTime string            `json:"publishTime,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

type ResourceIdentifier struct {
	TypeID string `json:"typeId" validate:"required"`
	ID     string `json:"id" validate:"required"`
}

type Modifier struct {
	IsPlatformClient bool                `json:"isPlatformClient"`
	ClientID         string              `json:"clientId,omitempty"`
	User             *ResourceIdentifier `json:"user,omitempty"`
}

// Envelope is a decoded platform change notification. Raw keeps the whole
// document, including the optional embedded snapshot keyed by resource type.
type Envelope struct {
	ID               string              `json:"id" validate:"required"`
	NotificationType string              `json:"notificationType" validate:"required"`
	ProjectKey       string              `json:"projectKey,omitempty"`
	Version          int64               `json:"version,omitempty"`
	SequenceNumber   int64               `json:"sequenceNumber,omitempty"`
	Resource         *ResourceIdentifier `json:"resource,omitempty"`
	ResourceVersion  int64               `json:"resourceVersion,omitempty"`
	Type             string              `json:"type,omitempty"`
	CreatedAt        string              `json:"createdAt,omitempty"`
	LastModifiedAt   string              `json:"lastModifiedAt,omitempty"`
	CreatedBy        *Modifier           `json:"createdBy,omitempty"`
	LastModifiedBy   *Modifier           `json:"lastModifiedBy,omitempty"`

	Raw map[string]any `json:"-"`
}

type envelopeHeader Envelope

func (e *Envelope) UnmarshalJSON(b []byte) error {
	var header envelopeHeader
	if err := json.Unmarshal(b, &header); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = Envelope(header)
	e.Raw = raw
	return nil
}

// MarshalJSON writes the raw document when present so snapshots survive a round trip.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Raw != nil {
		return json.Marshal(e.Raw)
	}
	return json.Marshal(envelopeHeader(e))
}

// Snapshot returns the object embedded under the resource type key.
func (e *Envelope) Snapshot(resourceType string) (map[string]any, bool) {
	if e == nil || e.Raw == nil {
		return nil, false
	}
	snap, ok := e.Raw[resourceType].(map[string]any)
	if !ok || len(snap) == 0 {
		return nil, false
	}
	return snap, true
}

// Document returns the envelope as a generic map.
func (e *Envelope) Document() map[string]any {
	if e.Raw != nil {
		return e.Raw
	}
	b, err := json.Marshal(envelopeHeader(*e))
	if err != nil {
		return map[string]any{}
	}
	doc := map[string]any{}
	_ = json.Unmarshal(b, &doc)
	return doc
}

func (e *Envelope) ResourceTypeID() string {
	if e.Resource == nil {
		return ""
	}
	return e.Resource.TypeID
}
