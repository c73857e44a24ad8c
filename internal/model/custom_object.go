// internal/model/custom_object.go
package model

import (
	"encoding/json"
	"time"
)

// CustomObject is a versioned JSON value stored under container/key.
type CustomObject struct {
	Container      string          `json:"container"`
	Key            string          `json:"key"`
	Version        int64           `json:"version"`
	Value          json.RawMessage `json:"value"`
	CreatedAt      time.Time       `json:"createdAt"`
	LastModifiedAt time.Time       `json:"lastModifiedAt"`
}

type CustomObjectPage struct {
	Results []*CustomObject `json:"results"`
	Offset  int             `json:"offset"`
	Total   int             `json:"total"`
}
