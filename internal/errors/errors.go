// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"net/http"
)

// DefaultMessage is used when an error carries no usable message.
const DefaultMessage = "An error occurred"

// DefaultProviderMessage is used when a channel provider fails without a message.
const DefaultProviderMessage = "Failed to send message"

// Kind tags the origin of an AppError.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindMissingPubSubData
	KindJSONParsing
	KindInvalidResourceType
	KindDataUnavailable
	KindNotFound
	KindProvider
	KindPersistenceConflict
)

var kindNames = map[Kind]string{
	KindInternal:            "InternalError",
	KindValidation:          "ValidationError",
	KindMissingPubSubData:   "MissingPubSubMessageDataError",
	KindJSONParsing:         "JsonParsingError",
	KindInvalidResourceType: "InvalidResourceType",
	KindDataUnavailable:     "DataUnavailable",
	KindNotFound:            "NotFoundError",
	KindProvider:            "ProviderError",
	KindPersistenceConflict: "PersistenceConflict",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// AppError is the uniform {statusCode, message} shape returned at every boundary.
type AppError struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Body is the JSON-friendly view of the error.
func (e *AppError) Body() map[string]any {
	return map[string]any{
		"statusCode": e.StatusCode,
		"message":    e.Message,
	}
}

// New builds an AppError, defaulting empty fields.
func New(kind Kind, statusCode int, message string, cause error) *AppError {
	if !validStatus(statusCode) {
		statusCode = http.StatusInternalServerError
	}
	if message == "" {
		message = DefaultMessage
	}
	return &AppError{Kind: kind, StatusCode: statusCode, Message: message, Err: cause}
}

func NewValidation(message string) *AppError {
	return New(KindValidation, http.StatusBadRequest, message, nil)
}

func NewMissingPubSubMessageData() *AppError {
	return New(KindMissingPubSubData, http.StatusBadRequest, "Missing message data from incoming event message", nil)
}

func NewJSONParsing(cause error) *AppError {
	return New(KindJSONParsing, http.StatusBadRequest, "Failed to parse event message data", cause)
}

func NewInvalidResourceType(resourceType string) *AppError {
	return New(KindInvalidResourceType, http.StatusBadRequest, "Invalid resource type: "+resourceType, nil)
}

func NewDataUnavailable(eventType string) *AppError {
	msg := fmt.Sprintf("No resource data available for event of type %q", eventType)
	return New(KindDataUnavailable, http.StatusNotFound, msg, nil)
}

func NewNotFound(format string, args ...any) *AppError {
	return New(KindNotFound, http.StatusNotFound, fmt.Sprintf(format, args...), nil)
}

func NewPersistenceConflict(container, key string) *AppError {
	msg := fmt.Sprintf("version conflict on %s/%s", container, key)
	return New(KindPersistenceConflict, http.StatusConflict, msg, nil)
}

func NewInternal(message string, cause error) *AppError {
	return New(KindInternal, http.StatusInternalServerError, message, cause)
}

// NewProvider keeps the provider status and message when present.
func NewProvider(statusCode int, message string, cause error) *AppError {
	return NormalizeProvider(statusCode, message, cause)
}

// NormalizeProvider keeps the provider status and message only when both are
// supplied; otherwise the failure becomes {500, DefaultProviderMessage}.
func NormalizeProvider(statusCode int, message string, cause error) *AppError {
	if !validStatus(statusCode) || message == "" {
		statusCode = http.StatusInternalServerError
		message = DefaultProviderMessage
	}
	return &AppError{Kind: KindProvider, StatusCode: statusCode, Message: message, Err: cause}
}

type statusCoder interface {
	StatusCode() int
}

// Normalize converts any error into an AppError.
func Normalize(err error) *AppError {
	if err == nil {
		return New(KindInternal, http.StatusInternalServerError, DefaultMessage, nil)
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return New(KindInternal, sc.StatusCode(), err.Error(), err)
	}
	return New(KindInternal, http.StatusInternalServerError, err.Error(), err)
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

func validStatus(code int) bool {
	return code >= 100 && code <= 599
}
