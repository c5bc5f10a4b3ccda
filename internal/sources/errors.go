package sources

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JaimeStill/curator/pkg/functions"
	"github.com/JaimeStill/curator/pkg/schedule"
)

// Domain errors for source operations.
var (
	ErrNotFound             = errors.New("source not found")
	ErrDuplicate            = errors.New("source already exists")
	ErrUploadNotFound       = errors.New("upload not found")
	ErrPayloadNotFound      = errors.New("upload has no payload")
	ErrInvalidID            = errors.New("invalid id")
	ErrInvalidBody          = errors.New("invalid request body")
	ErrFileTooLarge         = errors.New("payload exceeds maximum upload size")
	ErrRetrievalUnavailable = errors.New("retrieval function not configured")
)

// FieldError describes one invalid field. Field is a dotted path such as
// "automation.schedule.awsScheduleExpression".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports input that violates the source invariants.
// It is returned before any external call is attempted.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		if fe.Field == "" {
			parts[i] = fe.Message
			continue
		}
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NotificationSendError reports a failed notification after the external
// schedule mutation it describes already succeeded.
type NotificationSendError struct {
	Type NotificationType
	Err  error
}

func (e *NotificationSendError) Error() string {
	return fmt.Sprintf("send %s notification: %v", e.Type, e.Err)
}

func (e *NotificationSendError) Unwrap() error {
	return e.Err
}

// Error kinds reported alongside server errors.
const (
	KindValidation   = "validation"
	KindGateway      = "gateway"
	KindNotification = "notification"
	KindInvocation   = "invocation"
)

// ErrorKind classifies err for response bodies and logs. It returns "" for
// errors that carry no kind.
func ErrorKind(err error) string {
	var (
		verr *ValidationError
		gerr *schedule.GatewayError
		nerr *NotificationSendError
		ierr *functions.InvocationError
	)
	switch {
	case errors.As(err, &verr):
		return KindValidation
	case errors.As(err, &gerr):
		return KindGateway
	case errors.As(err, &nerr):
		return KindNotification
	case errors.As(err, &ierr):
		return KindInvocation
	}
	return ""
}

// MapHTTPStatus maps source domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrUploadNotFound),
		errors.Is(err, ErrPayloadNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrInvalidBody):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrRetrievalUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
