package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	assistantdomain "github.com/smallbiznis/invoicerecovery/internal/assistant/domain"
	automationdomain "github.com/smallbiznis/invoicerecovery/internal/automation/domain"
	behaviordomain "github.com/smallbiznis/invoicerecovery/internal/behavior/domain"
	clientdomain "github.com/smallbiznis/invoicerecovery/internal/client/domain"
	ingestiondomain "github.com/smallbiznis/invoicerecovery/internal/ingestion/domain"
	invoicedomain "github.com/smallbiznis/invoicerecovery/internal/invoice/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: notFoundMessage(err),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, assistantdomain.ErrAssistantUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "assistant unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code written to the request log.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	} else if status != http.StatusInternalServerError {
		code = payload.Message
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationErrors = []error{
	ErrInvalidRequest,
	automationdomain.ErrInvalidOrganization,
	automationdomain.ErrInvalidInvoice,
	automationdomain.ErrInvalidAutomation,
	automationdomain.ErrInvalidSchedule,
	behaviordomain.ErrInvalidOrganization,
	behaviordomain.ErrInvalidClient,
	ingestiondomain.ErrInvalidWebhook,
	ingestiondomain.ErrInvalidReply,
	ingestiondomain.ErrInvalidDeliveryStatus,
	assistantdomain.ErrInvalidPrompt,
	assistantdomain.ErrInvalidAction,
	assistantdomain.ErrUnsupportedAction,
}

func isValidationError(err error) bool {
	return validationErrorCode(err) != ""
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, automationdomain.ErrInvoiceNotFound),
		errors.Is(err, automationdomain.ErrClientNotFound),
		errors.Is(err, automationdomain.ErrAutomationNotFound),
		errors.Is(err, behaviordomain.ErrClientNotFound),
		errors.Is(err, behaviordomain.ErrProfileNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, clientdomain.ErrNotFound),
		errors.Is(err, ingestiondomain.ErrUnknownSender),
		errors.Is(err, ingestiondomain.ErrNoPendingReminder),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, automationdomain.ErrAutomationAlreadyActive),
		errors.Is(err, automationdomain.ErrInvoiceNotPayable),
		errors.Is(err, automationdomain.ErrNotActive),
		errors.Is(err, automationdomain.ErrAlreadyClaimed),
		errors.Is(err, automationdomain.ErrCannotEscalate),
		errors.Is(err, automationdomain.ErrVersionConflict):
		return true
	default:
		return false
	}
}

func notFoundMessage(err error) string {
	for _, known := range []error{
		automationdomain.ErrInvoiceNotFound,
		automationdomain.ErrClientNotFound,
		automationdomain.ErrAutomationNotFound,
		behaviordomain.ErrProfileNotFound,
		ingestiondomain.ErrUnknownSender,
		ingestiondomain.ErrNoPendingReminder,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "not found"
}

// validationErrorCode returns the sentinel code so wrapped details never leak into the field name.
func validationErrorCode(err error) string {
	for _, known := range validationErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ""
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
