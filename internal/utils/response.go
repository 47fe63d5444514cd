// internal/utils/response.go
package utils

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pos-print-bridge/internal/model"
)

// RequestIDKey is the gin context key holding the request ID
const RequestIDKey = "request_id"

// APIResponse represents standard API response structure
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError represents error information
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, statusCode int, message string, err error) {
	apiError := &APIError{
		Code:    getErrorCode(statusCode),
		Message: message,
	}

	if err != nil {
		apiError.Details = err.Error()
	}

	c.JSON(statusCode, APIResponse{
		Success:   false,
		Message:   message,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}

// PrintErrorResponse maps a print pipeline error to its HTTP status
func PrintErrorResponse(c *gin.Context, err error) {
	ErrorResponse(c, StatusForError(err), "Print failed", err)
}

// StatusForError picks the HTTP status that best describes a domain error
func StatusForError(err error) int {
	var parseErr *model.ParseError
	var permErr *model.PermissionError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrPrinterBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, model.ErrDeviceNotFound):
		return http.StatusNotFound
	case errors.As(err, &permErr):
		return http.StatusForbidden
	case errors.Is(err, model.ErrUnsupportedPlatform):
		return http.StatusNotImplemented
	case model.IsNotConnected(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func getRequestID(c *gin.Context) string {
	if requestID, ok := c.Get(RequestIDKey); ok {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// getErrorCode returns error code based on HTTP status
func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusTooManyRequests:
		return "PRINTER_BUSY"
	case http.StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	case http.StatusNotImplemented:
		return "NOT_SUPPORTED"
	case http.StatusBadGateway:
		return "PRINTER_ERROR"
	case http.StatusServiceUnavailable:
		return "NOT_CONNECTED"
	default:
		return "UNKNOWN_ERROR"
	}
}
