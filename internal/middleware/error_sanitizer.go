package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aaronlmathis/powerplot/internal/plot"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorSanitizer provides sanitized error responses
type ErrorSanitizer struct {
	logger *zap.Logger
}

// NewErrorSanitizer creates a new error sanitizer
func NewErrorSanitizer(logger *zap.Logger) *ErrorSanitizer {
	return &ErrorSanitizer{
		logger: logger,
	}
}

// ErrorResponse is the JSON body sent for failed requests
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// SanitizeAndRespond logs err in full and sends the client a message that
// does not leak source URLs, hosts or internal paths. Fetch and parse
// failures carry upstream response text and always get the generic message.
func (es *ErrorSanitizer) SanitizeAndRespond(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	es.logger.Error("Request error",
		zap.Error(err),
		zap.Int("status_code", statusCode),
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("remote_addr", r.RemoteAddr))

	if errors.Is(err, plot.ErrFetch) || errors.Is(err, plot.ErrParse) {
		es.Respond(w, es.getGenericErrorMessage(statusCode), statusCode)
		return
	}
	es.Respond(w, es.sanitizeErrorMessage(err.Error(), statusCode), statusCode)
}

// Respond writes a JSON error body with the given message
func (es *ErrorSanitizer) Respond(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message, Status: statusCode}); err != nil {
		es.logger.Debug("Failed to write error response", zap.Error(err))
	}
}

// sanitizeErrorMessage removes sensitive information from error messages
func (es *ErrorSanitizer) sanitizeErrorMessage(message string, statusCode int) string {
	// Fetch errors carry the source URL and dialer details
	sensitivePatterns := []string{
		"http://", "https://", "dial", "lookup", "tcp", "tls",
		"x509", "connection", "token", "secret", "password",
		"panic", "goroutine",
	}

	messageLower := strings.ToLower(message)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(messageLower, pattern) {
			return es.getGenericErrorMessage(statusCode)
		}
	}

	sanitized := message

	// Remove stack traces
	if idx := strings.Index(sanitized, "\n"); idx != -1 {
		sanitized = sanitized[:idx]
	}

	// Remove file paths
	if strings.Contains(sanitized, "/") || strings.Contains(sanitized, "\\") {
		return es.getGenericErrorMessage(statusCode)
	}

	// Limit message length
	if len(sanitized) > 100 {
		sanitized = sanitized[:100] + "..."
	}

	// If empty or too generic, use status-based message
	if len(strings.TrimSpace(sanitized)) < 5 {
		return es.getGenericErrorMessage(statusCode)
	}

	return sanitized
}

// getGenericErrorMessage returns appropriate generic messages based on HTTP status
func (es *ErrorSanitizer) getGenericErrorMessage(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "Invalid request. Please check your input and try again."
	case http.StatusForbidden:
		return "This source is not allowed."
	case http.StatusNotFound:
		return "The requested chart was not found."
	case http.StatusMethodNotAllowed:
		return "Method not allowed for this resource."
	case http.StatusTooManyRequests:
		return "Too many requests. Please wait a moment and try again."
	case http.StatusInternalServerError:
		return "The chart could not be rendered."
	case http.StatusBadGateway:
		return "The series source is unavailable. Please try again later."
	case http.StatusGatewayTimeout:
		return "The series source timed out. Please try again later."
	default:
		return "An unexpected error occurred. Please try again."
	}
}
