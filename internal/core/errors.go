// Package core provides shared types, the error taxonomy, and context
// helpers for the image bot.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies an upstream API failure.
type ErrorKind string

const (
	// KindProvider indicates an upstream server error (5xx)
	KindProvider ErrorKind = "provider_error"
	// KindRateLimit indicates the upstream rejected the call for rate reasons (429)
	KindRateLimit ErrorKind = "rate_limit_error"
	// KindInvalidRequest indicates the upstream rejected the request itself (4xx)
	KindInvalidRequest ErrorKind = "invalid_request_error"
	// KindAuthentication indicates bad or missing credentials (401/403)
	KindAuthentication ErrorKind = "authentication_error"
)

// APIError is the error type for all upstream API failures (OpenAI, Telegram).
type APIError struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Service    string    `json:"service,omitempty"`
	// Original error for debugging (not exposed to users)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Service != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Service, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *APIError) Unwrap() error {
	return e.Err
}

// Recoverable reports whether the failure is a request-level rejection the
// user can recover from by retrying later. Anything else is treated as fatal
// for the current request cycle.
func (e *APIError) Recoverable() bool {
	return e.Kind == KindInvalidRequest || e.Kind == KindRateLimit
}

// NewProviderError creates an upstream server error (5xx).
func NewProviderError(service string, statusCode int, message string, err error) *APIError {
	return &APIError{
		Kind:       KindProvider,
		Message:    message,
		StatusCode: statusCode,
		Service:    service,
		Err:        err,
	}
}

// NewRateLimitError creates a rate limit error (429).
func NewRateLimitError(service, message string) *APIError {
	return &APIError{
		Kind:       KindRateLimit,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
		Service:    service,
	}
}

// NewInvalidRequestError creates an invalid request error (400).
func NewInvalidRequestError(message string, err error) *APIError {
	return &APIError{
		Kind:       KindInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewAuthenticationError creates an authentication error (401).
func NewAuthenticationError(service, message string) *APIError {
	return &APIError{
		Kind:       KindAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
		Service:    service,
	}
}

// ParseAPIError parses an error response body and returns an APIError
// classified by status code. It understands both the OpenAI error envelope
// ({"error": {"message": ...}}) and the Telegram one
// ({"ok": false, "description": ...}); anything else keeps the raw body.
func ParseAPIError(service string, statusCode int, body []byte, originalErr error) *APIError {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
		Description string `json:"description"`
	}

	message := string(body)
	if err := json.Unmarshal(body, &envelope); err == nil {
		switch {
		case envelope.Error.Message != "":
			message = envelope.Error.Message
		case envelope.Description != "":
			message = envelope.Description
		}
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return NewAuthenticationError(service, message)
	case statusCode == http.StatusTooManyRequests:
		return NewRateLimitError(service, message)
	case statusCode >= 400 && statusCode < 500:
		e := NewInvalidRequestError(message, originalErr)
		e.StatusCode = statusCode
		e.Service = service
		return e
	default:
		return NewProviderError(service, statusCode, message, originalErr)
	}
}

// AsAPIError unwraps err into an *APIError if possible.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
