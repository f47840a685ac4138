// types/errors.go
package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig indicates a configuration error
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCredentialMissing indicates no API key could be resolved
	ErrCredentialMissing = errors.New("TRIPNOW_API_KEY not set")

	// ErrUpstreamHTTP indicates the upstream answered with a non-2xx status
	ErrUpstreamHTTP = errors.New("upstream returned an error status")

	// ErrUpstreamTransport indicates the upstream could not be reached
	ErrUpstreamTransport = errors.New("upstream transport failure")

	// ErrMalformedPayload indicates the upstream body is not a JSON object
	ErrMalformedPayload = errors.New("malformed upstream payload")

	// ErrInvalidArguments indicates the tool was called with arguments of the wrong shape
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// ConfigError wraps configuration-related errors
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error in %s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// CredentialError is returned when neither configuration nor request metadata carry an API key
type CredentialError struct {
	Candidates []string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("error: %v", ErrCredentialMissing)
}

func (e *CredentialError) Unwrap() error {
	return ErrCredentialMissing
}

// UpstreamHTTPError carries a non-2xx upstream answer
type UpstreamHTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *UpstreamHTTPError) Error() string {
	msg := fmt.Sprintf("HTTP request failed: %d %s", e.StatusCode, e.Status)
	if e.Body != "" {
		msg += fmt.Sprintf(": %s", e.Body)
	}
	return msg
}

func (e *UpstreamHTTPError) Unwrap() error {
	return ErrUpstreamHTTP
}

// UpstreamTransportError wraps connection, DNS, TLS and timeout failures
type UpstreamTransportError struct {
	URL string
	Err error
}

func (e *UpstreamTransportError) Error() string {
	return fmt.Sprintf("HTTP request failed: %v", e.Err)
}

func (e *UpstreamTransportError) Unwrap() []error {
	return []error{ErrUpstreamTransport, e.Err}
}

// PayloadError is returned when a JSON-mode body cannot be parsed
type PayloadError struct {
	Message string
	Err     error
}

func (e *PayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to parse response: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("failed to parse response: %s", e.Message)
}

func (e *PayloadError) Unwrap() error {
	return ErrMalformedPayload
}

// ToolError wraps tool-related errors
type ToolError struct {
	Tool    string
	Message string
	Err     error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tool error in %s: %s: %v", e.Tool, e.Message, e.Err)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

func (e *ToolError) Unwrap() error {
	return ErrInvalidArguments
}
