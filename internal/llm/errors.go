package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/aws/smithy-go"
	"github.com/openai/openai-go"
)

var (
	// ErrNoContent is returned when a response has no recognizable content field.
	ErrNoContent = errors.New("unable to extract content from response")

	// ErrLastMessageNotUser is returned when a conversation does not end with a user turn.
	ErrLastMessageNotUser = errors.New("last message must have the user role")

	// ErrProviderNotFound is returned for unregistered provider names.
	ErrProviderNotFound = errors.New("not found")
)

// ConfigError reports a violated configuration constraint. It is raised
// before any network activity.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// ErrorKind classifies provider failures for reporting.
type ErrorKind string

const (
	KindAuth      ErrorKind = "authentication"
	KindRateLimit ErrorKind = "rate_limit"
	KindTimeout   ErrorKind = "timeout"
	KindNetwork   ErrorKind = "network"
	KindProvider  ErrorKind = "provider"
)

// ProviderError is a classified failure returned by a back end.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s error (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a classified error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsRateLimit reports whether err signals a rate limit or exhausted quota.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind == KindRateLimit
	}
	return mentionsRateLimit(err.Error())
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool { return KindOf(err) == KindAuth }

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool { return KindOf(err) == KindTimeout }

// IsNetwork reports whether err is a connection failure.
func IsNetwork(err error) bool { return KindOf(err) == KindNetwork }

// Classify wraps err into a ProviderError. statusCode may be 0 when the
// failure happened below HTTP. Errors that are already classified, and
// configuration errors, are returned unchanged.
func Classify(provider string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return err
	}

	var apiErr *openai.Error
	if statusCode == 0 && errors.As(err, &apiErr) {
		statusCode = apiErr.StatusCode
	}

	kind := KindProvider
	var awsErr smithy.APIError
	if errors.As(err, &awsErr) {
		kind = kindOfAWSCode(awsErr.ErrorCode())
	}
	if kind == KindProvider {
		kind = kindOf(statusCode, err)
	}
	return &ProviderError{Provider: provider, Kind: kind, StatusCode: statusCode, Err: err}
}

func kindOf(statusCode int, err error) ErrorKind {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusTooManyRequests:
		return KindRateLimit
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return KindNetwork
	}

	// A known status outranks whatever the message body happens to contain.
	if statusCode != 0 {
		return KindProvider
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "invalid api key"),
		strings.Contains(msg, "invalid x-api-key"),
		strings.Contains(msg, "authentication"):
		return KindAuth
	case mentionsRateLimit(msg):
		return KindRateLimit
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return KindTimeout
	}

	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "network"):
		return KindNetwork
	}
	return KindProvider
}

func kindOfAWSCode(code string) ErrorKind {
	switch code {
	case "ThrottlingException", "TooManyRequestsException", "ServiceQuotaExceededException":
		return KindRateLimit
	case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException",
		"InvalidSignatureException":
		return KindAuth
	case "ModelTimeoutException", "RequestTimeout":
		return KindTimeout
	}
	return KindProvider
}

func mentionsRateLimit(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "status 429") ||
		strings.Contains(msg, "status code 429")
}
