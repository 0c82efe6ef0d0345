package core

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorAuthenticationFailed = "ACUMATICA_AUTHENTICATION_FAILED"
	ErrorRateLimited          = "ACUMATICA_RATE_LIMITED"
	ErrorAPI                  = "ACUMATICA_API_ERROR"
	ErrorPollTimeout          = "ACUMATICA_POLL_TIMEOUT"
	ErrorPollFailed           = "ACUMATICA_POLL_FAILED"
	ErrorBadInput             = "ACUMATICA_BAD_INPUT"
	ErrorNotFound             = "ACUMATICA_NOT_FOUND"
	ErrorInternal             = "ACUMATICA_INTERNAL_ERROR"
)

const (
	AuthenticationHint = "Please check your credentials and ensure the Connected Application is properly configured."
	RateLimitHint      = "Acumatica has rate limiting in place. Consider adding delays between requests."
)

// NewAuthenticationError reports a rejected or failed token exchange.
func NewAuthenticationError(cause error, metadata map[string]any) *goerrors.Error {
	message := "Failed to authenticate with Acumatica"
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}
	fields := cloneFields(metadata)
	fields["hint"] = AuthenticationHint

	return newEnvelope(cause, goerrors.CategoryAuth, message).
		WithCode(http.StatusUnauthorized).
		WithTextCode(ErrorAuthenticationFailed).
		WithMetadata(fields)
}

// NewRateLimitError reports an HTTP 429 from the entity API. A positive
// retryAfter is exposed as retry_after_ms metadata.
func NewRateLimitError(retryAfter time.Duration, metadata map[string]any) *goerrors.Error {
	fields := cloneFields(metadata)
	fields["hint"] = RateLimitHint
	if retryAfter > 0 {
		fields["retry_after_ms"] = retryAfter.Milliseconds()
	}
	return goerrors.New("Rate limit exceeded. Please wait and try again.", goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(ErrorRateLimited).
		WithMetadata(fields)
}

// NewAPIError reports any other failure of the entity API. statusCode is the
// upstream status, or zero when the request never produced a response.
func NewAPIError(cause error, statusCode int, body []byte, metadata map[string]any) *goerrors.Error {
	fields := cloneFields(metadata)
	code := statusCode
	if code <= 0 {
		code = http.StatusBadGateway
	} else {
		fields["status_code"] = statusCode
	}
	if len(body) > 0 {
		fields["response_body"] = string(body)
	}

	message := "Acumatica API request failed"
	if statusCode > 0 {
		message = fmt.Sprintf("%s with status %d", message, statusCode)
	}
	detail := apiErrorDetail(body)
	if detail == "" && cause != nil {
		detail = cause.Error()
	}
	if detail != "" {
		message = fmt.Sprintf("%s: %s", message, detail)
	}

	return newEnvelope(cause, goerrors.CategoryExternal, message).
		WithCode(code).
		WithTextCode(ErrorAPI).
		WithMetadata(fields)
}

// newEnvelope keeps cause reachable through Unwrap under a fresh category.
func newEnvelope(cause error, category goerrors.Category, message string) *goerrors.Error {
	err := goerrors.New(message, category)
	err.Source = cause
	return err
}

// apiErrorDetail extracts the most specific message from an Acumatica error body.
func apiErrorDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return ""
	}
	for _, key := range []string{"exceptionMessage", "message", "error_description", "error"} {
		if value, ok := decoded[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func NewPollTimeoutError(attempts int, interval time.Duration, statusURL string) *goerrors.Error {
	return goerrors.New("Operation timed out waiting for completion", goerrors.CategoryOperation).
		WithCode(http.StatusGatewayTimeout).
		WithTextCode(ErrorPollTimeout).
		WithMetadata(map[string]any{
			"attempts":    attempts,
			"interval_ms": interval.Milliseconds(),
			"status_url":  statusURL,
		})
}

func NewPollFailedError(reason string, statusURL string) *goerrors.Error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Unknown error"
	}
	return goerrors.New("Operation failed: "+reason, goerrors.CategoryOperation).
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorPollFailed).
		WithMetadata(map[string]any{
			"reason":     reason,
			"status_url": statusURL,
		})
}

// NewBadInputError reports a call rejected before it reached Acumatica.
func NewBadInputError(message string, metadata map[string]any) *goerrors.Error {
	return newBadInputError(message, metadata)
}

// NewNotFoundError reports a record lookup that matched nothing.
func NewNotFoundError(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorNotFound)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// NewInternalError wraps a local failure such as a storage or registration
// error.
func NewInternalError(cause error, message string, metadata map[string]any) *goerrors.Error {
	err := wrapInternalError(cause, message)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func newBadInputError(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func wrapInternalError(source error, message string) *goerrors.Error {
	return goerrors.Wrap(source, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorInternal)
}

func IsAuthenticationError(err error) bool {
	return hasTextCode(err, ErrorAuthenticationFailed)
}

func IsRateLimitError(err error) bool {
	return hasTextCode(err, ErrorRateLimited)
}

func IsAPIError(err error) bool {
	return hasTextCode(err, ErrorAPI)
}

func IsPollTimeoutError(err error) bool {
	return hasTextCode(err, ErrorPollTimeout)
}

func IsPollFailedError(err error) bool {
	return hasTextCode(err, ErrorPollFailed)
}

func IsBadInputError(err error) bool {
	return hasTextCode(err, ErrorBadInput)
}

func IsNotFoundError(err error) bool {
	return hasTextCode(err, ErrorNotFound)
}

// StatusCode returns the HTTP code carried by an error envelope, or zero.
func StatusCode(err error) int {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Code
	}
	return 0
}

// MapError normalizes any error into an envelope with a code and text code.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureErrorEnvelope(rich)
	}
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = categoryHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == code
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryAuth:
		return ErrorAuthenticationFailed
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	case goerrors.CategoryExternal:
		return ErrorAPI
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	default:
		return ErrorInternal
	}
}

func categoryHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
