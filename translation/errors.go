package translation

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind tags every failure the pipeline can surface. The recovery engine
// is total over this enumeration.
type ErrorKind string

const (
	// Input preconditions, checked before any I/O.
	KindInputInvalid ErrorKind = "input_invalid"
	KindTextTooLong  ErrorKind = "text_too_long"

	// Transport failures, retryable with backoff.
	KindTimeout         ErrorKind = "timeout"
	KindConnectionLost  ErrorKind = "connection_lost"
	KindHostUnreachable ErrorKind = "host_unreachable"
	KindNotConnected    ErrorKind = "not_connected"

	// Server-side outcomes.
	KindServerError       ErrorKind = "server_error"
	KindRateLimitExceeded ErrorKind = "rate_limit_exceeded"
	KindResponseInvalid   ErrorKind = "response_invalid"
	KindCredentialInvalid ErrorKind = "credential_invalid"

	// Pipeline-local conditions.
	KindQueueFull ErrorKind = "queue_full"
	KindCancelled ErrorKind = "cancelled"
	KindCacheIO   ErrorKind = "cache_io"

	// Passthrough conditions raised by upstream collaborators (speech
	// capture and synthesis) that still need a recovery strategy.
	KindRecognizerUnavailable ErrorKind = "recognizer_unavailable"
	KindNoSpeechDetected      ErrorKind = "no_speech_detected"
	KindPermissionDenied      ErrorKind = "permission_denied"
	KindSynthesisFailed       ErrorKind = "synthesis_failed"
)

// PipelineError is the single error type crossing package boundaries. Kind
// selects the variant; the payload fields below carry variant data (status
// code for server errors, retry-after for rate limits).
type PipelineError struct {
	Kind       ErrorKind
	StatusCode int           // server errors: the HTTP status
	RetryAfter time.Duration // rate limits: server or limiter supplied wait
	Context    string        // human-readable detail, never shown raw to users
	Exhausted  bool          // set when a retry envelope gave up on this error
	Err        error         // wrapped cause, if any
}

func (e *PipelineError) Error() string {
	msg := string(e.Kind)
	switch {
	case e.Kind == KindServerError && e.StatusCode != 0:
		msg = fmt.Sprintf("%s: status %d", e.Kind, e.StatusCode)
	case e.Kind == KindRateLimitExceeded:
		msg = fmt.Sprintf("%s: retry after %s", e.Kind, e.RetryAfter)
	}
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the API client's retry envelope may re-attempt
// after this failure. Only transient transport failures and 5xx responses
// qualify; everything else is surfaced on first occurrence.
func (e *PipelineError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnectionLost, KindHostUnreachable:
		return true
	case KindServerError:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// KindOf extracts the taxonomy kind from any error. The second return is
// false for errors that did not originate in the pipeline.
func KindOf(err error) (ErrorKind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// AsPipelineError returns the *PipelineError in err's chain, if any.
func AsPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// NewInputInvalid reports a request that failed precondition checks.
func NewInputInvalid(context string) *PipelineError {
	return &PipelineError{Kind: KindInputInvalid, Context: context}
}

// NewTextTooLong reports text over MaxTextLength runes.
func NewTextTooLong(length int) *PipelineError {
	return &PipelineError{
		Kind:    KindTextTooLong,
		Context: fmt.Sprintf("text is %d characters, limit is %d", length, MaxTextLength),
	}
}

// NewTimeout reports a network attempt that exceeded its deadline.
func NewTimeout(err error) *PipelineError {
	return &PipelineError{Kind: KindTimeout, Err: err}
}

// NewConnectionLost reports a connection dropped mid-request.
func NewConnectionLost(err error) *PipelineError {
	return &PipelineError{Kind: KindConnectionLost, Err: err}
}

// NewHostUnreachable reports a host that could not be reached at all.
func NewHostUnreachable(err error) *PipelineError {
	return &PipelineError{Kind: KindHostUnreachable, Err: err}
}

// NewServerError reports a non-2xx, non-429 HTTP status.
func NewServerError(statusCode int, body string) *PipelineError {
	return &PipelineError{Kind: KindServerError, StatusCode: statusCode, Context: body}
}

// NewRateLimited reports admission denial, either from the local limiter or
// from an HTTP 429.
func NewRateLimited(retryAfter time.Duration) *PipelineError {
	return &PipelineError{Kind: KindRateLimitExceeded, RetryAfter: retryAfter}
}

// NewResponseInvalid reports a 2xx response whose payload could not be used.
func NewResponseInvalid(context string) *PipelineError {
	return &PipelineError{Kind: KindResponseInvalid, Context: context}
}

// NewCredentialInvalid reports a missing or rejected API credential.
func NewCredentialInvalid(context string) *PipelineError {
	return &PipelineError{Kind: KindCredentialInvalid, Context: context}
}

// NewQueueFull reports an enqueue rejected by the capacity bound.
func NewQueueFull(capacity int) *PipelineError {
	return &PipelineError{
		Kind:    KindQueueFull,
		Context: fmt.Sprintf("queue is at capacity (%d)", capacity),
	}
}

// NewCancelled reports a request cancelled by its caller.
func NewCancelled(err error) *PipelineError {
	return &PipelineError{Kind: KindCancelled, Err: err}
}

// NewCacheIO reports a cache tier I/O failure. Non-fatal: callers degrade to
// a cache miss.
func NewCacheIO(op string, err error) *PipelineError {
	return &PipelineError{Kind: KindCacheIO, Context: op, Err: err}
}
