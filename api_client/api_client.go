// Package api_client performs single translation round trips against the
// backend and normalizes every possible outcome into the pipeline error
// taxonomy. Transient failures are retried inside a bounded envelope; all
// other failures surface on first occurrence.
package api_client

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/voicetra/pipeline/credentials"
	"github.com/voicetra/pipeline/rate_limit"
	"github.com/voicetra/pipeline/telemetry"
	"github.com/voicetra/pipeline/translation"
	"github.com/voicetra/pipeline/utils/backoff"
	"github.com/voicetra/pipeline/utils/logger"
)

const (
	defaultRequestTimeout   = 25 * time.Second
	defaultMaxRetryAttempts = 2
	defaultRetryAfter       = 60 * time.Second
	maxResponseBytes        = 16 << 20 // audio payloads can be large
)

// Config tunes a Client.
type Config struct {
	BaseURL          string
	ServiceID        string         // credential lookup key; empty disables auth
	MaxRetryAttempts int            // retries for transient failures (default 2)
	RequestTimeout   time.Duration  // per-attempt deadline (default 25s)
	Backoff          backoff.Config // delays between transient retries
}

// Client performs translation round trips. Safe for concurrent use, though
// the request queue in front of it dispatches one call at a time.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate_limit.Limiter
	creds      credentials.Store
	sink       telemetry.Sink
	logger     logger.Logger
}

// NewClient creates a client gated by the given admission limiter.
func NewClient(cfg Config, limiter *rate_limit.Limiter) *Client {
	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = defaultMaxRetryAttempts
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		limiter:    limiter,
		sink:       telemetry.NewNoopSink(),
		logger:     logger.NewNoopLogger(),
	}
}

// SetHTTPClient overrides the underlying HTTP client.
func (c *Client) SetHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// SetCredentials sets the credential store consulted per request.
func (c *Client) SetCredentials(store credentials.Store) *Client {
	c.creds = store
	return c
}

// SetSink sets the telemetry sink recording every attempt.
func (c *Client) SetSink(sink telemetry.Sink) *Client {
	c.sink = sink
	return c
}

// SetLogger sets the logger for retry diagnostics.
func (c *Client) SetLogger(log logger.Logger) *Client {
	c.logger = log
	return c
}

// Translate performs one translation, retrying transient failures up to
// MaxRetryAttempts with jittered exponential backoff. Preconditions are
// checked before any I/O, and a saturated limiter fails the call with
// RateLimitExceeded without touching the network: backpressure, not a
// network error.
func (c *Client) Translate(ctx context.Context, req translation.Request) (*translation.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	gen := backoff.NewGenerator(c.cfg.Backoff)

	var lastErr *translation.PipelineError
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return nil, translation.NewCancelled(ctx.Err())
		}

		if !c.limiter.CanAdmit() {
			wait, _ := c.limiter.TimeUntilNextSlot()
			perr := translation.NewRateLimited(wait)
			c.record(attempt, 0, 0, 0, perr)
			return nil, perr
		}
		c.limiter.RecordAdmission()

		resp, perr := c.doAttempt(ctx, req, attempt)
		if perr == nil {
			return resp, nil
		}
		lastErr = perr

		// 429 is surfaced immediately without consuming a retry slot; the
		// decision to resubmit belongs to the queue in front of us.
		// Cancellation and client-side errors are never retried either.
		if !perr.Retryable() {
			return nil, perr
		}

		if attempt > c.cfg.MaxRetryAttempts {
			break
		}

		delay, ok := gen.NextDelay()
		if !ok {
			break
		}

		c.logger.Printf("api_client: attempt %d failed (%s), retrying in %s", attempt, perr.Kind, delay)
		select {
		case <-ctx.Done():
			return nil, translation.NewCancelled(ctx.Err())
		case <-time.After(delay):
		}
	}

	// Transient retries exhausted. Tag the error so the presentation layer
	// can offer a reduced-scope fallback (e.g. text-only instead of
	// text+audio).
	lastErr.Exhausted = true
	return nil, lastErr
}

// doAttempt performs exactly one HTTP round trip and normalizes the outcome.
func (c *Client) doAttempt(ctx context.Context, req translation.Request, attempt int) (*translation.Response, *translation.PipelineError) {
	body, err := encodeRequest(req)
	if err != nil {
		perr := translation.NewInputInvalid("encode request: " + err.Error())
		c.record(attempt, 0, 0, 0, perr)
		return nil, perr
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.cfg.BaseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		perr := translation.NewInputInvalid("build request: " + err.Error())
		c.record(attempt, 0, len(body), 0, perr)
		return nil, perr
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if c.creds != nil && c.cfg.ServiceID != "" {
		secret, ok := c.creds.Get(c.cfg.ServiceID)
		if !ok {
			perr := translation.NewCredentialInvalid("no credential for service " + c.cfg.ServiceID)
			c.record(attempt, 0, len(body), 0, perr)
			return nil, perr
		}
		httpReq.Header.Set("Authorization", "Bearer "+secret)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		perr := c.classifyTransport(ctx, attemptCtx, err)
		c.record(attempt, time.Since(start), len(body), 0, perr)
		return nil, perr
	}
	defer httpResp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	duration := time.Since(start)

	if readErr != nil {
		perr := translation.NewConnectionLost(readErr)
		c.record(attempt, duration, len(body), httpResp.StatusCode, perr)
		return nil, perr
	}

	resp, perr := decodeResponse(httpResp.StatusCode, httpResp.Header, respBody)
	c.record(attempt, duration, len(body), httpResp.StatusCode, perr)
	return resp, perr
}

// classifyTransport maps a transport-layer error onto the taxonomy.
func (c *Client) classifyTransport(ctx, attemptCtx context.Context, err error) *translation.PipelineError {
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
		return translation.NewCancelled(err)
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return translation.NewTimeout(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return translation.NewTimeout(err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return translation.NewHostUnreachable(err)
	}

	return translation.NewConnectionLost(err)
}

// record emits one telemetry event. Never fails, never blocks.
func (c *Client) record(attempt int, duration time.Duration, payloadSize, statusCode int, perr *translation.PipelineError) {
	kind := ""
	if perr != nil {
		kind = string(perr.Kind)
	}
	c.sink.Record(telemetry.Event{
		Operation:   "translate",
		Attempt:     attempt,
		Duration:    duration,
		PayloadSize: payloadSize,
		StatusCode:  statusCode,
		ErrorKind:   kind,
		Timestamp:   time.Now(),
	})
}

// encodeRequest builds the JSON request body.
func encodeRequest(req translation.Request) ([]byte, error) {
	body, err := sjson.Set("", "text", req.Text)
	if err != nil {
		return nil, err
	}
	body, err = sjson.Set(body, "source_lang", req.SourceLang)
	if err != nil {
		return nil, err
	}
	body, err = sjson.Set(body, "target_lang", req.TargetLang)
	if err != nil {
		return nil, err
	}
	if req.Options.Voice != "" {
		body, err = sjson.Set(body, "options.voice", req.Options.Voice)
		if err != nil {
			return nil, err
		}
	}
	if req.Options.IncludeAudio {
		body, err = sjson.Set(body, "options.include_audio", true)
		if err != nil {
			return nil, err
		}
	}
	return []byte(body), nil
}

// decodeResponse normalizes an HTTP response into a translation.Response or
// a taxonomy error.
func decodeResponse(statusCode int, header http.Header, body []byte) (*translation.Response, *translation.PipelineError) {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return parseSuccess(body)

	case statusCode == http.StatusTooManyRequests:
		return nil, translation.NewRateLimited(parseRetryAfter(header))

	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return nil, translation.NewCredentialInvalid(errorDetail(body))

	default:
		return nil, translation.NewServerError(statusCode, errorDetail(body))
	}
}

func parseSuccess(body []byte) (*translation.Response, *translation.PipelineError) {
	if !gjson.ValidBytes(body) {
		return nil, translation.NewResponseInvalid("response is not valid JSON")
	}

	parsed := gjson.ParseBytes(body)
	text := parsed.Get("translated_text")
	if !text.Exists() {
		return nil, translation.NewResponseInvalid("missing translated_text")
	}

	resp := &translation.Response{
		TranslatedText: text.String(),
		Confidence:     parsed.Get("confidence").Float(),
	}

	if audio := parsed.Get("audio"); audio.Exists() && audio.String() != "" {
		data, err := base64.StdEncoding.DecodeString(audio.String())
		if err != nil {
			return nil, translation.NewResponseInvalid("audio is not valid base64")
		}
		resp.Audio = data
	}

	return resp, nil
}

// parseRetryAfter reads the Retry-After header in seconds, defaulting to 60s
// when absent or unparseable.
func parseRetryAfter(header http.Header) time.Duration {
	v := header.Get("Retry-After")
	if v == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

// errorDetail extracts a short diagnostic from an error body, if present.
func errorDetail(body []byte) string {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
			return msg.String()
		}
		if msg := gjson.GetBytes(body, "detail"); msg.Exists() {
			return msg.String()
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
