// Package transcribe uploads segment audio to a remote transcription
// endpoint and returns the transcript text.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultEndpoint is the transcription server the daemon talks to by default.
	DefaultEndpoint = "http://127.0.0.1:8888/transcribe"
	// DefaultAttempts is the total number of tries per segment.
	DefaultAttempts = 3
	// DefaultRetryDelay is the fixed pause between tries.
	DefaultRetryDelay = time.Second

	maxResponseBytes = 1 << 20
	maxExcerpt       = 200
)

var (
	// ErrEmptyResponse is returned when the endpoint answers with no body.
	ErrEmptyResponse = errors.New("empty response")
	// ErrMalformedResponse is returned when the body is not {"transcript": "..."}.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrEmptyTranscript is returned when the transcript field is blank, as
	// the server answers for a silent segment. It is not retried.
	ErrEmptyTranscript = errors.New("empty transcript")
)

// TranscriptionError is the terminal failure of Submit. Err is the error of
// the last attempt.
type TranscriptionError struct {
	Attempts int
	Err      error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// Client submits audio files. It holds no per-call state, so concurrent
// Submit calls are independent.
type Client struct {
	endpoint   string
	model      string
	httpClient *http.Client
	attempts   int
	delay      time.Duration
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithModel adds a "model" form field to every request.
func WithModel(model string) Option {
	return func(c *Client) { c.model = strings.TrimSpace(model) }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry sets the total attempts and the fixed delay between them.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if delay >= 0 {
			c.delay = delay
		}
	}
}

// WithLogger sets the logger used for retry notices.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New returns a client for endpoint.
func New(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
		attempts:   DefaultAttempts,
		delay:      DefaultRetryDelay,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit uploads the file at path and returns its transcript. Transport
// failures, error statuses, empty and malformed bodies are all retried with
// a fixed delay until the attempt budget is spent. A blank transcript ends
// the call at once with ErrEmptyTranscript.
func (c *Client) Submit(ctx context.Context, path string) (string, error) {
	audio, err := os.ReadFile(path)
	if err != nil {
		return "", &TranscriptionError{Err: fmt.Errorf("read audio: %w", err)}
	}
	filename := filepath.Base(path)

	attempts := 0
	operation := func() (string, error) {
		attempts++
		return c.attempt(ctx, filename, audio)
	}
	notify := func(err error, next time.Duration) {
		c.log.Warn("transcription attempt failed",
			slog.String("file", filename),
			slog.Int("attempt", attempts),
			slog.Duration("retry_in", next),
			slog.Any("error", err))
	}

	text, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.delay)),
		backoff.WithMaxTries(uint(c.attempts)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return "", &TranscriptionError{Attempts: attempts, Err: err}
	}
	return text, nil
}

func (c *Client) attempt(ctx context.Context, filename string, audio []byte) (string, error) {
	body, contentType, err := buildForm(filename, audio, c.model)
	if err != nil {
		return "", backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post audio: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, excerpt(data))
	}
	text, err := ParseResponse(data)
	if errors.Is(err, ErrEmptyTranscript) {
		return "", backoff.Permanent(err)
	}
	return text, err
}

// ParseResponse extracts the transcript from a response body.
func ParseResponse(data []byte) (string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", ErrEmptyResponse
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	raw, ok := payload["transcript"]
	if !ok {
		return "", fmt.Errorf("%w: missing transcript field", ErrMalformedResponse)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", fmt.Errorf("%w: transcript is not a string", ErrMalformedResponse)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}

func buildForm(filename string, audio []byte, model string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentTypeFor(filename))
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", fmt.Errorf("write audio data: %w", err)
	}

	if model != "" {
		if err := writer.WriteField("model", model); err != nil {
			return nil, "", fmt.Errorf("write model field: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav":
		return "audio/wav"
	case ".caf":
		return "audio/x-caf"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}

func excerpt(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) <= maxExcerpt {
		return s
	}
	cut := maxExcerpt
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
