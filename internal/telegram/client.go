package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// file urls look like https://api.telegram.org/file/bot<id>:<secret>/<path>
var tokenPattern = regexp.MustCompile(`bot\d+:[A-Za-z0-9_-]+`)

func scrubToken(s string) string {
	return tokenPattern.ReplaceAllString(s, "bot<token>")
}

// leveledSlog adapts slog to retryablehttp, logging intermediate failures
// as warnings since they are retried. Every message and value goes out
// with the bot token scrubbed.
type leveledSlog struct {
	inner *slog.Logger
}

func (l leveledSlog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(scrubToken(msg), scrubArgs(keysAndValues)...)
}

func (l leveledSlog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(scrubToken(msg), scrubArgs(keysAndValues)...)
}

func (l leveledSlog) Info(msg string, keysAndValues ...any) {
	l.inner.Info(scrubToken(msg), scrubArgs(keysAndValues)...)
}

func (l leveledSlog) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug(scrubToken(msg), scrubArgs(keysAndValues)...)
}

func scrubArgs(kv []any) []any {
	out := make([]any, len(kv))
	for i, v := range kv {
		switch v := v.(type) {
		case string:
			out[i] = scrubToken(v)
		case error:
			out[i] = redact(v)
		case fmt.Stringer:
			out[i] = scrubToken(v.String())
		default:
			out[i] = v
		}
	}
	return out
}

type Option func(*retryablehttp.Client)

// WithMaxRetries sets how many times a failed download is retried.
func WithMaxRetries(maxRetries int) Option {
	return func(client *retryablehttp.Client) {
		client.RetryMax = maxRetries
	}
}

// WithRetryWait sets the backoff bounds between retries.
func WithRetryWait(waitMin, waitMax time.Duration) Option {
	return func(client *retryablehttp.Client) {
		client.RetryWaitMin = waitMin
		client.RetryWaitMax = waitMax
	}
}

// NewDownloadClient returns an http.Client that retries connection errors
// and 5xx responses when fetching files from the Bot API file endpoint.
func NewDownloadClient(logger *slog.Logger, options ...Option) *http.Client {
	if logger == nil {
		logger = slog.Default()
	}
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Transport = cleanhttp.DefaultPooledTransport()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: logger.With("subsystem", "download")})

	for _, option := range options {
		option(retryClient)
	}

	client := retryClient.StandardClient()
	client.Timeout = 30 * time.Second
	return client
}

// redactedError carries the text of an error with the bot token scrubbed.
// Only context errors stay reachable through Unwrap.
type redactedError struct {
	msg   string
	cause error
}

func (e *redactedError) Error() string { return e.msg }

func (e *redactedError) Unwrap() error { return e.cause }

// redact scrubs the bot token from err and everything it wraps.
func redact(err error) error {
	if err == nil {
		return nil
	}
	out := &redactedError{msg: scrubToken(err.Error())}
	switch {
	case errors.Is(err, context.Canceled):
		out.cause = context.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		out.cause = context.DeadlineExceeded
	}
	return out
}
