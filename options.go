package agentkit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
)

// Option configures a Collector.
type Option func(*Collector) error

// WithLogger sets a custom logger for the collector.
// If not set, logging is disabled (logr.Discard() is used).
func WithLogger(logger logr.Logger) Option {
	return func(c *Collector) error {
		c.logger = logger
		return nil
	}
}

// WithHTTPClient sets a custom HTTP client, e.g. the replaying client of a
// trace.Recorder.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Collector) error {
		c.client = client
		return nil
	}
}

// WithTimeout sets the per-section request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Collector) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", timeout)
		}
		c.timeout = timeout
		return nil
	}
}

// WithNewlineReplacement sets the string substituted for newlines inside
// section payloads.
func WithNewlineReplacement(replacement string) Option {
	return func(c *Collector) error {
		c.newlineReplacement = replacement
		return nil
	}
}
