// Package agentkit provides common building blocks for HTTP data-collection
// agents: a section collector fetching named payloads from remote endpoints,
// a disk-backed fetch cache (see the cache package), record/replay support for
// outbound HTTP (see the trace package), and small shared helpers.
package agentkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

const (
	// DefaultTimeout bounds a single section request. Monitoring endpoints can
	// be extremely slow to assemble their payload, hence the generous default.
	DefaultTimeout = 900 * time.Second

	// DefaultNewlineReplacement is the literal two-character sequence
	// substituted for newlines inside section payloads, so each payload stays
	// a single line of agent output.
	DefaultNewlineReplacement = `\n`
)

// Section pairs a section name with the URL its payload is fetched from.
type Section struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Collector fetches the configured sections from their URLs.
type Collector struct {
	client             *http.Client
	logger             logr.Logger
	timeout            time.Duration
	newlineReplacement string
}

// NewCollector creates a Collector with the given options.
func NewCollector(opts ...Option) (*Collector, error) {
	c := &Collector{
		logger:             logr.Discard(),
		timeout:            DefaultTimeout,
		newlineReplacement: DefaultNewlineReplacement,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.client == nil {
		c.client = http.DefaultClient
	}

	return c, nil
}

// Collect retrieves every section's payload and groups them by section name.
// Newlines inside a payload are replaced so each payload is a single line.
// The first failing section aborts the collection.
func (c *Collector) Collect(ctx context.Context, sections []Section) (map[string][]string, error) {
	content := make(map[string][]string)

	for _, section := range sections {
		c.logger.V(1).Info("fetching section", "section", section.Name, "url", section.URL)
		body, err := c.fetch(ctx, section.URL)
		if err != nil {
			return nil, &ErrSectionFetch{Section: section.Name, URL: section.URL, Err: err}
		}
		content[section.Name] = append(content[section.Name],
			strings.ReplaceAll(body, "\n", c.newlineReplacement))
	}

	return content, nil
}

func (c *Collector) fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch section: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return string(body), nil
}

// WriteSections emits collected content in agent section format: a <<<name>>>
// header followed by the section's payload lines. Sections appear in the order
// they were configured; duplicate names are emitted once with all payloads.
func WriteSections(w io.Writer, sections []Section, content map[string][]string) error {
	seen := make(map[string]bool)
	for _, section := range sections {
		if seen[section.Name] {
			continue
		}
		seen[section.Name] = true

		if _, err := fmt.Fprintf(w, "<<<%s>>>\n", section.Name); err != nil {
			return err
		}
		for _, payload := range content[section.Name] {
			if _, err := fmt.Fprintln(w, payload); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteDebug pretty-prints each payload for inspection: indented JSON when the
// payload parses as JSON, the raw text otherwise.
func WriteDebug(w io.Writer, sections []Section, content map[string][]string) error {
	seen := make(map[string]bool)
	for _, section := range sections {
		if seen[section.Name] {
			continue
		}
		seen[section.Name] = true

		if _, err := fmt.Fprintf(w, "%s:\n", section.Name); err != nil {
			return err
		}
		for _, payload := range content[section.Name] {
			var buf bytes.Buffer
			if err := json.Indent(&buf, []byte(payload), "", "  "); err != nil {
				buf.Reset()
				buf.WriteString(payload)
			}
			if _, err := fmt.Fprintln(w, buf.String()); err != nil {
				return err
			}
		}
	}
	return nil
}
