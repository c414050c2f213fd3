// Package trace wraps a recording HTTP transport for debugging data-collection
// agents. On the first run against a trace file, all outbound requests and
// their responses are written to the file; on later runs the responses are
// replayed from the file and no requests reach the network.
package trace

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/dnaeon/go-vcr.v4/pkg/recorder"
)

// Recorder records or replays outbound HTTP traffic against a trace file.
type Recorder struct {
	rec  *recorder.Recorder
	path string
}

// New creates a Recorder for the given trace file. The file must live under
// $HOME/tmp/debug; the actual cassette is written with a .yaml extension.
// If the cassette does not exist yet, traffic is recorded; otherwise it is
// replayed without touching the network.
func New(path string) (*Recorder, error) {
	abs, err := checkPath(path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}

	rec, err := recorder.New(abs, recorder.WithMode(recorder.ModeRecordOnce))
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	return &Recorder{rec: rec, path: abs}, nil
}

// Client returns an HTTP client routed through the recorder.
func (r *Recorder) Client() *http.Client {
	return r.rec.GetDefaultClient()
}

// Recording reports whether this run records live traffic (as opposed to
// replaying an existing trace).
func (r *Recorder) Recording() bool {
	return r.rec.IsRecording()
}

// Path returns the resolved trace file path without the cassette extension.
func (r *Recorder) Path() string {
	return r.path
}

// Stop flushes recorded interactions to the trace file and detaches the
// transport. The Recorder must not be used afterwards.
func (r *Recorder) Stop() error {
	return r.rec.Stop()
}

// checkPath makes sure traces are only written to and read from the debug
// directory under the user's home.
func checkPath(path string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	allowed := filepath.Join(home, "tmp", "debug")

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve trace path: %w", err)
	}

	rel, err := filepath.Rel(allowed, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("traces can only be stored in %s", allowed)
	}
	return abs, nil
}
