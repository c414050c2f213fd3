package agentkit

import "fmt"

// ErrSectionFetch is returned when a section's payload cannot be retrieved.
// The agent has no fallback data source for live collection, so this aborts
// the whole run.
type ErrSectionFetch struct {
	Section string
	URL     string
	Err     error
}

func (e *ErrSectionFetch) Error() string {
	return fmt.Sprintf("failed to fetch section %q from %s: %v", e.Section, e.URL, e.Err)
}

func (e *ErrSectionFetch) Unwrap() error {
	return e.Err
}

// ErrInvalidConfig is returned when an agent configuration file cannot be
// loaded or fails validation.
type ErrInvalidConfig struct {
	Path string
	Err  error
}

func (e *ErrInvalidConfig) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid configuration %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ErrInvalidConfig) Unwrap() error {
	return e.Err
}
