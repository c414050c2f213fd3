package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
)

// Store caches the result of a Source's live fetch in a single file on disk.
//
// A Store owns exactly one cache file at {dir}/{name}.cache holding one
// JSON-encoded value. The directory is created lazily on the first successful
// write; the file is overwritten on every live fetch and never deleted by the
// Store, so stale entries are detected rather than cleaned up.
//
// A user may run multiple agents against the same installation. Most of the
// time those configurations must not share cached data, so include a unique
// identifier (typically the hostname) in dir or name. The Store performs no
// locking: a given cache file must not be written by concurrently running
// instances.
type Store[A, V any] struct {
	dir    string
	file   string
	src    Source[A, V]
	strict bool
	logger logr.Logger
}

// Option configures a Store.
type Option func(*settings)

type settings struct {
	strict bool
	logger logr.Logger
}

// WithLogger sets the logger used for cache diagnostics.
// If not set, logging is disabled (logr.Discard() is used).
func WithLogger(logger logr.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithStrict makes cache read, decode, encode and write failures fatal instead
// of degrading to a live fetch. Intended for development and debugging, where
// cache problems should be visible rather than masked by a silent re-fetch.
func WithStrict() Option {
	return func(s *settings) {
		s.strict = true
	}
}

// New creates a Store persisting to {dir}/{name}.cache, backed by the given
// source.
func New[A, V any](dir, name string, src Source[A, V], opts ...Option) *Store[A, V] {
	cfg := settings{logger: logr.Discard()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Store[A, V]{
		dir:    dir,
		file:   filepath.Join(dir, name+".cache"),
		src:    src,
		strict: cfg.strict,
		logger: cfg.logger,
	}
}

// File returns the path of the cache file owned by this Store.
func (s *Store[A, V]) File() string {
	return s.file
}

// GetOption configures a single Get call.
type GetOption func(*getSettings)

type getSettings struct {
	skipCache bool
}

// SkipCache makes Get bypass the cache entirely: live data is always fetched,
// and the result is still persisted for future calls.
func SkipCache() GetOption {
	return func(g *getSettings) {
		g.skipCache = true
	}
}

// Get returns cached data when the source's validity predicate and the
// time-based freshness check both pass, and otherwise fetches live data,
// persists it and returns it.
//
// Errors from the source's Fetch always propagate; the Store has no fallback
// once a live fetch is reached. Cache read, decode, encode and write failures
// are logged and degrade to a live fetch, unless the Store was built with
// WithStrict, in which case they are returned to the caller.
func (s *Store[A, V]) Get(ctx context.Context, args A, opts ...GetOption) (V, error) {
	var cfg getSettings
	for _, opt := range opts {
		opt(&cfg)
	}

	if !cfg.skipCache && s.src.Valid(args) {
		fresh, err := s.fresh()
		if err != nil {
			if s.strict {
				var zero V
				return zero, err
			}
			s.logger.Info("getting live data, cannot inspect cache file", "file", s.file, "error", err.Error())
		}
		if fresh {
			value, err := s.readCached()
			if err == nil {
				return value, nil
			}
			if s.strict {
				var zero V
				return zero, err
			}
			s.logger.Info("getting live data, failed to read from cache", "file", s.file, "error", err.Error())
		}
	}

	value, err := s.src.Fetch(ctx, args)
	if err != nil {
		var zero V
		return zero, err
	}

	if err := s.write(value); err != nil {
		if s.strict {
			var zero V
			return zero, err
		}
		s.logger.Info("failed to write data to cache file", "file", s.file, "error", err.Error())
	}
	return value, nil
}

// mtime returns the cache file's last-modified time, or the zero time when the
// file does not exist.
func (s *Store[A, V]) mtime() (time.Time, error) {
	info, err := os.Stat(s.file)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, &ReadError{Path: s.file, Err: err}
	}
	return info.ModTime(), nil
}

// fresh reports whether the cache file exists and its age is strictly between
// zero and the source's interval. A file dated in the future (clock skew) is
// never fresh.
func (s *Store[A, V]) fresh() (bool, error) {
	mtime, err := s.mtime()
	if err != nil {
		return false, err
	}
	if mtime.IsZero() {
		return false, nil
	}

	age := time.Since(mtime)
	if 0 < age && age < s.src.Interval() {
		return true, nil
	}

	if age <= 0 {
		s.logger.Info("cache file from the future considered invalid", "file", s.file)
	} else {
		s.logger.Info("cache file is outdated", "file", s.file, "age", age.String())
	}
	return false, nil
}

// readCached reads the cache file and decodes its JSON contents.
func (s *Store[A, V]) readCached() (V, error) {
	var value V

	raw, err := os.ReadFile(s.file)
	if err != nil {
		return value, &ReadError{Path: s.file, Err: err}
	}

	if err := json.Unmarshal(bytes.TrimSpace(raw), &value); err != nil {
		return value, &DecodeError{Path: s.file, Err: err}
	}
	return value, nil
}

// write persists a fetched value: the cache directory is created on demand and
// the file is replaced via a temporary file and rename, so readers never see a
// partial entry. Values of type time.Time are encoded as their RFC 3339 string
// form, which means they decode back as strings when the payload type carries
// them in interface-typed fields.
func (s *Store[A, V]) write(value V) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return &EncodeError{Path: s.file, Err: err}
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &WriteError{Path: s.file, Err: err}
	}

	tmp := s.file + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return &WriteError{Path: s.file, Err: err}
	}
	if err := os.Rename(tmp, s.file); err != nil {
		os.Remove(tmp)
		return &WriteError{Path: s.file, Err: err}
	}
	return nil
}
