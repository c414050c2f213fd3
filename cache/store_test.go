package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// countingSource records how often Fetch is invoked and returns a fixed value.
type countingSource struct {
	window time.Duration
	valid  bool
	value  map[string]any
	err    error
	calls  int
}

func (c *countingSource) Interval() time.Duration { return c.window }

func (c *countingSource) Valid(args string) bool { return c.valid }

func (c *countingSource) Fetch(ctx context.Context, args string) (map[string]any, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.value, nil
}

// age rewinds the cache file's mtime so a freshly written file looks d old.
func age(t *testing.T, file string, d time.Duration) {
	t.Helper()
	mtime := time.Now().Add(-d)
	if err := os.Chtimes(file, mtime, mtime); err != nil {
		t.Fatalf("Chtimes(%s): %v", file, err)
	}
}

func TestGetFetchesWritesAndHits(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "agents", "host1")
	src := &countingSource{
		window: 600 * time.Second,
		valid:  true,
		value:  map[string]any{"uptime": float64(4711)},
	}
	store := New[string, map[string]any](dir, "citrix", src)

	// Cache file absent: first call fetches live and writes the file.
	got, err := store.Get(ctx, "query")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got["uptime"] != float64(4711) {
		t.Errorf("Get() = %v, want uptime 4711", got)
	}
	if src.calls != 1 {
		t.Fatalf("fetch calls = %d, want 1", src.calls)
	}
	if _, err := os.Stat(store.File()); err != nil {
		t.Fatalf("cache file not written: %v", err)
	}

	// Identical second call within the window: served from cache, no fetch.
	age(t, store.File(), 5*time.Second)
	got, err = store.Get(ctx, "query")
	if err != nil {
		t.Fatalf("second Get() failed: %v", err)
	}
	if got["uptime"] != float64(4711) {
		t.Errorf("cached Get() = %v, want uptime 4711", got)
	}
	if src.calls != 1 {
		t.Errorf("fetch calls after cache hit = %d, want 1", src.calls)
	}

	// File aged past the window: third call fetches again.
	age(t, store.File(), 700*time.Second)
	if _, err := store.Get(ctx, "query"); err != nil {
		t.Fatalf("third Get() failed: %v", err)
	}
	if src.calls != 2 {
		t.Errorf("fetch calls after expiry = %d, want 2", src.calls)
	}
}

func TestGetFreshnessBoundary(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{
		window: 60 * time.Second,
		valid:  true,
		value:  map[string]any{"n": float64(1)},
	}
	store := New[string, map[string]any](t.TempDir(), "boundary", src)

	if _, err := store.Get(ctx, ""); err != nil {
		t.Fatalf("priming Get() failed: %v", err)
	}

	tests := []struct {
		name      string
		age       time.Duration
		wantCalls int
	}{
		{"just inside window", 59 * time.Second, 0},
		{"just past window", 61 * time.Second, 1},
		{"exactly at window", 60 * time.Second, 1},
		{"mtime in the future", -30 * time.Second, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src.calls = 0
			age(t, store.File(), tt.age)
			if _, err := store.Get(ctx, ""); err != nil {
				t.Fatalf("Get() failed: %v", err)
			}
			if src.calls != tt.wantCalls {
				t.Errorf("fetch calls = %d, want %d", src.calls, tt.wantCalls)
			}
		})
	}
}

func TestGetIgnoresCacheWhenArgsDoNotMatch(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{
		window: time.Hour,
		valid:  false, // cached entry never applies to these arguments
		value:  map[string]any{"n": float64(1)},
	}
	store := New[string, map[string]any](t.TempDir(), "argscheck", src)

	if _, err := store.Get(ctx, "a"); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	age(t, store.File(), 2*time.Second)
	if _, err := store.Get(ctx, "b"); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if src.calls != 2 {
		t.Errorf("fetch calls = %d, want 2 (validity predicate is false)", src.calls)
	}
}

func TestGetSkipCache(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{
		window: time.Hour,
		valid:  true,
		value:  map[string]any{"n": float64(7)},
	}
	store := New[string, map[string]any](t.TempDir(), "bypass", src)

	if _, err := store.Get(ctx, ""); err != nil {
		t.Fatalf("priming Get() failed: %v", err)
	}
	age(t, store.File(), 2*time.Second)

	before, err := os.Stat(store.File())
	if err != nil {
		t.Fatalf("stat cache file: %v", err)
	}

	if _, err := store.Get(ctx, "", SkipCache()); err != nil {
		t.Fatalf("Get(SkipCache) failed: %v", err)
	}
	if src.calls != 2 {
		t.Errorf("fetch calls = %d, want 2 (cache bypassed)", src.calls)
	}

	// The bypassing call still persists the fresh result.
	after, err := os.Stat(store.File())
	if err != nil {
		t.Fatalf("stat cache file: %v", err)
	}
	if !after.ModTime().After(before.ModTime()) {
		t.Error("cache file not rewritten by bypassing call")
	}
}

func TestGetCorruptCacheFallsBackToLiveData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := &countingSource{
		window: time.Hour,
		valid:  true,
		value:  map[string]any{"n": float64(3)},
	}
	store := New[string, map[string]any](dir, "corrupt", src)

	if err := os.WriteFile(store.File(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	age(t, store.File(), 2*time.Second)

	got, err := store.Get(ctx, "")
	if err != nil {
		t.Fatalf("Get() failed on corrupt cache: %v", err)
	}
	if got["n"] != float64(3) {
		t.Errorf("Get() = %v, want live value", got)
	}
	if src.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", src.calls)
	}

	// The corrupt file has been replaced with valid JSON.
	fresh, err := store.readCached()
	if err != nil {
		t.Fatalf("cache file still corrupt after live fetch: %v", err)
	}
	if fresh["n"] != float64(3) {
		t.Errorf("rewritten cache = %v, want live value", fresh)
	}
}

func TestGetCorruptCacheStrictMode(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{
		window: time.Hour,
		valid:  true,
		value:  map[string]any{"n": float64(3)},
	}
	store := New[string, map[string]any](t.TempDir(), "corrupt", src, WithStrict())

	if err := os.WriteFile(store.File(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	age(t, store.File(), 2*time.Second)

	_, err := store.Get(ctx, "")
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Get() error = %v, want *DecodeError", err)
	}
	if src.calls != 0 {
		t.Errorf("fetch calls = %d, want 0 (strict mode aborts before fetch)", src.calls)
	}
}

func TestGetFetchErrorPropagates(t *testing.T) {
	ctx := context.Background()
	fetchErr := errors.New("backend unreachable")
	src := &countingSource{window: time.Hour, valid: true, err: fetchErr}
	store := New[string, map[string]any](t.TempDir(), "fetchfail", src)

	if _, err := store.Get(ctx, ""); !errors.Is(err, fetchErr) {
		t.Errorf("Get() error = %v, want %v", err, fetchErr)
	}
}

func TestGetWriteFailureStillReturnsValue(t *testing.T) {
	ctx := context.Background()
	parent := t.TempDir()

	// A regular file where the cache directory should be makes MkdirAll fail.
	blocker := filepath.Join(parent, "blocked")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	src := &countingSource{
		window: time.Hour,
		valid:  true,
		value:  map[string]any{"n": float64(9)},
	}

	got, err := New[string, map[string]any](blocker, "unwritable", src).Get(ctx, "")
	if err != nil {
		t.Fatalf("Get() failed despite lenient mode: %v", err)
	}
	if got["n"] != float64(9) {
		t.Errorf("Get() = %v, want fetched value", got)
	}

	// SkipCache goes straight to the write path, so strict mode surfaces the
	// persistence failure rather than the earlier stat failure.
	_, err = New[string, map[string]any](blocker, "unwritable", src, WithStrict()).Get(ctx, "", SkipCache())
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Errorf("strict Get() error = %v, want *WriteError", err)
	}
}

func TestGetUnencodableValue(t *testing.T) {
	ctx := context.Background()
	src := SourceFuncs[string, map[string]any]{
		Window: time.Hour,
		FetchFn: func(ctx context.Context, args string) (map[string]any, error) {
			return map[string]any{"ch": make(chan int)}, nil
		},
	}

	// Lenient: the unencodable value is still handed to the caller.
	got, err := New[string, map[string]any](t.TempDir(), "chan", src).Get(ctx, "")
	if err != nil {
		t.Fatalf("Get() failed despite lenient mode: %v", err)
	}
	if _, ok := got["ch"]; !ok {
		t.Error("fetched value not returned")
	}

	_, err = New[string, map[string]any](t.TempDir(), "chan", src, WithStrict()).Get(ctx, "")
	var encodeErr *EncodeError
	if !errors.As(err, &encodeErr) {
		t.Errorf("strict Get() error = %v, want *EncodeError", err)
	}
}

func TestRoundTripTimesBecomeStrings(t *testing.T) {
	ctx := context.Background()
	stamp := time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)
	src := SourceFuncs[string, map[string]any]{
		Window: time.Hour,
		FetchFn: func(ctx context.Context, args string) (map[string]any, error) {
			return map[string]any{
				"host":  "web01",
				"since": stamp,
				"load":  []any{float64(1), float64(2)},
			}, nil
		},
	}
	store := New[string, map[string]any](t.TempDir(), "roundtrip", src)

	if _, err := store.Get(ctx, ""); err != nil {
		t.Fatalf("priming Get() failed: %v", err)
	}
	age(t, store.File(), 2*time.Second)

	got, err := store.Get(ctx, "")
	if err != nil {
		t.Fatalf("cached Get() failed: %v", err)
	}
	if got["host"] != "web01" {
		t.Errorf("host = %v, want web01", got["host"])
	}
	load, ok := got["load"].([]any)
	if !ok || len(load) != 2 || load[0] != float64(1) {
		t.Errorf("load = %v, want [1 2]", got["load"])
	}
	// Time values are lossy on purpose: they come back as RFC 3339 strings.
	since, ok := got["since"].(string)
	if !ok {
		t.Fatalf("since = %T(%v), want string", got["since"], got["since"])
	}
	if parsed, err := time.Parse(time.RFC3339, since); err != nil || !parsed.Equal(stamp) {
		t.Errorf("since = %q, want RFC 3339 form of %v", since, stamp)
	}
}

func TestReadCachedTrimsWhitespace(t *testing.T) {
	src := &countingSource{window: time.Hour, valid: true}
	store := New[string, map[string]any](t.TempDir(), "padded", src)

	if err := os.WriteFile(store.File(), []byte("\n  {\"n\": 5}  \n"), 0o644); err != nil {
		t.Fatalf("write cache file: %v", err)
	}

	got, err := store.readCached()
	if err != nil {
		t.Fatalf("readCached() failed: %v", err)
	}
	if got["n"] != float64(5) {
		t.Errorf("readCached() = %v, want n=5", got)
	}
}
