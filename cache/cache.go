// Package cache implements a fetch-with-fallback-to-disk cache for
// data-collection agents: a Store returns persisted results while they are
// still valid for the given call arguments and fresh enough, and otherwise
// fetches live data and persists it for the next invocation.
package cache

import (
	"context"
	"time"
)

// Source supplies the pluggable policy of a Store: how long cached data stays
// valid, whether an existing entry applies to the current call arguments, and
// how to fetch live data on a miss.
type Source[A, V any] interface {
	// Interval returns for how long cached data is considered valid.
	Interval() time.Duration

	// Valid reports whether a cached entry (if any) still applies to the
	// given call arguments. It must be pure and side-effect-free; the Store
	// calls it before performing any I/O.
	Valid(args A) bool

	// Fetch retrieves live data for the given call arguments. It may be slow
	// or network-bound. Errors are never absorbed by the Store.
	Fetch(ctx context.Context, args A) (V, error)
}

// SourceFuncs adapts plain function values to the Source interface.
type SourceFuncs[A, V any] struct {
	// Window is the freshness interval returned by Interval.
	Window time.Duration

	// ValidFn implements Valid. A nil ValidFn always reports true.
	ValidFn func(args A) bool

	// FetchFn implements Fetch.
	FetchFn func(ctx context.Context, args A) (V, error)
}

// Interval returns the configured freshness window.
func (s SourceFuncs[A, V]) Interval() time.Duration { return s.Window }

// Valid calls ValidFn, or reports true when no ValidFn is set.
func (s SourceFuncs[A, V]) Valid(args A) bool {
	if s.ValidFn == nil {
		return true
	}
	return s.ValidFn(args)
}

// Fetch calls FetchFn.
func (s SourceFuncs[A, V]) Fetch(ctx context.Context, args A) (V, error) {
	return s.FetchFn(ctx, args)
}
