// Package batch coalesces single-key fetches issued while resolving one
// request into grouped backend calls, deduplicating identical keys. A
// Loader is created per logical request and owned exclusively by that
// request's execution context; it is a coalescing layer only and keeps
// no per-key cache, so cross-request caching and invalidation stay
// centralized in the response cache.
package batch

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/s0mar1/tftai.gg-sub000/errors"
)

// Func fetches values for a deduplicated key list. Results must come
// back in the same order and length as keys. Returning a KeyedErrors
// whose length matches keys rejects individual slots while the rest
// resolve; any other error rejects the whole group.
type Func[K comparable, V any] func(ctx context.Context, keys []K) ([]V, error)

// KeyedErrors maps per-key failures by position in the fetched key
// list. A nil element means that slot succeeded.
type KeyedErrors []error

// Error implements the error interface
func (ke KeyedErrors) Error() string {
	var parts []string
	for i, err := range ke {
		if err != nil {
			parts = append(parts, fmt.Sprintf("[%d]: %v", i, err))
		}
	}
	return "batch: per-key errors: " + strings.Join(parts, "; ")
}

// Options configures a Loader.
type Options struct {
	// MaxBatchSize bounds the deduplicated key count per backend call.
	// When a group fills up it flushes immediately and later loads open
	// a new group. Default 100.
	MaxBatchSize int

	// Wait is the coalescing window: how long the first Load of a group
	// waits for more keys before flushing. Default 1ms: wide enough to
	// collect every fetch issued synchronously while resolving one
	// query, short enough to be invisible in request latency.
	Wait time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxBatchSize <= 0 {
		o.MaxBatchSize = 100
	}
	if o.Wait <= 0 {
		o.Wait = time.Millisecond
	}
	return o
}

// Loader coalesces Load calls into grouped fetches. Safe for concurrent
// use, but instances are request-scoped by design: sharing one across
// requests would let one caller's pending fetch observe another's rows.
type Loader[K comparable, V any] struct {
	fetch Func[K, V]
	opts  Options

	mu      sync.Mutex
	current *group[K, V]
}

// group is one pending batch: the deduplicated key order and the shared
// result slots. Destroyed once the grouped fetch resolves.
type group[K comparable, V any] struct {
	ctx   context.Context
	keys  []K
	slots map[K]*Thunk[V]
	timer *time.Timer
	fired bool
}

// Thunk is a pending result slot shared by every Load of the same key
// within one group.
type Thunk[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// Value blocks until the grouped fetch resolves or ctx is done.
func (t *Thunk[V]) Value(ctx context.Context) (V, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// NewLoader creates a request-scoped loader around fetch.
func NewLoader[K comparable, V any](fetch Func[K, V], opts Options) *Loader[K, V] {
	return &Loader[K, V]{
		fetch: fetch,
		opts:  opts.withDefaults(),
	}
}

// Load registers interest in key and returns a thunk that resolves when
// the enclosing group's fetch completes. Loads issued within the same
// coalescing window join one group; duplicate keys share one slot.
func (l *Loader[K, V]) Load(ctx context.Context, key K) *Thunk[V] {
	l.mu.Lock()

	g := l.current
	if g == nil {
		g = &group[K, V]{
			ctx:   ctx,
			slots: make(map[K]*Thunk[V]),
		}
		g.timer = time.AfterFunc(l.opts.Wait, func() {
			l.flush(g)
		})
		l.current = g
	}

	if thunk, ok := g.slots[key]; ok {
		l.mu.Unlock()
		return thunk
	}

	thunk := &Thunk[V]{done: make(chan struct{})}
	g.keys = append(g.keys, key)
	g.slots[key] = thunk

	full := len(g.keys) >= l.opts.MaxBatchSize
	l.mu.Unlock()

	if full {
		l.flush(g)
	}

	return thunk
}

// LoadMany loads every key and blocks for all results, preserving key
// order. Duplicate keys yield the shared value.
func (l *Loader[K, V]) LoadMany(ctx context.Context, keys []K) ([]V, error) {
	thunks := make([]*Thunk[V], len(keys))
	for i, key := range keys {
		thunks[i] = l.Load(ctx, key)
	}

	values := make([]V, len(keys))
	for i, thunk := range thunks {
		v, err := thunk.Value(ctx)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// flush detaches g from the loader and runs its fetch. Later Loads open
// a fresh group.
func (l *Loader[K, V]) flush(g *group[K, V]) {
	l.mu.Lock()
	if g.fired {
		l.mu.Unlock()
		return
	}
	g.fired = true
	g.timer.Stop()
	if l.current == g {
		l.current = nil
	}
	keys := g.keys
	l.mu.Unlock()

	if len(keys) == 0 {
		return
	}

	values, err := l.fetch(g.ctx, keys)

	switch {
	case err == nil && len(values) != len(keys):
		err = errors.WrapInvalid(
			fmt.Errorf("%w: got %d results for %d keys", errors.ErrBatchMismatch, len(values), len(keys)),
			"Loader", "flush", "result count check")
		g.rejectAll(err)

	case err != nil:
		var keyed KeyedErrors
		if stderrors.As(err, &keyed) && len(keyed) == len(keys) && len(values) == len(keys) {
			// Per-key error array matching key order: each slot
			// resolves or rejects independently.
			for i, key := range keys {
				thunk := g.slots[key]
				if keyed[i] != nil {
					thunk.err = errors.Wrap(keyed[i], "Loader", "flush", "batch fetch")
				} else {
					thunk.value = values[i]
				}
				close(thunk.done)
			}
			return
		}
		// No silent partial success: every pending thunk sees the same
		// failure.
		g.rejectAll(errors.Wrap(
			fmt.Errorf("%w: %w", errors.ErrBatchFetch, err),
			"Loader", "flush", "batch fetch"))

	default:
		for i, key := range keys {
			thunk := g.slots[key]
			thunk.value = values[i]
			close(thunk.done)
		}
	}
}

func (g *group[K, V]) rejectAll(err error) {
	for _, key := range g.keys {
		thunk := g.slots[key]
		thunk.err = err
		close(thunk.done)
	}
}
