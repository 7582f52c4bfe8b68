// Package dedup coalesces concurrent calls to a function so overlapping
// invocations share one in-flight execution, with an optional settled-result
// cache window.
package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultDuration = 5 * time.Second

// Options control the coalescing behavior of a wrapped function.
type Options struct {
	// CacheArgs includes a deterministic serialization of the call argument in
	// the coalescing key, so calls with different arguments never share a
	// result.
	CacheArgs bool
	// CacheRejections keeps failed results cached for the full duration
	// instead of evicting them immediately.
	CacheRejections bool
	// Duration is how long a settled result stays reusable. Zero means
	// DefaultDuration.
	Duration time.Duration
}

type entry[R any] struct {
	done   chan struct{}
	result R
	err    error
}

type wrapper[A, R any] struct {
	mu      sync.Mutex
	entries map[string]*entry[R]
	fn      func(context.Context, A) (R, error)
	opts    Options
	// key is unique per wrapped instance so two unrelated wrapped functions
	// can never collide on a shared cache.
	key string
}

// Wrap returns a function with the same signature as fn that coalesces
// concurrent calls and reuses settled results for the configured duration.
// A rejection from fn propagates to every caller joined to that execution.
func Wrap[A, R any](fn func(context.Context, A) (R, error), opts Options) func(context.Context, A) (R, error) {
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	w := &wrapper[A, R]{
		entries: make(map[string]*entry[R]),
		fn:      fn,
		opts:    opts,
		key:     uuid.NewString(),
	}
	return w.call
}

func (w *wrapper[A, R]) call(ctx context.Context, arg A) (R, error) {
	key := w.key
	if w.opts.CacheArgs {
		key = key + "::" + serializeArg(arg)
	}

	w.mu.Lock()
	if existing, ok := w.entries[key]; ok {
		w.mu.Unlock()
		return w.wait(ctx, existing)
	}

	// The entry must be registered before fn runs so racing callers join it
	// instead of invoking fn a second time.
	pending := &entry[R]{done: make(chan struct{})}
	w.entries[key] = pending
	w.mu.Unlock()

	go w.run(ctx, key, pending, arg)
	return w.wait(ctx, pending)
}

func (w *wrapper[A, R]) run(ctx context.Context, key string, pending *entry[R], arg A) {
	result, err := w.fn(ctx, arg)
	pending.result = result
	pending.err = err
	close(pending.done)

	if err != nil && !w.opts.CacheRejections {
		w.evict(key, pending)
		return
	}
	time.AfterFunc(w.opts.Duration, func() {
		w.evict(key, pending)
	})
}

func (w *wrapper[A, R]) wait(ctx context.Context, e *entry[R]) (R, error) {
	select {
	case <-e.done:
		return e.result, e.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

func (w *wrapper[A, R]) evict(key string, e *entry[R]) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// Only remove the entry we settled; a newer execution may already have
	// replaced it under the same key.
	if current, ok := w.entries[key]; ok && current == e {
		delete(w.entries, key)
	}
}

func serializeArg(arg any) string {
	raw, err := json.Marshal(arg)
	if err != nil {
		return fmt.Sprintf("%#v", arg)
	}
	return string(raw)
}
