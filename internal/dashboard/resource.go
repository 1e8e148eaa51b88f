package dashboard

import (
	"context"
	"errors"
	"sync"

	"github.com/tomkat-cr/abstractgo/internal/apiclient"
)

// ErrStale is returned by Refetch when its result was discarded because a
// newer refetch started or the resource was closed.
var ErrStale = errors.New("result discarded")

// State is a point-in-time view of a Resource.
type State[T any] struct {
	Data    T
	HasData bool
	Loading bool
	Err     string
}

// Resource holds the last good value of one fetch together with its
// loading and error status.
type Resource[T any] struct {
	fetch func(context.Context) (T, error)

	mu      sync.Mutex
	data    T
	hasData bool
	loading bool
	err     string
	gen     uint64
	closed  bool
}

// NewResource wraps fetch. Nothing is fetched until Refetch is called.
func NewResource[T any](fetch func(context.Context) (T, error)) *Resource[T] {
	return &Resource[T]{fetch: fetch}
}

// State returns a copy of the current state.
func (r *Resource[T]) State() State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State[T]{Data: r.data, HasData: r.hasData, Loading: r.loading, Err: r.err}
}

// Refetch runs the fetch and stores its outcome. On failure the previous
// data is kept and a readable error recorded. Results of a superseded call
// or of a call that finishes after Close are dropped and reported as ErrStale.
func (r *Resource[T]) Refetch(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrStale
	}
	r.gen++
	gen := r.gen
	r.loading = true
	r.mu.Unlock()

	value, err := r.fetch(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || gen != r.gen {
		return ErrStale
	}
	r.loading = false
	if err != nil {
		r.err = apiclient.Message(err)
		return err
	}
	r.data = value
	r.hasData = true
	r.err = ""
	return nil
}

// Close drops any in-flight result. Later Refetch calls do nothing.
func (r *Resource[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.loading = false
}
