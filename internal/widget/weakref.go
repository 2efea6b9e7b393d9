package widget

import (
	"sync/atomic"
	"weak"
)

// WeakRef is a non-owning handle deferred callbacks use to reach their
// widget. Release makes every copy resolve to nothing, so a destroyed widget
// is never touched even while the host still holds the object.
type WeakRef[T any] struct {
	p        weak.Pointer[T]
	released *atomic.Bool
}

func NewWeakRef[T any](v *T) WeakRef[T] {
	return WeakRef[T]{p: weak.Make(v), released: new(atomic.Bool)}
}

func (r WeakRef[T]) Resolve() (*T, bool) {
	if r.released == nil || r.released.Load() {
		return nil, false
	}
	v := r.p.Value()
	return v, v != nil
}

// Do runs fn with the target if it is still alive.
func (r WeakRef[T]) Do(fn func(*T)) bool {
	v, ok := r.Resolve()
	if ok {
		fn(v)
	}
	return ok
}

func (r WeakRef[T]) Release() {
	if r.released != nil {
		r.released.Store(true)
	}
}
