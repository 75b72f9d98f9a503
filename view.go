package autoshard

import "github.com/jaredmtdev/autoshard/internal/syncvalue"

type published[T any] struct {
	ok    bool
	value T
}

// View - a single value computed once by a completed stage and
// read by every parallel instance of a later stage.
//
// a View is published exactly once and is read-only afterwards.
type View[T any] struct {
	name  string
	state syncvalue.Value[published[T]]
}

// NewView - creates an unpublished view.
func NewView[T any](name string) *View[T] {
	return &View[T]{name: name}
}

// Name - name of the view, used in errors and logs.
func (v *View[T]) Name() string {
	if v == nil {
		return "<nil>"
	}
	return v.name
}

// Publish - makes value visible to readers.
func (v *View[T]) Publish(value T) error {
	ok := v.state.Update(func(old published[T]) (published[T], bool) {
		if old.ok {
			return old, false
		}
		return published[T]{ok: true, value: value}, true
	})
	if !ok {
		return newViewAlreadyPublishedError(v.name)
	}
	return nil
}

// Get - the published value, or ErrViewNotReady when nothing was published
// (or the view was never wired).
func (v *View[T]) Get() (T, error) {
	if v == nil {
		var zero T
		return zero, newViewNotReadyError(v.Name())
	}
	p := v.state.Load()
	if !p.ok {
		return p.value, newViewNotReadyError(v.name)
	}
	return p.value, nil
}
