package domain

import (
	"bytes"
	"encoding/json"

	"github.com/samber/mo"
)

// Field is a tri-state edit of a single value: Unchanged, SetTo(v) or Cleared.
// The zero value is Unchanged.
type Field[T any] struct {
	value mo.Option[T]
	set   bool
}

// Unchanged returns a Field that leaves the current value alone.
func Unchanged[T any]() Field[T] {
	return Field[T]{}
}

// SetTo returns a Field that replaces the current value with v.
func SetTo[T any](v T) Field[T] {
	return Field[T]{set: true, value: mo.Some(v)}
}

// Cleared returns a Field that removes the current value.
func Cleared[T any]() Field[T] {
	return Field[T]{set: true, value: mo.None[T]()}
}

// IsUnchanged reports whether the field leaves the value alone.
func (f Field[T]) IsUnchanged() bool {
	return !f.set
}

// IsCleared reports whether the field removes the value.
func (f Field[T]) IsCleared() bool {
	return f.set && f.value.IsAbsent()
}

// Get returns the new value when the field is SetTo.
func (f Field[T]) Get() (T, bool) {
	return f.value.Get()
}

// Apply returns cur after applying the edit.
func (f Field[T]) Apply(cur mo.Option[T]) mo.Option[T] {
	if !f.set {
		return cur
	}
	return f.value
}

// String renders the field for logs.
func (f Field[T]) String() string {
	switch {
	case f.IsUnchanged():
		return "unchanged"
	case f.IsCleared():
		return "cleared"
	default:
		return "set"
	}
}

// UnmarshalJSON decodes a present JSON key: null means Cleared, anything else SetTo.
// An absent key never reaches this method and stays Unchanged.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = Cleared[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = SetTo(v)
	return nil
}
