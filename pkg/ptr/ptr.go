// Package ptr provides utility functions for working with pointers.
package ptr

// Deref returns the value pointed to by p, or the zero value when p is nil.
func Deref[T any](p *T) T {
	if p == nil {
		var zero T

		return zero
	}

	return *p
}

// Of returns a pointer to the given value.
func Of[T any](v T) *T { return &v }

// NonZero returns a pointer to v, or nil when v is the zero value.
func NonZero[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}

	return &v
}
