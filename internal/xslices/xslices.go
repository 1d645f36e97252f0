package xslices

import "slices"

// Remove deletes the first occurrence of v from s, preserving order.
func Remove[T comparable, S ~[]T](s S, v T) S {
	i := slices.Index(s, v)
	if i < 0 {
		return s
	}
	return slices.Delete(s, i, i+1)
}

// Insert inserts v at index i, clamped to the bounds of s.
func Insert[T any, S ~[]T](s S, i int, v T) S {
	if i < 0 {
		i = 0
	}
	if i > len(s) {
		i = len(s)
	}
	return slices.Insert(s, i, v)
}
