// Package hset is a small generic set, adapted from the teacher's
// utils/set.Set[T] (_examples/luxfi-consensus/utils/set/set.go): same map-backed shape,
// trimmed to the operations the runtime actually needs (alias cascade
// visited-sets, the time coordinator's dependent and not-converged sets).
package hset

import "golang.org/x/exp/maps"

const minSetSize = 16

// Set is a set of comparable elements backed by a map.
type Set[T comparable] map[T]struct{}

// Of returns a Set initialized with elts.
func Of[T comparable](elts ...T) Set[T] {
	s := New[T](len(elts))
	s.Add(elts...)
	return s
}

// New returns a new set with initial capacity size.
func New[T comparable](size int) Set[T] {
	if size < 0 {
		return Set[T]{}
	}
	return make(map[T]struct{}, size)
}

func (s *Set[T]) resize(size int) {
	if *s == nil {
		if size < minSetSize {
			size = minSetSize
		}
		*s = make(map[T]struct{}, size)
	}
}

// Add inserts elts into s.
func (s *Set[T]) Add(elts ...T) {
	s.resize(2 * len(elts))
	for _, elt := range elts {
		(*s)[elt] = struct{}{}
	}
}

// Remove deletes elts from s.
func (s *Set[T]) Remove(elts ...T) {
	for _, elt := range elts {
		delete(*s, elt)
	}
}

// Contains reports whether elt is in s.
func (s Set[T]) Contains(elt T) bool {
	_, ok := s[elt]
	return ok
}

// Len returns the number of elements in s.
func (s Set[T]) Len() int { return len(s) }

// List returns the elements of s in unspecified order.
func (s Set[T]) List() []T { return maps.Keys(s) }

// Clear empties s in place.
func (s *Set[T]) Clear() { clear(*s) }
