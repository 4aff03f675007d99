package provider

import "sync/atomic"

// Set is an immutable bundle of the active backends. A settings change
// builds a new Set; existing Sets are never modified.
type Set struct {
	// Reasoner is the active text-generation backend.
	Reasoner Reasoner

	// Searcher is the active web-search backend.
	Searcher Searcher

	// Models maps backend names to model listers, for every configured
	// backend that supports listing (not only the active one).
	Models map[string]ModelLister
}

// Registry holds the current Set. Readers take a snapshot with Current and
// use it for the whole operation; writers replace it with Swap.
type Registry struct {
	cur atomic.Pointer[Set]
}

// NewRegistry creates a Registry holding s.
func NewRegistry(s *Set) *Registry {
	r := &Registry{}
	r.cur.Store(s)
	return r
}

// Current returns the active Set.
func (r *Registry) Current() *Set {
	return r.cur.Load()
}

// Swap installs s and returns the previous Set.
func (r *Registry) Swap(s *Set) *Set {
	return r.cur.Swap(s)
}
