// Package selection holds the ordered set of areas chosen for comparison.
package selection

import (
	"sync"

	"github.com/rotisserie/eris"

	"github.com/nodescope/area-compare/internal/mapview"
	"github.com/nodescope/area-compare/internal/model"
)

// Capacity is the maximum number of areas that can be compared at once.
const Capacity = 2

// ErrCapacity is returned when adding to a full set.
var ErrCapacity = eris.New("you can select at most 2 areas to compare")

// Change reports what a Toggle did.
type Change int

const (
	Added Change = iota
	Removed
)

func (c Change) String() string {
	if c == Added {
		return "added"
	}
	return "removed"
}

// Set is an insertion-ordered set of at most Capacity areas, unique by ID.
// Emphasis on the map follows membership.
type Set struct {
	mu    sync.Mutex
	areas []model.Area
	layer mapview.Layer
}

// New creates an empty set. A nil layer disables emphasis.
func New(layer mapview.Layer) *Set {
	if layer == nil {
		layer = mapview.Nop{}
	}
	return &Set{layer: layer}
}

// Toggle removes area when present, otherwise appends it. A full set rejects
// the add with ErrCapacity and is left unchanged.
func (s *Set) Toggle(area model.Area) (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(area.ID); i >= 0 {
		s.areas = append(s.areas[:i], s.areas[i+1:]...)
		s.layer.SetEmphasis(area.ID, false)
		return Removed, nil
	}
	if len(s.areas) >= Capacity {
		return Added, ErrCapacity
	}
	s.areas = append(s.areas, area)
	s.layer.SetEmphasis(area.ID, true)
	return Added, nil
}

// Remove drops id from the set. It reports whether id was present.
func (s *Set) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.areas = append(s.areas[:i], s.areas[i+1:]...)
	s.layer.SetEmphasis(id, false)
	return true
}

// Clear empties the set and turns emphasis off for every former member.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.areas {
		s.layer.SetEmphasis(a.ID, false)
	}
	s.areas = nil
}

// Areas returns a copy of the members in insertion order.
func (s *Set) Areas() []model.Area {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Area, len(s.areas))
	copy(out, s.areas)
	return out
}

// IDs returns the member ids in insertion order.
func (s *Set) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.areas))
	for i, a := range s.areas {
		out[i] = a.ID
	}
	return out
}

// Len returns the member count.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.areas)
}

// Contains reports whether id is a member.
func (s *Set) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(id) >= 0
}

func (s *Set) indexOf(id string) int {
	for i, a := range s.areas {
		if a.ID == id {
			return i
		}
	}
	return -1
}
