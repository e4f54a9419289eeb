// Package scene holds the single output assembly: an ordered collection of
// validated top-level solids that builders add to and remove from.
package scene

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/chazu/coilblock/pkg/kernel"
)

// ErrUnknownHandle is returned when removing a handle the scene does not hold.
var ErrUnknownHandle = errors.New("scene: unknown handle")

// Handle identifies one entry. Handles are never reused.
type Handle uint64

// Entry is one top-level solid.
type Entry struct {
	Handle Handle
	Name   string
	Solid  kernel.Solid
}

// Scene is the output assembly. Add and Remove are its only mutations;
// other entries are never touched. It is safe for concurrent use.
type Scene struct {
	check func(kernel.Solid) error

	mu      sync.RWMutex
	next    Handle
	entries []Entry
}

// New returns an empty scene that admits solids passing check.
func New(check func(kernel.Solid) error) *Scene {
	return &Scene{check: check}
}

// Add validates s and appends it under name.
func (sc *Scene) Add(name string, s kernel.Solid) (Handle, error) {
	if s == nil {
		return 0, fmt.Errorf("scene: add %s: nil solid: %w", name, kernel.ErrValidity)
	}
	if sc.check != nil {
		if err := sc.check(s); err != nil {
			return 0, fmt.Errorf("scene: add %s: %w", name, err)
		}
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.next++
	sc.entries = append(sc.entries, Entry{Handle: sc.next, Name: name, Solid: s})
	return sc.next, nil
}

// Remove deletes the entry with handle h.
func (sc *Scene) Remove(h Handle) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for i, e := range sc.entries {
		if e.Handle == h {
			sc.entries = append(sc.entries[:i], sc.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w %d", ErrUnknownHandle, h)
}

// Replace removes old and adds s under name. The new solid is validated
// before old is removed, so a failed replace leaves the scene unchanged.
func (sc *Scene) Replace(old Handle, name string, s kernel.Solid) (Handle, error) {
	if s == nil {
		return 0, fmt.Errorf("scene: replace %s: nil solid: %w", name, kernel.ErrValidity)
	}
	if sc.check != nil {
		if err := sc.check(s); err != nil {
			return 0, fmt.Errorf("scene: replace %s: %w", name, err)
		}
	}
	if err := sc.Remove(old); err != nil {
		return 0, err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.next++
	sc.entries = append(sc.entries, Entry{Handle: sc.next, Name: name, Solid: s})
	return sc.next, nil
}

// Get returns the entry with handle h.
func (sc *Scene) Get(h Handle) (Entry, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	for _, e := range sc.entries {
		if e.Handle == h {
			return e, true
		}
	}
	return Entry{}, false
}

// Entries returns a copy of the entries in insertion order.
func (sc *Scene) Entries() []Entry {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	out := make([]Entry, len(sc.entries))
	copy(out, sc.entries)
	return out
}

// Len returns the number of entries.
func (sc *Scene) Len() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.entries)
}

// Bounds returns the bounding box of every entry together. ok is false
// for an empty scene.
func (sc *Scene) Bounds() (min, max [3]float64, ok bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	if len(sc.entries) == 0 {
		return min, max, false
	}
	for i := 0; i < 3; i++ {
		min[i] = math.Inf(1)
		max[i] = math.Inf(-1)
	}
	for _, e := range sc.entries {
		lo, hi := e.Solid.BoundingBox()
		for i := 0; i < 3; i++ {
			min[i] = math.Min(min[i], lo[i])
			max[i] = math.Max(max[i], hi[i])
		}
	}
	return min, max, true
}
