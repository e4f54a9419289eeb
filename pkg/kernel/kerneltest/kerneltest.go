// Package kerneltest provides a fault-injecting kernel.Kernel for tests.
package kerneltest

import (
	"fmt"
	"sync/atomic"

	"github.com/chazu/coilblock/pkg/kernel"
)

// Compile-time interface check.
var _ kernel.Kernel = (*Faulty)(nil)

// Predicate decides whether the n-th call (1-based) of an operation fails.
type Predicate func(n int64) bool

// Always fails every call.
func Always(int64) bool { return true }

// Calls fails exactly the listed calls.
func Calls(ns ...int64) Predicate {
	return func(n int64) bool {
		for _, m := range ns {
			if n == m {
				return true
			}
		}
		return false
	}
}

// Faulty wraps a kernel and makes selected Fuse, Cut, Sweep and Check
// calls fail. A nil predicate never fails. Failures wrap the same sentinel
// errors a real backend reports.
type Faulty struct {
	kernel.Kernel

	FailFuse  Predicate
	FailCut   Predicate
	FailSweep Predicate
	FailCheck Predicate

	fuses, cuts, sweeps, checks atomic.Int64
}

// Wrap returns a Faulty that delegates to k.
func Wrap(k kernel.Kernel) *Faulty {
	return &Faulty{Kernel: k}
}

func (f *Faulty) Fuse(a, b kernel.Solid) (kernel.Solid, error) {
	n := f.fuses.Add(1)
	if f.FailFuse != nil && f.FailFuse(n) {
		return nil, fmt.Errorf("kerneltest: fuse %d: %w", n, kernel.ErrConstruction)
	}
	return f.Kernel.Fuse(a, b)
}

func (f *Faulty) Cut(a, b kernel.Solid) (kernel.Solid, error) {
	n := f.cuts.Add(1)
	if f.FailCut != nil && f.FailCut(n) {
		return nil, fmt.Errorf("kerneltest: cut %d: %w", n, kernel.ErrConstruction)
	}
	return f.Kernel.Cut(a, b)
}

func (f *Faulty) Sweep(profile, spine kernel.Wire) (kernel.Solid, error) {
	n := f.sweeps.Add(1)
	if f.FailSweep != nil && f.FailSweep(n) {
		return nil, fmt.Errorf("kerneltest: sweep %d: %w", n, kernel.ErrConstruction)
	}
	return f.Kernel.Sweep(profile, spine)
}

func (f *Faulty) Check(s kernel.Solid) error {
	n := f.checks.Add(1)
	if f.FailCheck != nil && f.FailCheck(n) {
		return fmt.Errorf("kerneltest: check %d: %w", n, kernel.ErrValidity)
	}
	return f.Kernel.Check(s)
}

// Fuses returns how many Fuse calls were made.
func (f *Faulty) Fuses() int64 { return f.fuses.Load() }

// Cuts returns how many Cut calls were made.
func (f *Faulty) Cuts() int64 { return f.cuts.Load() }

// Sweeps returns how many Sweep calls were made.
func (f *Faulty) Sweeps() int64 { return f.sweeps.Load() }
