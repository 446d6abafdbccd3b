// Package state holds per-run aggregates shared between route updaters and
// insertion constraints.
package state

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// StateID names an aggregate within one optimization run.
type StateID string

// Kind tags the value type stored under a StateID.
type Kind int

const (
	KindFloat64 Kind = iota
	KindInt64
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindFloat64:
		return "float64"
	case KindInt64:
		return "int64"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var (
	// ErrKindMismatch is returned when an entry is accessed with a different kind than it was created with.
	ErrKindMismatch = errors.New("state: kind mismatch")
	// ErrUnsupportedValue is returned by Put for values that do not match the declared kind.
	ErrUnsupportedValue = errors.New("state: value does not match kind")
)

// entry is created once per StateID and then updated in place. Float64 values
// live in bits so readers never take a lock.
type entry struct {
	kind  Kind
	bits  atomic.Uint64
	value atomic.Value
}

// Registry is a typed, string-keyed store scoped to one optimization run.
// Entries are created lazily and never deleted while the run is active.
// All methods are safe for concurrent use.
type Registry struct {
	entries sync.Map // StateID -> *entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) load(id StateID) (*entry, bool) {
	v, ok := r.entries.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

func (r *Registry) loadOrCreate(id StateID, kind Kind) (*entry, error) {
	e := &entry{kind: kind}
	if kind == KindFloat64 {
		e.bits.Store(math.Float64bits(math.NaN()))
	}
	v, _ := r.entries.LoadOrStore(id, e)
	got := v.(*entry)
	if got.kind != kind {
		return nil, fmt.Errorf("%w: %q holds %s, requested %s", ErrKindMismatch, id, got.kind, kind)
	}
	return got, nil
}

// Get returns the value stored under id. ok is false when the entry was never written.
func (r *Registry) Get(id StateID, kind Kind) (value any, ok bool, err error) {
	e, found := r.load(id)
	if !found {
		return nil, false, nil
	}
	if e.kind != kind {
		return nil, false, fmt.Errorf("%w: %q holds %s, requested %s", ErrKindMismatch, id, e.kind, kind)
	}
	if kind == KindFloat64 {
		f := math.Float64frombits(e.bits.Load())
		if math.IsNaN(f) {
			return nil, false, nil
		}
		return f, true, nil
	}
	v := e.value.Load()
	if v == nil {
		return nil, false, nil
	}
	return v, true, nil
}

// Put overwrites the value stored under id.
func (r *Registry) Put(id StateID, kind Kind, value any) error {
	e, err := r.loadOrCreate(id, kind)
	if err != nil {
		return err
	}
	switch kind {
	case KindFloat64:
		f, ok := value.(float64)
		if !ok {
			return fmt.Errorf("%w: %q expects float64, got %T", ErrUnsupportedValue, id, value)
		}
		e.bits.Store(math.Float64bits(f))
		return nil
	case KindInt64:
		if _, ok := value.(int64); !ok {
			return fmt.Errorf("%w: %q expects int64, got %T", ErrUnsupportedValue, id, value)
		}
	case KindString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%w: %q expects string, got %T", ErrUnsupportedValue, id, value)
		}
	case KindBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%w: %q expects bool, got %T", ErrUnsupportedValue, id, value)
		}
	default:
		return fmt.Errorf("%w: unknown kind %s", ErrUnsupportedValue, kind)
	}
	e.value.Store(value)
	return nil
}

// Float64 reads a float64 aggregate. Missing, NaN and mistyped entries read as 0.
func (r *Registry) Float64(id StateID) float64 {
	e, ok := r.load(id)
	if !ok || e.kind != KindFloat64 {
		return 0
	}
	f := math.Float64frombits(e.bits.Load())
	if math.IsNaN(f) {
		return 0
	}
	return f
}

// PutFloat64 overwrites a float64 aggregate.
func (r *Registry) PutFloat64(id StateID, v float64) error {
	return r.Put(id, KindFloat64, v)
}

// MaxFloat64 raises the entry to v if v is larger than the stored value and
// reports the value held afterwards. Missing and NaN entries count as 0.
// The read-modify-write is a CAS loop, so concurrent raises are never lost.
func (r *Registry) MaxFloat64(id StateID, v float64) (stored float64, raised bool, err error) {
	e, err := r.loadOrCreate(id, KindFloat64)
	if err != nil {
		return 0, false, err
	}
	for {
		old := e.bits.Load()
		cur := math.Float64frombits(old)
		if math.IsNaN(cur) {
			cur = 0
		}
		if !(v > cur) {
			if math.IsNaN(math.Float64frombits(old)) {
				// materialize the default so later reads see a real entry
				if e.bits.CompareAndSwap(old, math.Float64bits(cur)) {
					return cur, false, nil
				}
				continue
			}
			return cur, false, nil
		}
		if e.bits.CompareAndSwap(old, math.Float64bits(v)) {
			return v, true, nil
		}
	}
}

// Read returns the entry under id asserted to T, following Get semantics.
func Read[T any](r *Registry, id StateID, kind Kind) (T, bool, error) {
	var zero T
	v, ok, err := r.Get(id, kind)
	if err != nil || !ok {
		return zero, ok, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, false, fmt.Errorf("%w: %q holds %T", ErrKindMismatch, id, v)
	}
	return t, true, nil
}
