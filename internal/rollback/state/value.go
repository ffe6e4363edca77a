package state

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Value is a Collection holding one value of type T.
//
// Reads are allowed at any time; writes only through an active
// AdvanceContext.
type Value[T any] struct {
	id    string
	v     T
	clone func(T) T
	hash  func(io.Writer, T)
}

// NewValue creates a Value. clone must deep-copy T when T holds references
// (slices, maps, pointers); nil means plain assignment. hash may be nil when
// T has a fixed size for encoding/binary.
func NewValue[T any](id string, initial T, clone func(T) T, hash func(io.Writer, T)) *Value[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	if hash == nil {
		if binary.Size(initial) < 0 {
			panic(fmt.Sprintf("state: value %q needs a hash function", id))
		}
		hash = func(w io.Writer, v T) {
			_ = binary.Write(w, binary.LittleEndian, v)
		}
	}
	return &Value[T]{id: id, v: clone(initial), clone: clone, hash: hash}
}

// CollectionID implements Collection.
func (v *Value[T]) CollectionID() string {
	return v.id
}

// Get returns the current value. Callers must not mutate what it references.
func (v *Value[T]) Get() T {
	return v.v
}

// Set replaces the value during an Advance.
func (v *Value[T]) Set(ctx *AdvanceContext, x T) {
	ctx.mustBeActive()
	v.v = x
}

// Update applies fn to the value during an Advance.
func (v *Value[T]) Update(ctx *AdvanceContext, fn func(T) T) {
	ctx.mustBeActive()
	v.v = fn(v.v)
}

// Capture implements Collection.
func (v *Value[T]) Capture() any {
	return v.clone(v.v)
}

// Apply implements Collection.
func (v *Value[T]) Apply(captured any) error {
	x, ok := captured.(T)
	if !ok {
		return fmt.Errorf("%w: %q holds %T", ErrSnapshotMismatch, v.id, captured)
	}
	v.v = v.clone(x)
	return nil
}

// Hash implements Collection.
func (v *Value[T]) Hash(w io.Writer) {
	v.hash(w, v.v)
}
