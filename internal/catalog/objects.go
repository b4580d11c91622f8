package catalog

import (
	"maps"
	"slices"

	"github.com/cockroachdb/errors"
)

// State is the lifecycle state of a collection entry.
type State uint8

// State values.
const (
	Staged State = iota
	Committed
)

func (s State) String() string {
	if s == Staged {
		return "staged"
	}
	return "committed"
}

// Cloner is implemented by every catalog object.
type Cloner[T any] interface {
	Clone() T
}

type entry[T any] struct {
	state State
	value T
	// replacement is a staged definition waiting to overwrite a committed
	// value (CREATE OR REPLACE, MODIFY COLUMN).
	replacement T
	replacing   bool
}

// Objects is an id-keyed collection whose entries are either staged or
// committed. A committed entry may carry one staged replacement. The zero
// value is ready to use.
type Objects[T Cloner[T]] struct {
	entries map[uint32]*entry[T]
}

func (o *Objects[T]) init() {
	if o.entries == nil {
		o.entries = make(map[uint32]*entry[T])
	}
}

// Stage records v as a staged definition for a new id.
func (o *Objects[T]) Stage(id uint32, v T) {
	o.init()
	if _, ok := o.entries[id]; ok {
		panic(errors.AssertionFailedf("id %d is already present", id))
	}
	o.entries[id] = &entry[T]{state: Staged, value: v}
}

// StageReplacement records v as the staged replacement of committed id.
func (o *Objects[T]) StageReplacement(id uint32, v T) {
	e, ok := o.entries[id]
	if !ok || e.state != Committed {
		panic(errors.AssertionFailedf("replacement staged for missing id %d", id))
	}
	if e.replacing {
		panic(errors.AssertionFailedf("id %d already has a staged replacement", id))
	}
	e.replacement = v
	e.replacing = true
}

// Commit promotes the staged definition of id: a staged entry becomes
// committed, a staged replacement overwrites the committed value.
func (o *Objects[T]) Commit(id uint32) {
	e, ok := o.entries[id]
	switch {
	case !ok:
		panic(errors.AssertionFailedf("commit of missing id %d", id))
	case e.state == Staged:
		e.state = Committed
	case e.replacing:
		e.value = e.replacement
		e.clearReplacement()
	default:
		panic(errors.AssertionFailedf("commit of id %d with nothing staged", id))
	}
}

// Discard drops any staged definition of id. Committed values are kept.
func (o *Objects[T]) Discard(id uint32) {
	e, ok := o.entries[id]
	if !ok {
		return
	}
	if e.state == Staged {
		delete(o.entries, id)
		return
	}
	e.clearReplacement()
}

func (e *entry[T]) clearReplacement() {
	var zero T
	e.replacement = zero
	e.replacing = false
}

// Delete removes id in any state.
func (o *Objects[T]) Delete(id uint32) {
	delete(o.entries, id)
}

// Put stores v as the committed value of id, overwriting any entry.
func (o *Objects[T]) Put(id uint32, v T) {
	o.init()
	o.entries[id] = &entry[T]{state: Committed, value: v}
}

// Get returns the committed value of id.
func (o *Objects[T]) Get(id uint32) (T, bool) {
	e, ok := o.entries[id]
	if !ok || e.state != Committed {
		var zero T
		return zero, false
	}
	return e.value, true
}

// MustGet returns the committed value of id and panics when it is missing.
func (o *Objects[T]) MustGet(id uint32) T {
	v, ok := o.Get(id)
	if !ok {
		panic(errors.AssertionFailedf("no committed object with id %d", id))
	}
	return v
}

// Has reports whether id is committed.
func (o *Objects[T]) Has(id uint32) bool {
	_, ok := o.Get(id)
	return ok
}

// Staged returns the staged definition of id: a staged entry or the staged
// replacement of a committed one.
func (o *Objects[T]) Staged(id uint32) (T, bool) {
	e, ok := o.entries[id]
	switch {
	case !ok:
	case e.state == Staged:
		return e.value, true
	case e.replacing:
		return e.replacement, true
	}
	var zero T
	return zero, false
}

// StateOf reports the state of id and whether it is present at all.
func (o *Objects[T]) StateOf(id uint32) (State, bool) {
	e, ok := o.entries[id]
	if !ok {
		return 0, false
	}
	return e.state, true
}

// IDs returns the committed ids in ascending order.
func (o *Objects[T]) IDs() []uint32 {
	ids := make([]uint32, 0, len(o.entries))
	for _, id := range slices.Sorted(maps.Keys(o.entries)) {
		if o.entries[id].state == Committed {
			ids = append(ids, id)
		}
	}
	return ids
}

// StagedIDs returns, in ascending order, the ids carrying a staged
// definition.
func (o *Objects[T]) StagedIDs() []uint32 {
	var ids []uint32
	for _, id := range slices.Sorted(maps.Keys(o.entries)) {
		if e := o.entries[id]; e.state == Staged || e.replacing {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of committed entries.
func (o *Objects[T]) Len() int {
	n := 0
	for _, e := range o.entries {
		if e.state == Committed {
			n++
		}
	}
	return n
}

// Values returns the committed values in ascending id order.
func (o *Objects[T]) Values() []T {
	return o.Filter(nil)
}

// Filter returns the committed values satisfying pred, in ascending id
// order. A nil pred matches everything.
func (o *Objects[T]) Filter(pred func(T) bool) []T {
	var out []T
	for _, id := range o.IDs() {
		v := o.entries[id].value
		if pred == nil || pred(v) {
			out = append(out, v)
		}
	}
	return out
}

// Any reports whether some committed value satisfies pred.
func (o *Objects[T]) Any(pred func(T) bool) bool {
	for _, e := range o.entries {
		if e.state == Committed && (pred == nil || pred(e.value)) {
			return true
		}
	}
	return false
}

// Clone deep-copies the committed entries. Staged state is not copied.
func (o *Objects[T]) Clone() Objects[T] {
	var out Objects[T]
	for id, e := range o.entries {
		if e.state == Committed {
			out.Put(id, e.value.Clone())
		}
	}
	return out
}
