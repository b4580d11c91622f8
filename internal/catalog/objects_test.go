package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjects_StageCommitDiscard(t *testing.T) {
	var o Objects[*Function]

	o.Stage(1, &Function{ID: 1, Arity: 2})
	_, committed := o.Get(1)
	assert.False(t, committed, "staged entry must not be visible as committed")
	staged, ok := o.Staged(1)
	require.True(t, ok)
	assert.Equal(t, uint32(2), staged.Arity)
	assert.Equal(t, []uint32{1}, o.StagedIDs())
	assert.Empty(t, o.IDs())

	o.Commit(1)
	o.Discard(1)
	got, ok := o.Get(1)
	require.True(t, ok)
	assert.Equal(t, uint32(2), got.Arity)
	assert.Empty(t, o.StagedIDs())

	o.Stage(2, &Function{ID: 2})
	o.Discard(2)
	_, ok = o.StateOf(2)
	assert.False(t, ok)
}

func TestObjects_Replacement(t *testing.T) {
	var o Objects[*Function]
	o.Put(3, &Function{ID: 3, Arity: 1})

	o.StageReplacement(3, &Function{ID: 3, Arity: 4})
	assert.Equal(t, uint32(1), o.MustGet(3).Arity, "replacement is not live until commit")
	assert.Equal(t, []uint32{3}, o.StagedIDs())

	o.Discard(3)
	assert.Equal(t, uint32(1), o.MustGet(3).Arity)
	assert.Empty(t, o.StagedIDs())

	o.StageReplacement(3, &Function{ID: 3, Arity: 4})
	o.Commit(3)
	assert.Equal(t, uint32(4), o.MustGet(3).Arity)
	assert.Empty(t, o.StagedIDs())
}

func TestObjects_Invariants(t *testing.T) {
	tests := []struct {
		name string
		fn   func(o *Objects[*Function])
	}{
		{name: "stage over committed", fn: func(o *Objects[*Function]) { o.Stage(1, &Function{ID: 1}) }},
		{name: "replace missing", fn: func(o *Objects[*Function]) { o.StageReplacement(9, &Function{ID: 9}) }},
		{name: "commit missing", fn: func(o *Objects[*Function]) { o.Commit(9) }},
		{name: "commit with nothing staged", fn: func(o *Objects[*Function]) { o.Commit(1) }},
		{name: "must get missing", fn: func(o *Objects[*Function]) { o.MustGet(9) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o Objects[*Function]
			o.Put(1, &Function{ID: 1})
			assert.Panics(t, func() { tt.fn(&o) })
		})
	}
}

func TestObjects_AscendingOrder(t *testing.T) {
	var o Objects[*Function]
	for _, id := range []uint32{9, 3, 7, 1, 5} {
		o.Put(id, &Function{ID: id, Deterministic: id > 4})
	}
	o.Stage(4, &Function{ID: 4})

	assert.Equal(t, []uint32{1, 3, 5, 7, 9}, o.IDs())
	det := o.Filter(func(f *Function) bool { return f.Deterministic })
	ids := make([]uint32, len(det))
	for i, f := range det {
		ids[i] = f.ID
	}
	assert.Equal(t, []uint32{5, 7, 9}, ids)
	assert.Equal(t, 5, o.Len())
}

func TestObjects_CloneIsDeep(t *testing.T) {
	var o Objects[*Function]
	o.Put(1, &Function{ID: 1, Arity: 1})
	o.Stage(2, &Function{ID: 2})

	c := o.Clone()
	o.MustGet(1).Arity = 7

	assert.Equal(t, uint32(1), c.MustGet(1).Arity)
	assert.Empty(t, c.StagedIDs())
}
