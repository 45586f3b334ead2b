package object

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSharedIdentityAcrossHandles(t *testing.T) {
	arena := NewArena()
	og := ObjGen{ID: 7, Gen: 0}

	h1 := arena.Get(og)
	h2 := arena.Get(og)
	require.True(t, h1.SameCell(h2))

	arena.Store(og, Value{kind: KindInteger, intVal: 42})
	v, ok := h2.Value().Integer()
	require.True(t, ok)
	require.Equal(t, int64(42), v)

	require.NoError(t, h1.Set(Value{kind: KindInteger, intVal: 99}))
	v2, _ := h2.Value().Integer()
	require.Equal(t, int64(99), v2, "mutation through h1 must be visible through h2")
}

func TestMakeDirectIsIdempotentAndSevers(t *testing.T) {
	arena := NewArena()
	og := ObjGen{ID: 3, Gen: 0}
	arena.Store(og, Value{kind: KindInteger, intVal: 5})

	ref := arena.Get(og)
	direct1 := MakeDirect(ref)
	direct2 := MakeDirect(direct1)

	v1, _ := direct1.Value().Integer()
	v2, _ := direct2.Value().Integer()
	require.Equal(t, int64(5), v1)
	require.Equal(t, int64(5), v2)

	require.NoError(t, ref.Set(Value{kind: KindInteger, intVal: 1000}))
	vStillFive, _ := direct1.Value().Integer()
	require.Equal(t, int64(5), vStillFive, "make_direct must sever sharing with the arena cell")
}

func TestDictionaryDuplicateKeyLastWins(t *testing.T) {
	d := NewDictionary()
	require.NoError(t, d.Put("Type", NewName("Page")))
	require.NoError(t, d.Put("Type", NewName("Catalog")))

	keys := d.Keys()
	require.Len(t, keys, 1)

	v, ok := d.Get("Type")
	require.True(t, ok)
	name, _ := v.AsName()
	require.Equal(t, "Catalog", name)
}

func TestArrayAppendAndGet(t *testing.T) {
	arr := NewArray(NewInteger(1), NewInteger(2))
	require.NoError(t, arr.ArrayAppend(NewInteger(3)))
	n, ok := arr.ArrayLen()
	require.True(t, ok)
	require.Equal(t, 3, n)

	third, ok := arr.ArrayGet(2)
	require.True(t, ok)
	v, _ := third.AsInteger()
	require.Equal(t, int64(3), v)
}

func TestDestroyPoisonsAllHandles(t *testing.T) {
	arena := NewArena()
	og := ObjGen{ID: 1, Gen: 0}
	h := arena.Get(og)
	arena.Store(og, Value{kind: KindInteger, intVal: 1})

	arena.Destroy()
	require.Equal(t, KindDestroyed, h.Kind())
	require.Error(t, h.Set(Value{kind: KindInteger, intVal: 2}))
}

func TestNullObjGenReserved(t *testing.T) {
	var zero ObjGen
	require.True(t, zero.IsNull())
	arena := NewArena()
	h := arena.Get(zero)
	require.Equal(t, KindNull, h.Kind())
}
