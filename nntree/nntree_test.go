package nntree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qpdf-go/qpdfcore/object"
)

func newNumberTree(t *testing.T, threshold int) *Tree {
	root := object.NewDictionary()
	require.NoError(t, root.Put("Nums", object.NewArray()))
	return NewNumberTree(root, nil, Options{SplitThreshold: threshold})
}

func newNameTree(t *testing.T) *Tree {
	root := object.NewDictionary()
	require.NoError(t, root.Put("Names", object.NewArray()))
	return NewNameTree(root, nil, Options{})
}

func TestNumberTreeInsertAndFind(t *testing.T) {
	tree := newNumberTree(t, 32)
	for _, n := range []int64{5, 1, 3, 2, 4} {
		_, err := tree.Insert(object.NewInteger(n), object.NewString([]byte("v"), object.EncodingRaw))
		require.NoError(t, err)
	}

	it, err := tree.FindNumber(3, false)
	require.NoError(t, err)
	require.True(t, it.Valid())
	iv, _ := it.Key().AsInteger()
	require.Equal(t, int64(3), iv)

	it, err = tree.FindNumber(100, false)
	require.NoError(t, err)
	require.False(t, it.Valid())

	it, err = tree.FindNumber(100, true)
	require.NoError(t, err)
	require.True(t, it.Valid())
	iv, _ = it.Key().AsInteger()
	require.Equal(t, int64(5), iv)
}

func TestNumberTreeForwardIteration(t *testing.T) {
	tree := newNumberTree(t, 32)
	for _, n := range []int64{30, 10, 20} {
		_, err := tree.Insert(object.NewInteger(n), object.NewInteger(n*100))
		require.NoError(t, err)
	}

	var keys []int64
	it := tree.First()
	for it.Valid() {
		k, _ := it.Key().AsInteger()
		keys = append(keys, k)
		it.Next()
	}
	require.Equal(t, []int64{10, 20, 30}, keys)
}

func TestNumberTreeBackwardIteration(t *testing.T) {
	tree := newNumberTree(t, 32)
	for _, n := range []int64{30, 10, 20} {
		_, err := tree.Insert(object.NewInteger(n), object.NewInteger(n))
		require.NoError(t, err)
	}

	var keys []int64
	it := tree.Last()
	for it.Valid() {
		k, _ := it.Key().AsInteger()
		keys = append(keys, k)
		it.Prev()
	}
	require.Equal(t, []int64{30, 20, 10}, keys)
}

func TestNumberTreeSplitPromotesRoot(t *testing.T) {
	tree := newNumberTree(t, 4)
	for n := int64(0); n < 20; n++ {
		_, err := tree.Insert(object.NewInteger(n), object.NewInteger(n))
		require.NoError(t, err)
	}

	_, isIntermediate := tree.isIntermediate(tree.root)
	require.True(t, isIntermediate, "root should have been promoted to an intermediate node after overflow")

	var keys []int64
	it := tree.First()
	for it.Valid() {
		k, _ := it.Key().AsInteger()
		keys = append(keys, k)
		it.Next()
	}
	require.Len(t, keys, 20)
	for i, k := range keys {
		require.Equal(t, int64(i), k)
	}

	ok, err := tree.Validate(false)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNumberTreeRemove(t *testing.T) {
	tree := newNumberTree(t, 4)
	for n := int64(0); n < 10; n++ {
		_, err := tree.Insert(object.NewInteger(n), object.NewInteger(n))
		require.NoError(t, err)
	}

	val, found, err := tree.Remove(object.NewInteger(5))
	require.NoError(t, err)
	require.True(t, found)
	iv, _ := val.AsInteger()
	require.Equal(t, int64(5), iv)

	it, err := tree.FindNumber(5, false)
	require.NoError(t, err)
	require.False(t, it.Valid())

	var keys []int64
	it = tree.First()
	for it.Valid() {
		k, _ := it.Key().AsInteger()
		keys = append(keys, k)
		it.Next()
	}
	require.Equal(t, []int64{0, 1, 2, 3, 4, 6, 7, 8, 9}, keys)

	_, found, err = tree.Remove(object.NewInteger(999))
	require.NoError(t, err)
	require.False(t, found)
}

func TestNameTreeInsertUpdatesExistingKey(t *testing.T) {
	tree := newNameTree(t)
	_, err := tree.Insert(object.NewString([]byte("alpha"), object.EncodingPDFDoc), object.NewInteger(1))
	require.NoError(t, err)
	_, err = tree.Insert(object.NewString([]byte("alpha"), object.EncodingPDFDoc), object.NewInteger(2))
	require.NoError(t, err)

	it, err := tree.FindName("alpha", false)
	require.NoError(t, err)
	require.True(t, it.Valid())
	iv, _ := it.Value().AsInteger()
	require.Equal(t, int64(2), iv)
}

func TestNameTreeInsertRejectsWrongKeyKind(t *testing.T) {
	tree := newNameTree(t)
	_, err := tree.Insert(object.NewInteger(1), object.NewNull())
	require.Error(t, err)
}

func TestIteratorInsertAfter(t *testing.T) {
	tree := newNumberTree(t, 32)
	_, err := tree.Insert(object.NewInteger(1), object.NewInteger(1))
	require.NoError(t, err)
	_, err = tree.Insert(object.NewInteger(3), object.NewInteger(3))
	require.NoError(t, err)

	it, err := tree.FindNumber(1, false)
	require.NoError(t, err)
	require.True(t, it.Valid())

	require.NoError(t, it.InsertAfter(object.NewInteger(2), object.NewInteger(2)))

	var keys []int64
	cur := tree.First()
	for cur.Valid() {
		k, _ := cur.Key().AsInteger()
		keys = append(keys, k)
		cur.Next()
	}
	require.Equal(t, []int64{1, 2, 3}, keys)
}

func TestValidateDetectsBadLimits(t *testing.T) {
	tree := newNumberTree(t, 4)
	for n := int64(0); n < 20; n++ {
		_, err := tree.Insert(object.NewInteger(n), object.NewInteger(n))
		require.NoError(t, err)
	}

	kids, ok := tree.isIntermediate(tree.root)
	require.True(t, ok)
	child, err := tree.childAt(kids, 0)
	require.NoError(t, err)
	tree.setLimits(child, object.NewInteger(-100), object.NewInteger(-50))

	valid, err := tree.Validate(false)
	require.NoError(t, err)
	require.False(t, valid)

	valid, err = tree.Validate(true)
	require.NoError(t, err)
	require.True(t, valid)
}
