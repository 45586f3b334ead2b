package nntree

import "github.com/qpdf-go/qpdfcore/object"

// pathElem is one step of the root-to-leaf chain: the intermediate node
// crossed, and which of its /Kids was taken.
type pathElem struct {
	node     *object.Handle
	kidIndex int
}

// Iterator is a bidirectional cursor over a Tree's leaf entries, ordered
// by key.
type Iterator struct {
	tree  *Tree
	path  []pathElem
	leaf  *object.Handle
	index int // pair index within leaf's items array
	ok    bool
	err   error
}

// Valid reports whether the iterator currently names a real entry.
func (it *Iterator) Valid() bool { return it != nil && it.ok && it.err == nil }

// Err returns the first error encountered while traversing, if any.
func (it *Iterator) Err() error {
	if it == nil {
		return nil
	}
	return it.err
}

// Key returns the current entry's key handle, or nil if invalid.
func (it *Iterator) Key() *object.Handle {
	if !it.Valid() {
		return nil
	}
	k, _ := it.tree.items(it.leaf).ArrayGet(it.index * 2)
	return k
}

// Value returns the current entry's value handle, or nil if invalid.
func (it *Iterator) Value() *object.Handle {
	if !it.Valid() {
		return nil
	}
	v, _ := it.tree.items(it.leaf).ArrayGet(it.index*2 + 1)
	return v
}

// Next advances to the following entry; returns false once past the end.
func (it *Iterator) Next() bool {
	if it == nil || it.err != nil {
		return false
	}
	if !it.ok {
		return false
	}
	if it.index+1 < it.tree.pairCount(it.leaf) {
		it.index++
		return true
	}
	leaf, path, ok, err := it.tree.nextLeaf(it.path)
	if err != nil {
		it.err = err
		return false
	}
	if !ok {
		it.ok = false
		return false
	}
	it.leaf, it.path, it.index = leaf, path, 0
	return true
}

// Prev retreats to the preceding entry; returns false once before the
// start.
func (it *Iterator) Prev() bool {
	if it == nil || it.err != nil {
		return false
	}
	if !it.ok {
		return false
	}
	if it.index-1 >= 0 {
		it.index--
		return true
	}
	leaf, path, ok, err := it.tree.prevLeaf(it.path)
	if err != nil {
		it.err = err
		return false
	}
	if !ok {
		it.ok = false
		return false
	}
	it.leaf, it.path = leaf, path
	it.index = it.tree.pairCount(leaf) - 1
	return true
}

// InsertAfter inserts key/value immediately after this iterator's current
// position (qpdf's NNTreeIterator::insertAfter), re-pointing it at the
// newly inserted entry. Calling InsertAfter on an invalid iterator behaves
// like Tree.Insert.
func (it *Iterator) InsertAfter(key, value *object.Handle) error {
	if !it.Valid() {
		_, err := it.tree.Insert(key, value)
		return err
	}
	newIt, err := it.tree.insertAt(it.leaf, it.path, it.index+1, key, value)
	if err != nil {
		return err
	}
	*it = *newIt
	return nil
}

// Remove deletes this iterator's current entry and advances it to name
// the following entry (or invalidates it at end-of-tree).
func (it *Iterator) Remove() error {
	if !it.Valid() {
		return nil
	}
	return it.tree.removeAt(it)
}
