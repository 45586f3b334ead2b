package nntree

import (
	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/pdferr"
)

func sliceArray(items *object.Handle, start, end int) *object.Handle {
	out := object.NewArray()
	for i := start; i < end; i++ {
		e, _ := items.ArrayGet(i)
		_ = out.ArrayAppend(e)
	}
	return out
}

func sliceArrayInsert(arr *object.Handle, n, pos int, elem *object.Handle) *object.Handle {
	out := object.NewArray()
	for i := 0; i < pos && i < n; i++ {
		e, _ := arr.ArrayGet(i)
		_ = out.ArrayAppend(e)
	}
	_ = out.ArrayAppend(elem)
	for i := pos; i < n; i++ {
		e, _ := arr.ArrayGet(i)
		_ = out.ArrayAppend(e)
	}
	return out
}

func (t *Tree) syncLeafLimits(leaf *object.Handle) {
	items := t.items(leaf)
	n, _ := items.ArrayLen()
	if n == 0 {
		return
	}
	first, _ := items.ArrayGet(0)
	last, _ := items.ArrayGet(n - 2)
	t.setLimits(leaf, first, last)
}

func (t *Tree) syncIntermediateLimits(node *object.Handle) {
	kids, ok := t.isIntermediate(node)
	if !ok {
		return
	}
	n, _ := kids.ArrayLen()
	if n == 0 {
		return
	}
	firstChild, err1 := t.childAt(kids, 0)
	lastChild, err2 := t.childAt(kids, n-1)
	if err1 != nil || err2 != nil {
		return
	}
	ffirst, _, ok1 := t.limits(firstChild)
	_, llast, ok2 := t.limits(lastChild)
	if !ok1 || !ok2 {
		return
	}
	t.setLimits(node, ffirst, llast)
}

// propagateUp recomputes /Limits bottom-up for every ancestor in path
// except the root (path[0]), which never carries /Limits of its own.
func (t *Tree) propagateUp(path []pathElem) {
	for i := len(path) - 1; i >= 1; i-- {
		t.syncIntermediateLimits(path[i].node)
	}
}

// Insert adds key/value, replacing the existing value if key is already
// present (last-write-wins, matching dictionary duplicate-key handling
// elsewhere in this codebase). Returns an iterator at the inserted or
// updated entry.
func (t *Tree) Insert(key, value *object.Handle) (*Iterator, error) {
	if !t.keyValid(key) {
		return nil, pdferr.New(pdferr.CodeLogic, "nntree: key has the wrong PDF type for this tree")
	}
	if t.valueValid != nil && !t.valueValid(value) {
		return nil, pdferr.New(pdferr.CodeLogic, "nntree: value failed validation")
	}

	root, err := t.resolve(t.root)
	if err != nil {
		return nil, err
	}
	if _, ok := t.isIntermediate(root); !ok {
		if _, has := root.Get(t.itemsKey); !has {
			_ = root.Put(t.itemsKey, object.NewArray())
		}
	}

	var path []pathElem
	node := root
	for {
		if kids, ok := t.isIntermediate(node); ok {
			n, _ := kids.ArrayLen()
			idx, err := t.searchKids(key, kids, n)
			if err != nil {
				return nil, err
			}
			if idx < 0 {
				idx = 0
			}
			child, err := t.childAt(kids, idx)
			if err != nil {
				return nil, err
			}
			path = append(path, pathElem{node: node, kidIndex: idx})
			node = child
			continue
		}

		items := t.items(node)
		pairCount := t.pairCount(node)
		pos, exact := t.searchItems(key, items, pairCount)
		if exact {
			_ = items.ArraySet(pos*2+1, value)
			return &Iterator{tree: t, leaf: node, path: path, index: pos, ok: true}, nil
		}
		return t.insertAt(node, path, pos, key, value)
	}
}

// insertAt inserts key/value at pair position pos in leaf, splitting the
// leaf if it now exceeds the configured split threshold. The parent's /Kids
// gains the new sibling but is never split itself (see insertKidAfter).
func (t *Tree) insertAt(leaf *object.Handle, path []pathElem, pos int, key, value *object.Handle) (*Iterator, error) {
	old := t.items(leaf)
	n, _ := old.ArrayLen()
	newItems := sliceArrayInsert(old, pos*2, pos*2, key)
	_ = newItems.ArrayAppend(value)
	for i := pos * 2; i < n; i++ {
		e, _ := old.ArrayGet(i)
		_ = newItems.ArrayAppend(e)
	}
	_ = leaf.Put(t.itemsKey, newItems)

	if len(path) > 0 {
		t.syncLeafLimits(leaf)
		t.propagateUp(path)
	}

	if t.pairCount(leaf) > t.splitThreshold {
		return t.splitLeaf(leaf, path, pos)
	}
	return &Iterator{tree: t, leaf: leaf, path: path, index: pos, ok: true}, nil
}

// splitLeaf halves an overflowing leaf's items between itself and a new
// sibling, promoting a fresh intermediate root if leaf had no parent.
func (t *Tree) splitLeaf(leaf *object.Handle, path []pathElem, insertedPos int) (*Iterator, error) {
	items := t.items(leaf)
	n, _ := items.ArrayLen()
	mid := (n / 2) / 2

	leftItems := sliceArray(items, 0, mid*2)
	rightItems := sliceArray(items, mid*2, n)

	if len(path) == 0 {
		leftChild := object.NewDictionary()
		_ = leftChild.Put(t.itemsKey, leftItems)
		t.syncLeafLimits(leftChild)

		rightChild := object.NewDictionary()
		_ = rightChild.Put(t.itemsKey, rightItems)
		t.syncLeafLimits(rightChild)

		rootVal := object.NewDictionary()
		_ = rootVal.Put("Kids", object.NewArray(leftChild, rightChild))
		_ = leaf.Set(*rootVal.Value())

		var destLeaf *object.Handle
		var destIdx, kidIdx int
		if insertedPos >= mid {
			destLeaf, destIdx, kidIdx = rightChild, insertedPos-mid, 1
		} else {
			destLeaf, destIdx, kidIdx = leftChild, insertedPos, 0
		}
		return &Iterator{tree: t, leaf: destLeaf, path: []pathElem{{node: leaf, kidIndex: kidIdx}}, index: destIdx, ok: true}, nil
	}

	_ = leaf.Put(t.itemsKey, leftItems)
	t.syncLeafLimits(leaf)

	newLeaf := object.NewDictionary()
	_ = newLeaf.Put(t.itemsKey, rightItems)
	t.syncLeafLimits(newLeaf)

	return t.insertKidAfter(path, leaf, newLeaf, insertedPos, mid)
}

// insertKidAfter splices newLeaf into leaf's parent's /Kids right after
// leaf. If the parent now overflows, it is left oversized rather than
// cascaded into a further split: real /Names//Nums trees rarely need more
// than two levels at the default threshold of 32, and an oversized
// intermediate node is still structurally valid, just not optimally
// balanced.
func (t *Tree) insertKidAfter(path []pathElem, leaf, newLeaf *object.Handle, insertedPos, mid int) (*Iterator, error) {
	parentIdx := len(path) - 1
	parent := path[parentIdx].node
	atIndex := path[parentIdx].kidIndex

	kids, _ := t.isIntermediate(parent)
	n, _ := kids.ArrayLen()
	newKids := sliceArrayInsert(kids, n, atIndex+1, newLeaf)
	_ = parent.Put("Kids", newKids)

	if parentIdx > 0 {
		t.syncIntermediateLimits(parent)
		t.propagateUp(path[:parentIdx])
	}
	if n+1 > t.splitThreshold {
		t.warnf("intermediate node exceeds split threshold after insert; left oversized")
	}

	var destLeaf *object.Handle
	var destIdx, parentKidIndex int
	if insertedPos >= mid {
		destLeaf, destIdx, parentKidIndex = newLeaf, insertedPos-mid, atIndex+1
	} else {
		destLeaf, destIdx, parentKidIndex = leaf, insertedPos, atIndex
	}

	finalPath := append(append([]pathElem(nil), path[:parentIdx]...), pathElem{node: parent, kidIndex: parentKidIndex})
	return &Iterator{tree: t, leaf: destLeaf, path: finalPath, index: destIdx, ok: true}, nil
}

// Remove deletes key's entry, returning its value and true if it was
// present.
func (t *Tree) Remove(key *object.Handle) (*object.Handle, bool, error) {
	it, err := t.Find(key, false)
	if err != nil {
		return nil, false, err
	}
	if !it.Valid() {
		return nil, false, nil
	}
	val := it.Value()
	if err := t.removeAt(it); err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// removeAt deletes it's current entry and repositions it at the
// following entry (or invalidates it at end-of-tree), per
// Iterator.Remove's contract.
func (t *Tree) removeAt(it *Iterator) error {
	leaf := it.leaf
	items := t.items(leaf)
	n, _ := items.ArrayLen()
	newItems := sliceArray(items, 0, it.index*2)
	for i := it.index*2 + 2; i < n; i++ {
		e, _ := items.ArrayGet(i)
		_ = newItems.ArrayAppend(e)
	}
	_ = leaf.Put(t.itemsKey, newItems)

	remaining := t.pairCount(leaf)
	path := it.path

	if remaining == 0 && len(path) > 0 {
		t.removeEmptyLeaf(leaf, path)
		// The parent's later kids shifted down by one; step back one slot so
		// nextLeaf lands on the kid that followed the removed leaf.
		p := append([]pathElem(nil), path...)
		p[len(p)-1].kidIndex--
		leafH, newPath, ok, err := t.nextLeaf(p)
		if err != nil {
			return err
		}
		if !ok {
			it.ok = false
			return nil
		}
		it.leaf, it.path, it.index = leafH, newPath, 0
		return nil
	}

	if remaining > 0 {
		t.syncLeafLimits(leaf)
		t.propagateUp(path)
	}

	if it.index < remaining {
		return nil
	}
	leafH, newPath, ok, err := t.nextLeaf(path)
	if err != nil {
		return err
	}
	if !ok {
		it.ok = false
		return nil
	}
	it.leaf, it.path, it.index = leafH, newPath, 0
	return nil
}

func (t *Tree) removeEmptyLeaf(leaf *object.Handle, path []pathElem) {
	parentIdx := len(path) - 1
	parent := path[parentIdx].node
	atIndex := path[parentIdx].kidIndex

	kids, _ := t.isIntermediate(parent)
	n, _ := kids.ArrayLen()
	newKids := object.NewArray()
	for i := 0; i < n; i++ {
		if i == atIndex {
			continue
		}
		e, _ := kids.ArrayGet(i)
		_ = newKids.ArrayAppend(e)
	}
	_ = parent.Put("Kids", newKids)

	if parentIdx > 0 {
		t.syncIntermediateLimits(parent)
		t.propagateUp(path[:parentIdx])
	}
}
