package nntree

import "github.com/qpdf-go/qpdfcore/object"

// Find locates key. With returnPrevIfNotFound, a miss yields the iterator
// for the largest key strictly less than key instead of an invalid one
// (used by page-label/destination lookups that want "the entry governing
// this position" rather than an exact hit).
func (t *Tree) Find(key *object.Handle, returnPrevIfNotFound bool) (*Iterator, error) {
	node, err := t.resolve(t.root)
	if err != nil {
		return nil, err
	}
	var path []pathElem
	for {
		if kids, ok := t.isIntermediate(node); ok {
			n, _ := kids.ArrayLen()
			idx, err := t.searchKids(key, kids, n)
			if err != nil {
				return nil, err
			}
			if idx < 0 {
				return t.End(), nil
			}
			child, err := t.childAt(kids, idx)
			if err != nil {
				return nil, err
			}
			path = append(path, pathElem{node: node, kidIndex: idx})
			node, err = t.resolve(child)
			if err != nil {
				return nil, err
			}
			continue
		}

		items := t.items(node)
		pairCount := t.pairCount(node)
		idx, exact := t.searchItems(key, items, pairCount)
		it := &Iterator{tree: t, leaf: node, path: path}
		switch {
		case exact:
			it.index, it.ok = idx, true
		case returnPrevIfNotFound && idx > 0:
			it.index, it.ok = idx-1, true
		case returnPrevIfNotFound:
			pl, pp, ok2, err := t.prevLeaf(path)
			if err != nil {
				return nil, err
			}
			if ok2 {
				it.leaf, it.path, it.index, it.ok = pl, pp, t.pairCount(pl)-1, true
			}
		}
		return it, nil
	}
}

// FindName is Find specialised to a string key, for a name tree.
func (t *Tree) FindName(key string, returnPrevIfNotFound bool) (*Iterator, error) {
	return t.Find(object.NewString([]byte(key), object.EncodingPDFDoc), returnPrevIfNotFound)
}

// FindNumber is Find specialised to an integer key, for a number tree.
func (t *Tree) FindNumber(key int64, returnPrevIfNotFound bool) (*Iterator, error) {
	return t.Find(object.NewInteger(key), returnPrevIfNotFound)
}

// searchKids binary-searches an intermediate node's /Kids by /Limits,
// returning the index of the kid whose range should contain key (or the
// nearest one, widening past a damaged /Limits rather than failing the
// whole lookup), or -1 if the node has no kids at all.
func (t *Tree) searchKids(key *object.Handle, kids *object.Handle, n int) (int, error) {
	if n == 0 {
		return -1, nil
	}
	lo, hi := 0, n-1
	result := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		child, err := t.childAt(kids, mid)
		if err != nil {
			return 0, err
		}
		first, last, ok := t.limits(child)
		if !ok {
			t.warnf("node at kid index %d has no usable /Limits", mid)
			return mid, nil
		}
		switch {
		case t.compareKeys(key, first) < 0:
			hi = mid - 1
		case t.compareKeys(key, last) > 0:
			result = mid + 1
			lo = mid + 1
		default:
			return mid, nil
		}
	}
	if result >= n {
		result = n - 1
	}
	return result, nil
}

// searchItems binary-searches a leaf's interleaved key/value array,
// reporting the matching pair index and true, or the insertion point and
// false.
func (t *Tree) searchItems(key *object.Handle, items *object.Handle, pairCount int) (int, bool) {
	lo, hi := 0, pairCount-1
	insertion := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		k, _ := items.ArrayGet(mid * 2)
		switch c := t.compareKeys(key, k); {
		case c == 0:
			return mid, true
		case c < 0:
			hi = mid - 1
			insertion = mid
		default:
			lo = mid + 1
			insertion = mid + 1
		}
	}
	return insertion, false
}
