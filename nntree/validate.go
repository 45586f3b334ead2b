package nntree

import "github.com/qpdf-go/qpdfcore/object"

// Validate walks the whole tree checking key ordering and /Limits
// consistency, matching qpdf's NNTreeImpl::checkConsistency. With repair,
// bad /Limits are overwritten with the computed correct range instead of
// only being warned about; key-order and odd-length-array problems are
// never auto-repaired since they imply a damaged items array that this
// package cannot safely reorder without a value_validator.
func (t *Tree) Validate(repair bool) (bool, error) {
	root, err := t.resolve(t.root)
	if err != nil {
		return false, err
	}
	ok := true
	_, _, err = t.validateNode(root, repair, &ok)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (t *Tree) validateNode(node *object.Handle, repair bool, ok *bool) (first, last *object.Handle, err error) {
	if kids, isInter := t.isIntermediate(node); isInter {
		n, _ := kids.ArrayLen()
		if n == 0 {
			t.warnf("intermediate node has no /Kids")
			*ok = false
			return nil, nil, nil
		}
		var prevLast *object.Handle
		for i := 0; i < n; i++ {
			child, err := t.childAt(kids, i)
			if err != nil {
				return nil, nil, err
			}
			cfirst, clast, err := t.validateNode(child, repair, ok)
			if err != nil {
				return nil, nil, err
			}
			if cfirst == nil {
				continue
			}
			if prevLast != nil && t.compareKeys(cfirst, prevLast) <= 0 {
				t.warnf("kid %d key range is not strictly greater than its predecessor", i)
				*ok = false
			}
			prevLast = clast

			declFirst, declLast, has := t.limits(child)
			if !has || t.compareKeys(declFirst, cfirst) != 0 || t.compareKeys(declLast, clast) != 0 {
				if repair {
					t.setLimits(child, cfirst, clast)
				} else {
					t.warnf("kid %d has incorrect /Limits", i)
					*ok = false
				}
			}
			if i == 0 {
				first = cfirst
			}
			if i == n-1 {
				last = clast
			}
		}
		return first, last, nil
	}

	items := t.items(node)
	n, _ := items.ArrayLen()
	if n%2 != 0 {
		t.warnf("leaf items array has odd length")
		*ok = false
		n--
	}
	pairCount := n / 2
	if pairCount == 0 {
		return nil, nil, nil
	}

	var prevKey *object.Handle
	for i := 0; i < pairCount; i++ {
		k, _ := items.ArrayGet(i * 2)
		if !t.keyValid(k) {
			t.warnf("leaf item %d has the wrong key type", i)
			*ok = false
			continue
		}
		if prevKey != nil && t.compareKeys(k, prevKey) <= 0 {
			t.warnf("leaf item %d key is not strictly greater than its predecessor", i)
			*ok = false
		}
		prevKey = k
	}

	first, _ = items.ArrayGet(0)
	last, _ = items.ArrayGet((pairCount - 1) * 2)
	return first, last, nil
}
