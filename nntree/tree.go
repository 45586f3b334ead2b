// Package nntree implements qpdf's balanced name/number tree structure
//: a dictionary whose leaves interleave sorted keys (names or
// numbers) with arbitrary object values, and whose intermediate nodes fan
// out through /Kids with each child's /Limits bounding its key range.
//
// Grounded on original_source/libqpdf/qpdf/NNTree.hh's NNTreeImpl /
// NNTreeIterator split (binary-search descent, split-on-overflow insert,
// bidirectional leaf-to-leaf iteration via a path stack). Reshaped into
// Go's iterator-method idiom (Next/Prev/Valid) rather than C++ iterator
// operator overloads, and built directly on resolve.Resolver rather than
// carrying its own object cache.
package nntree

import (
	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/pdferr"
	"github.com/qpdf-go/qpdfcore/resolve"
	"github.com/qpdf-go/qpdfcore/warnings"
)

// KeyKind selects which PDF value type a tree's keys hold: the two standard
// instantiations are /Names (string keys) and /Nums (integer keys).
type KeyKind int

const (
	KeyName KeyKind = iota
	KeyNumber
)

// defaultSplitThreshold matches qpdf's NNTreeImpl::split_threshold default.
const defaultSplitThreshold = 32

// Options configures a Tree.
type Options struct {
	Warnings *warnings.List
	Context  string
	// SplitThreshold caps the pair count a leaf may hold before Insert
	// splits it; 0 means 32. An intermediate node whose kid count passes it
	// is not split, only warned about.
	SplitThreshold int
	// ValueValidator, if set, rejects Insert calls whose value fails it
	// (qpdf's value_validator constructor parameter).
	ValueValidator func(*object.Handle) bool
}

// Tree is a name or number tree rooted at a dictionary Handle.
type Tree struct {
	resolver       *resolve.Resolver
	root           *object.Handle
	kind           KeyKind
	itemsKey       string
	splitThreshold int
	valueValid     func(*object.Handle) bool
	warn           *warnings.List
	context        string
}

// NewNameTree wraps root as a name tree (/Names arrays, string keys).
func NewNameTree(root *object.Handle, r *resolve.Resolver, opts Options) *Tree {
	return newTree(root, r, KeyName, "Names", opts)
}

// NewNumberTree wraps root as a number tree (/Nums arrays, integer keys).
func NewNumberTree(root *object.Handle, r *resolve.Resolver, opts Options) *Tree {
	return newTree(root, r, KeyNumber, "Nums", opts)
}

func newTree(root *object.Handle, r *resolve.Resolver, kind KeyKind, itemsKey string, opts Options) *Tree {
	threshold := opts.SplitThreshold
	if threshold <= 0 {
		threshold = defaultSplitThreshold
	}
	return &Tree{
		resolver:       r,
		root:           root,
		kind:           kind,
		itemsKey:       itemsKey,
		splitThreshold: threshold,
		valueValid:     opts.ValueValidator,
		warn:           opts.Warnings,
		context:        opts.Context,
	}
}

func (t *Tree) warnf(format string, args ...interface{}) {
	if t.warn == nil {
		return
	}
	t.warn.Addf(warnings.KindDamagedPDF, t.context, "", -1, format, args...)
}

// resolve follows an indirect reference, leaving a direct value untouched.
func (t *Tree) resolve(h *object.Handle) (*object.Handle, error) {
	if h == nil {
		return object.NewNull(), nil
	}
	if og, isRef := h.Value().ReferenceTarget(); isRef {
		return t.resolver.Resolve(og)
	}
	return h, nil
}

func (t *Tree) childAt(kids *object.Handle, idx int) (*object.Handle, error) {
	elem, ok := kids.ArrayGet(idx)
	if !ok {
		return nil, pdferr.New(pdferr.CodeObject, "nntree: kid index %d out of range", idx)
	}
	return t.resolve(elem)
}

// limits reads a node's /Limits [first last] pair.
func (t *Tree) limits(node *object.Handle) (first, last *object.Handle, ok bool) {
	l, has := node.Get("Limits")
	if !has {
		return nil, nil, false
	}
	n, okLen := l.ArrayLen()
	if !okLen || n != 2 {
		return nil, nil, false
	}
	first, _ = l.ArrayGet(0)
	last, _ = l.ArrayGet(1)
	return first, last, true
}

func (t *Tree) setLimits(node *object.Handle, first, last *object.Handle) {
	_ = node.Put("Limits", object.NewArray(first, last))
}

// keyValid reports whether h has the PDF type this tree's keys require.
func (t *Tree) keyValid(h *object.Handle) bool {
	switch t.kind {
	case KeyName:
		return h.Kind() == object.KindString
	case KeyNumber:
		return h.Kind() == object.KindInteger
	}
	return false
}

// compareKeys orders two keys the way qpdf's compareKeys does: byte
// comparison for names, numeric comparison for numbers.
func (t *Tree) compareKeys(a, b *object.Handle) int {
	switch t.kind {
	case KeyName:
		araw, _, _ := a.Value().RawString()
		braw, _, _ := b.Value().RawString()
		return bytesCompare(araw, braw)
	case KeyNumber:
		av, _ := a.AsInteger()
		bv, _ := b.AsInteger()
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	}
	return 0
}

func bytesCompare(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// isIntermediate reports whether node fans out via /Kids rather than
// holding items directly.
func (t *Tree) isIntermediate(node *object.Handle) (*object.Handle, bool) {
	kids, ok := node.Get("Kids")
	if !ok {
		return nil, false
	}
	if kids.Kind() != object.KindArray {
		return nil, false
	}
	return kids, true
}

func (t *Tree) items(node *object.Handle) *object.Handle {
	items, ok := node.Get(t.itemsKey)
	if !ok || items.Kind() != object.KindArray {
		return object.NewArray()
	}
	return items
}

func (t *Tree) pairCount(node *object.Handle) int {
	n, _ := t.items(node).ArrayLen()
	return n / 2
}

// descendFirst walks from node down to the leftmost leaf, extending
// basePath with one pathElem per intermediate level crossed.
func (t *Tree) descendFirst(node *object.Handle, basePath []pathElem) (*object.Handle, []pathElem, error) {
	cur, err := t.resolve(node)
	if err != nil {
		return nil, nil, err
	}
	path := basePath
	for {
		kids, ok := t.isIntermediate(cur)
		if !ok {
			return cur, path, nil
		}
		n, _ := kids.ArrayLen()
		if n == 0 {
			return cur, path, nil
		}
		child, err := t.childAt(kids, 0)
		if err != nil {
			return nil, nil, err
		}
		path = append(append([]pathElem(nil), path...), pathElem{node: cur, kidIndex: 0})
		cur = child
	}
}

// descendLast is descendFirst's mirror, always taking the last kid.
func (t *Tree) descendLast(node *object.Handle, basePath []pathElem) (*object.Handle, []pathElem, error) {
	cur, err := t.resolve(node)
	if err != nil {
		return nil, nil, err
	}
	path := basePath
	for {
		kids, ok := t.isIntermediate(cur)
		if !ok {
			return cur, path, nil
		}
		n, _ := kids.ArrayLen()
		if n == 0 {
			return cur, path, nil
		}
		idx := n - 1
		child, err := t.childAt(kids, idx)
		if err != nil {
			return nil, nil, err
		}
		path = append(append([]pathElem(nil), path...), pathElem{node: cur, kidIndex: idx})
		cur = child
	}
}

// nextLeaf finds the leaf immediately following the one path currently
// addresses, by walking up until a level has an unvisited next kid.
func (t *Tree) nextLeaf(path []pathElem) (*object.Handle, []pathElem, bool, error) {
	p := append([]pathElem(nil), path...)
	for len(p) > 0 {
		top := p[len(p)-1]
		kids, _ := t.isIntermediate(top.node)
		n, _ := kids.ArrayLen()
		if top.kidIndex+1 < n {
			p[len(p)-1].kidIndex++
			child, err := t.childAt(kids, p[len(p)-1].kidIndex)
			if err != nil {
				return nil, nil, false, err
			}
			leaf, newPath, err := t.descendFirst(child, p)
			return leaf, newPath, true, err
		}
		p = p[:len(p)-1]
	}
	return nil, nil, false, nil
}

// prevLeaf is nextLeaf's mirror.
func (t *Tree) prevLeaf(path []pathElem) (*object.Handle, []pathElem, bool, error) {
	p := append([]pathElem(nil), path...)
	for len(p) > 0 {
		top := p[len(p)-1]
		if top.kidIndex-1 >= 0 {
			p[len(p)-1].kidIndex--
			kids, _ := t.isIntermediate(top.node)
			child, err := t.childAt(kids, p[len(p)-1].kidIndex)
			if err != nil {
				return nil, nil, false, err
			}
			leaf, newPath, err := t.descendLast(child, p)
			return leaf, newPath, true, err
		}
		p = p[:len(p)-1]
	}
	return nil, nil, false, nil
}

// First returns an iterator over the tree's smallest entry; Valid is false
// if the tree holds no entries.
func (t *Tree) First() *Iterator {
	leaf, path, err := t.descendFirst(t.root, nil)
	it := &Iterator{tree: t, err: err}
	if err != nil {
		return it
	}
	it.leaf, it.path = leaf, path
	it.index = 0
	it.ok = t.pairCount(leaf) > 0
	return it
}

// Last returns an iterator over the tree's largest entry.
func (t *Tree) Last() *Iterator {
	leaf, path, err := t.descendLast(t.root, nil)
	it := &Iterator{tree: t, err: err}
	if err != nil {
		return it
	}
	it.leaf, it.path = leaf, path
	n := t.pairCount(leaf)
	it.index = n - 1
	it.ok = n > 0
	return it
}

// End returns an always-invalid iterator, the one-past-the-end sentinel.
func (t *Tree) End() *Iterator {
	return &Iterator{tree: t}
}
