package object

import "github.com/qpdf-go/qpdfcore/pdferr"

// ArrayLen returns the element count, or 0 with ok=false if h is not an
// array.
func (h *Handle) ArrayLen() (int, bool) {
	arr, ok := h.Value().Array()
	if !ok {
		return 0, false
	}
	return len(arr), true
}

// ArrayGet returns the i'th element of an array Handle.
func (h *Handle) ArrayGet(i int) (*Handle, bool) {
	arr, ok := h.Value().Array()
	if !ok || i < 0 || i >= len(arr) {
		return nil, false
	}
	return arr[i], true
}

// ArrayAppend appends elem to an array Handle in place.
func (h *Handle) ArrayAppend(elem *Handle) error {
	v := h.Value()
	if v.kind != KindArray {
		return pdferr.New(pdferr.CodeObject, "ArrayAppend on non-array value (%s)", v.kind)
	}
	v.arrVal = append(v.arrVal, elem)
	return nil
}

// ArraySet replaces the i'th element of an array Handle.
func (h *Handle) ArraySet(i int, elem *Handle) error {
	v := h.Value()
	if v.kind != KindArray {
		return pdferr.New(pdferr.CodeObject, "ArraySet on non-array value (%s)", v.kind)
	}
	if i < 0 || i >= len(v.arrVal) {
		return pdferr.New(pdferr.CodeObject, "array index %d out of range", i)
	}
	v.arrVal[i] = elem
	return nil
}

// Get looks up key in a dictionary or stream Handle.
func (h *Handle) Get(key string) (*Handle, bool) {
	return h.Value().DictGet(key)
}

// Put inserts or replaces key in a dictionary or stream Handle. Last write
// wins per the duplicate-key rule.
func (h *Handle) Put(key string, val *Handle) error {
	v := h.Value()
	if v.kind != KindDictionary && v.kind != KindStream {
		return pdferr.New(pdferr.CodeObject, "Put on non-dictionary value (%s)", v.kind)
	}
	v.DictSet(key, val)
	return nil
}

// Delete removes key from a dictionary or stream Handle.
func (h *Handle) Delete(key string) {
	h.Value().DictDelete(key)
}

// Keys returns a dictionary or stream Handle's keys.
func (h *Handle) Keys() []string {
	keys, _ := h.Value().DictKeys()
	return keys
}

// AsInteger returns the integer value, or (0, false) if this isn't an
// integer.
func (h *Handle) AsInteger() (int64, bool) { return h.Value().Integer() }

// AsName returns the name's text, or ("", false) if this isn't a name.
func (h *Handle) AsName() (string, bool) { return h.Value().Name() }

// AsBool returns the bool value, or (false, false) if this isn't a bool.
func (h *Handle) AsBool() (bool, bool) { return h.Value().Bool() }

// IsNull reports whether h is absent or holds the null value.
func (h *Handle) IsNull() bool {
	return h == nil || h.Kind() == KindNull
}
