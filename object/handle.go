package object

import "github.com/qpdf-go/qpdfcore/pdferr"

// Handle is a smart pointer to a Value cell ("Handles and ownership").
// Two Handles compare as the same object iff they wrap the same cell
// pointer: Arena.Get(og) always returns a Handle over the same cell for a
// given og, which is what gives indirect objects shared, mutation-visible
// identity. Freshly constructed direct values (NewDictionary, NewInteger,
// ...) get a private, unregistered cell; copying such a Handle into more
// than one container shares that cell's pointer until MakeDirect is used
// to sever it, matching "direct objects are logically by-value but
// physically share a cell until the first mutation through a make-direct
// boundary" — mutation here is explicit (via MakeDirect), not
// automatically copy-on-write on every Set call, which is the pragmatic
// simplification this rewrite makes: callers that need independent copies
// call MakeDirect themselves rather than relying on implicit CoW.
type Handle struct {
	cell *cell
}

func newHandle(v Value) *Handle {
	return &Handle{cell: &cell{value: v, state: StateResolved}}
}

// NewNull creates a direct null Handle.
func NewNull() *Handle { return newHandle(Value{kind: KindNull}) }

// NewBool creates a direct bool Handle.
func NewBool(b bool) *Handle { return newHandle(Value{kind: KindBool, boolVal: b}) }

// NewInteger creates a direct integer Handle.
func NewInteger(i int64) *Handle { return newHandle(Value{kind: KindInteger, intVal: i}) }

// NewReal creates a direct real Handle, preserving text exactly as given.
func NewReal(text string) *Handle { return newHandle(Value{kind: KindReal, realVal: text}) }

// NewName creates a direct name Handle.
func NewName(name string) *Handle { return newHandle(Value{kind: KindName, nameVal: name}) }

// NewString creates a direct string Handle.
func NewString(data []byte, enc StringEncoding) *Handle {
	return newHandle(Value{kind: KindString, strVal: data, strEnc: enc})
}

// NewArray creates a direct array Handle over the given elements.
func NewArray(items ...*Handle) *Handle {
	arr := append([]*Handle(nil), items...)
	return newHandle(Value{kind: KindArray, arrVal: arr})
}

// NewDictionary creates an empty direct dictionary Handle.
func NewDictionary() *Handle {
	return newHandle(Value{kind: KindDictionary, dictVal: make(map[string]*Handle)})
}

// NewOperator creates a content-stream operator Handle.
func NewOperator(op string) *Handle { return newHandle(Value{kind: KindOperator, operatorVal: op}) }

// NewInlineImage creates an inline-image Handle.
func NewInlineImage(dict *Handle, data []byte) *Handle {
	return newHandle(Value{kind: KindInlineImage, inlineImageDict: dict, inlineImageData: data})
}

// NewReferenceValue creates a direct Handle whose Value IS an unresolved
// indirect-reference marker, distinct from calling Arena.Get(og), which
// returns a Handle over the arena's shared cell for og. This constructor
// is for representing "N G R" as a plain value, e.g. when the parser has
// no parent document to resolve against.
func NewReferenceValue(target ObjGen) *Handle {
	return newHandle(Value{kind: KindReference, refTarget: target})
}

// NewReservedValue creates the cycle-breaking placeholder ("reserved").
func NewReservedValue() *Handle { return newHandle(Value{kind: KindReserved}) }

// NewStream creates a stream Handle from a dictionary and data source. The
// dictionary must be reachable only through this stream (invariant 3: a
// stream's cell is always referenced indirectly — callers are responsible
// for registering the returned Handle's Value into an Arena cell rather
// than leaving it direct).
func NewStream(dict *Handle, data StreamSource) *Handle {
	return newHandle(Value{kind: KindStream, streamDict: dict, streamData: data})
}

// Value exposes the underlying Value for read access. Callers should
// prefer the typed accessors (Kind, Integer, etc.) directly on Handle.
func (h *Handle) Value() *Value {
	if h == nil {
		return &Value{kind: KindNull}
	}
	return &h.cell.value
}

// Kind reports the Handle's current Value kind, or KindDestroyed if the
// owning arena has torn down.
func (h *Handle) Kind() Kind {
	if h == nil {
		return KindNull
	}
	return h.cell.value.kind
}

// SameCell reports whether h and other are the same underlying cell
// (identity, not value equality).
func (h *Handle) SameCell(other *Handle) bool {
	if h == nil || other == nil {
		return h == other
	}
	return h.cell == other.cell
}

// Set replaces h's Value in place; since Handle identity is cell-pointer
// identity, this is visible to every other Handle sharing the cell —
// exactly the semantics an indirect object's handles need ("Mutation
// through any handle is visible to all").
func (h *Handle) Set(v Value) error {
	if h.cell.state == StateDestroyed {
		return pdferr.New(pdferr.CodeObject, "write through a destroyed handle")
	}
	h.cell.value = v
	return nil
}

// MakeDirect returns a Handle holding an independent copy of h's current
// Value: a shallow copy for containers (array/dict element Handles are
// still shared pointers to their own cells — this severs only the cell h
// itself occupies, not deep structure), idempotent per law in // (make_direct(make_direct(x)) == make_direct(x)): calling it twice on the
// result of the first call returns an equally independent copy with the
// same observable value.
func MakeDirect(h *Handle) *Handle {
	if h == nil {
		return NewNull()
	}
	v := h.cell.value
	if v.kind == KindDictionary || v.kind == KindStream {
		v.dictVal = copyDictMap(v.dictVal)
		v.dictKeys = append([]string(nil), v.dictKeys...)
	}
	if v.kind == KindArray {
		v.arrVal = append([]*Handle(nil), v.arrVal...)
	}
	return newHandle(v)
}

func copyDictMap(m map[string]*Handle) map[string]*Handle {
	out := make(map[string]*Handle, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
