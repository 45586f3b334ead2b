package object

// Value is the tagged-union cell every Handle ultimately points at.
// Exactly one group of fields is meaningful, selected by Kind. Container
// fields (Array, dictionary entries, stream dictionary) hold *Handle, so a
// child slot may itself be either a direct Value or an indirect reference.
type Value struct {
	kind Kind

	boolVal bool
	intVal  int64
	// realVal preserves the real number's original textual form ("real
	// (decimal string)") to avoid introducing binary floating-point
	// rounding on round-trip.
	realVal string
	nameVal string
	strVal  []byte
	strEnc  StringEncoding

	arrVal []*Handle

	dictKeys []string
	dictVal  map[string]*Handle

	streamDict *Handle
	streamData StreamSource

	refTarget ObjGen

	operatorVal string

	inlineImageDict *Handle
	inlineImageData []byte
}

// Kind reports the variant this Value holds.
func (v *Value) Kind() Kind { return v.kind }

// Bool returns the bool value and whether Kind is KindBool.
func (v *Value) Bool() (bool, bool) { return v.boolVal, v.kind == KindBool }

// Integer returns the integer value and whether Kind is KindInteger.
func (v *Value) Integer() (int64, bool) { return v.intVal, v.kind == KindInteger }

// Real returns the real's preserved textual form and whether Kind is
// KindReal.
func (v *Value) Real() (string, bool) { return v.realVal, v.kind == KindReal }

// Name returns the name's bytes (already #-hex-unescaped) and whether Kind
// is KindName.
func (v *Value) Name() (string, bool) { return v.nameVal, v.kind == KindName }

// RawString returns the string's raw bytes, its declared encoding, and
// whether Kind is KindString.
func (v *Value) RawString() ([]byte, StringEncoding, bool) {
	return v.strVal, v.strEnc, v.kind == KindString
}

// Array returns the element handles and whether Kind is KindArray. The
// returned slice must not be mutated directly; use Handle.ArrayAppend/
// Handle.ArraySet.
func (v *Value) Array() ([]*Handle, bool) { return v.arrVal, v.kind == KindArray }

// DictKeys returns the dictionary's keys in insertion order (not an
// observable API guarantee per , but kept stable for deterministic
// writer output) and whether Kind is KindDictionary or KindStream.
func (v *Value) DictKeys() ([]string, bool) {
	if v.kind != KindDictionary && v.kind != KindStream {
		return nil, false
	}
	return v.dictKeys, true
}

// DictGet looks up key in a dictionary or stream-dictionary Value.
func (v *Value) DictGet(key string) (*Handle, bool) {
	if v.kind != KindDictionary && v.kind != KindStream {
		return nil, false
	}
	h, ok := v.dictVal[key]
	return h, ok
}

// DictSet inserts or replaces key (last write wins per duplicate-key
// rule); only valid on KindDictionary or KindStream.
func (v *Value) DictSet(key string, h *Handle) {
	if v.dictVal == nil {
		v.dictVal = make(map[string]*Handle)
	}
	if _, exists := v.dictVal[key]; !exists {
		v.dictKeys = append(v.dictKeys, key)
	}
	v.dictVal[key] = h
}

// DictDelete removes key, if present.
func (v *Value) DictDelete(key string) {
	if _, ok := v.dictVal[key]; !ok {
		return
	}
	delete(v.dictVal, key)
	for i, k := range v.dictKeys {
		if k == key {
			v.dictKeys = append(v.dictKeys[:i], v.dictKeys[i+1:]...)
			break
		}
	}
}

// StreamDict returns the stream's dictionary handle and whether Kind is
// KindStream.
func (v *Value) StreamDict() (*Handle, bool) { return v.streamDict, v.kind == KindStream }

// StreamSource returns the stream's data source and whether Kind is
// KindStream.
func (v *Value) StreamSource() (StreamSource, bool) { return v.streamData, v.kind == KindStream }

// SetStreamSource replaces a stream Value's data source (used by
// replace_stream_data).
func (v *Value) SetStreamSource(s StreamSource) {
	if v.kind == KindStream {
		v.streamData = s
	}
}

// ReferenceTarget returns the ObjGen a KindReference Value points at.
func (v *Value) ReferenceTarget() (ObjGen, bool) { return v.refTarget, v.kind == KindReference }

// Operator returns the content-stream operator text and whether Kind is
// KindOperator.
func (v *Value) Operator() (string, bool) { return v.operatorVal, v.kind == KindOperator }

// InlineImage returns the inline image's dictionary handle and raw data,
// and whether Kind is KindInlineImage.
func (v *Value) InlineImage() (*Handle, []byte, bool) {
	return v.inlineImageDict, v.inlineImageData, v.kind == KindInlineImage
}
