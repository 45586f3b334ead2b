package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/source"
)

func parseValueString(t *testing.T, text string) *object.Handle {
	t.Helper()
	src := source.NewMemory("test", []byte(text))
	p := New(src, object.NewArena(), Options{Context: "test"})
	h, err := p.ParseValue()
	require.NoError(t, err)
	return h
}

func TestParseScalars(t *testing.T) {
	h := parseValueString(t, "42")
	n, ok := h.AsInteger()
	require.True(t, ok)
	require.Equal(t, int64(42), n)

	h = parseValueString(t, "/Foo")
	name, ok := h.AsName()
	require.True(t, ok)
	require.Equal(t, "Foo", name)

	h = parseValueString(t, "true")
	b, ok := h.AsBool()
	require.True(t, ok)
	require.True(t, b)

	h = parseValueString(t, "null")
	require.True(t, h.IsNull())
}

func TestParseReference(t *testing.T) {
	h := parseValueString(t, "12 0 R")
	require.Equal(t, object.KindReference, h.Kind())
	og, ok := h.Value().ReferenceTarget()
	require.True(t, ok)
	require.Equal(t, object.ObjGen{ID: 12, Gen: 0}, og)
}

func TestParseTwoIntegersNotAReference(t *testing.T) {
	src := source.NewMemory("test", []byte("12 0 ]"))
	p := New(src, object.NewArena(), Options{Context: "test"})
	h, err := p.ParseValue()
	require.NoError(t, err)
	n, ok := h.AsInteger()
	require.True(t, ok)
	require.Equal(t, int64(12), n)

	h2, err := p.ParseValue()
	require.NoError(t, err)
	n2, ok := h2.AsInteger()
	require.True(t, ok)
	require.Equal(t, int64(0), n2)
}

func TestParseArray(t *testing.T) {
	h := parseValueString(t, "[1 2 /Three (four)]")
	n, ok := h.ArrayLen()
	require.True(t, ok)
	require.Equal(t, 4, n)

	e0, _ := h.ArrayGet(0)
	v, _ := e0.AsInteger()
	require.Equal(t, int64(1), v)

	e2, _ := h.ArrayGet(2)
	name, _ := e2.AsName()
	require.Equal(t, "Three", name)
}

func TestParseArrayWithReference(t *testing.T) {
	h := parseValueString(t, "[1 0 R 5]")
	n, _ := h.ArrayLen()
	require.Equal(t, 2, n)
	e0, _ := h.ArrayGet(0)
	require.Equal(t, object.KindReference, e0.Kind())
	og, ok := e0.Value().ReferenceTarget()
	require.True(t, ok)
	require.Equal(t, object.ObjGen{ID: 1, Gen: 0}, og)
}

func TestParseDict(t *testing.T) {
	h := parseValueString(t, "<< /Type /Catalog /Count 3 /Kids [1 0 R] >>")
	typ, ok := h.Get("Type")
	require.True(t, ok)
	name, _ := typ.AsName()
	require.Equal(t, "Catalog", name)

	count, _ := h.Get("Count")
	n, _ := count.AsInteger()
	require.Equal(t, int64(3), n)

	require.Equal(t, []string{"Type", "Count", "Kids"}, h.Keys())
}

func TestParseDictDuplicateKeyLastWins(t *testing.T) {
	h := parseValueString(t, "<< /A 1 /A 2 >>")
	a, ok := h.Get("A")
	require.True(t, ok)
	n, _ := a.AsInteger()
	require.Equal(t, int64(2), n)
	require.Equal(t, []string{"A"}, h.Keys())
}

func TestParseDictDanglingKey(t *testing.T) {
	h := parseValueString(t, "<< /A >>")
	a, ok := h.Get("A")
	require.True(t, ok)
	require.True(t, a.IsNull())
}

func TestParseDictNonNameKeyFabricatesSynthetic(t *testing.T) {
	h := parseValueString(t, "<< 5 1 /Real 2 >>")
	keys := h.Keys()
	require.Len(t, keys, 2)
	require.Equal(t, "Real", keys[1])

	synth, ok := h.Get(keys[0])
	require.True(t, ok)
	n, _ := synth.AsInteger()
	require.Equal(t, int64(1), n)
}

func TestParseIndirectObjectSimple(t *testing.T) {
	data := []byte("12 0 obj\n  (hello)\nendobj\n")
	src := source.NewMemory("test", data)
	p := New(src, object.NewArena(), Options{Context: "test"})
	og, h, err := p.ParseIndirectObjectAt(0)
	require.NoError(t, err)
	require.Equal(t, object.ObjGen{ID: 12, Gen: 0}, og)
	raw, _, ok := h.Value().RawString()
	require.True(t, ok)
	require.Equal(t, "hello", string(raw))
}

func TestParseIndirectObjectWithStream(t *testing.T) {
	body := "abcdefghij"
	data := []byte("5 0 obj\n<< /Length 10 >>\nstream\n" + body + "\nendstream\nendobj\n")
	src := source.NewMemory("test", data)
	p := New(src, object.NewArena(), Options{Context: "test"})
	og, h, err := p.ParseIndirectObjectAt(0)
	require.NoError(t, err)
	require.Equal(t, object.ObjGen{ID: 5, Gen: 0}, og)
	require.Equal(t, object.KindStream, h.Kind())

	ss, ok := h.Value().StreamSource()
	require.True(t, ok)
	n, ok := ss.Len()
	require.True(t, ok)
	require.Equal(t, int64(len(body)), n)
}

func TestParseIndirectObjectStreamRecoversBadLength(t *testing.T) {
	body := "abcdefghij"
	data := []byte("5 0 obj\n<< /Length 999 >>\nstream\n" + body + "\nendstream\nendobj\n")
	src := source.NewMemory("test", data)
	p := New(src, object.NewArena(), Options{Context: "test"})
	_, h, err := p.ParseIndirectObjectAt(0)
	require.NoError(t, err)

	ss, ok := h.Value().StreamSource()
	require.True(t, ok)
	n, _ := ss.Len()
	require.Equal(t, int64(len(body)), n)

	dict, ok := h.Value().StreamDict()
	require.True(t, ok)
	lh, ok := dict.Get("Length")
	require.True(t, ok)
	lv, _ := lh.AsInteger()
	require.Equal(t, int64(len(body)), lv)
}

func TestParseIndirectObjectCapturesContentsOffset(t *testing.T) {
	data := []byte("7 0 obj\n<< /Type /Sig /Contents (ABCDE) /ByteRange [0 1 2 3] >>\nendobj\n")
	src := source.NewMemory("test", data)
	p := New(src, object.NewArena(), Options{Context: "test"})
	_, h, err := p.ParseIndirectObjectAt(0)
	require.NoError(t, err)

	off, ok := p.ContentsOffset()
	require.True(t, ok)

	contents, ok := h.Get("Contents")
	require.True(t, ok)
	raw, _, _ := contents.Value().RawString()
	require.Equal(t, "ABCDE", string(raw))

	// off points at the literal string's opening "(" in the source.
	got := make([]byte, len(raw)+2)
	n, _ := src.ReadAt(got, off)
	require.Equal(t, len(got), n)
	require.Equal(t, "(ABCDE)", string(got))
}

func TestParseObjectAtDirectValue(t *testing.T) {
	data := []byte("garbage before\n<< /Size 10 /Root 1 0 R >>")
	src := source.NewMemory("test", data)
	p := New(src, object.NewArena(), Options{Context: "test"})
	h, err := p.ParseObjectAt(int64(len("garbage before\n")))
	require.NoError(t, err)
	size, ok := h.Get("Size")
	require.True(t, ok)
	n, _ := size.AsInteger()
	require.Equal(t, int64(10), n)
}
