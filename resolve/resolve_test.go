package resolve

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/source"
	"github.com/qpdf-go/qpdfcore/xref"
)

func TestResolveOffsetObject(t *testing.T) {
	doc := "1 0 obj\n<< /Root 2 0 R >>\nendobj\n"
	obj2Offset := int64(len(doc))
	doc += "2 0 obj\n<< /Type /Catalog >>\nendobj\n"
	xrefOffset := int64(len(doc))
	doc += "xref\n0 3\n" +
		"0000000000 65535 f \n" +
		"0000000000 00000 n \n" +
		pad10(obj2Offset) + " 00000 n \n" +
		"trailer\n<< /Size 3 /Root 1 0 R >>\n" +
		"startxref\n" + itoaT(xrefOffset) + "\n%%EOF"

	src := source.NewMemory("test.pdf", []byte(doc))
	arena := object.NewArena()
	table, err := xref.Load(src, arena, xref.Options{Context: "test.pdf"})
	require.NoError(t, err)

	r := New(src, arena, table, Options{Context: "test.pdf"})
	h, err := r.Resolve(object.ObjGen{ID: 2, Gen: 0})
	require.NoError(t, err)
	require.Equal(t, object.KindDictionary, h.Kind())
	typeName, ok := h.Get("Type")
	require.True(t, ok)
	name, ok := typeName.AsName()
	require.True(t, ok)
	require.Equal(t, "Catalog", name)

	// Second call returns the cached cell without re-parsing.
	h2, err := r.Resolve(object.ObjGen{ID: 2, Gen: 0})
	require.NoError(t, err)
	require.True(t, h.SameCell(h2))
}

func TestResolveMissingObjectYieldsNull(t *testing.T) {
	doc := "1 0 obj\n<< /Root 2 0 R >>\nendobj\n"
	xrefOffset := int64(len(doc))
	doc += "xref\n0 2\n0000000000 65535 f \n0000000000 00000 n \n" +
		"trailer\n<< /Size 2 /Root 1 0 R >>\n" +
		"startxref\n" + itoaT(xrefOffset) + "\n%%EOF"
	src := source.NewMemory("test.pdf", []byte(doc))
	arena := object.NewArena()
	table, err := xref.Load(src, arena, xref.Options{Context: "test.pdf"})
	require.NoError(t, err)

	r := New(src, arena, table, Options{Context: "test.pdf"})
	h, err := r.Resolve(object.ObjGen{ID: 99, Gen: 0})
	require.NoError(t, err)
	require.True(t, h.IsNull())
}

func TestResolveCompressedObject(t *testing.T) {
	prefix := "5 0\n"
	body := "<< /Foo /Bar >>"
	streamData := prefix + body
	objStmDict := fmt.Sprintf("<< /Type /ObjStm /N 1 /First %d /Length %d >>", len(prefix), len(streamData))
	obj1 := "1 0 obj\n" + objStmDict + "\nstream\n" + streamData + "\nendstream\nendobj\n"

	xrefObjOffset := int64(len(obj1))

	var rec bytes.Buffer
	writeRecord(&rec, 0, 0, 0)              // id 0: free
	writeRecord(&rec, 1, 0, 0)              // id 1: the object stream, at offset 0
	writeRecord(&rec, 1, xrefObjOffset, 0)  // id 2: the xref stream itself
	writeRecord(&rec, 2, 1, 0)              // id 5: compressed, in stream 1 index 0

	xrefDict := fmt.Sprintf("<< /Type /XRef /W [1 4 2] /Size 6 /Index [0 3 5 1] /Length %d >>", rec.Len())
	obj2 := "2 0 obj\n" + xrefDict + "\nstream\n" + rec.String() + "\nendstream\nendobj\n"

	full := obj1 + obj2 + "startxref\n" + itoaT(xrefObjOffset) + "\n%%EOF"

	src := source.NewMemory("test.pdf", []byte(full))
	arena := object.NewArena()
	table, err := xref.Load(src, arena, xref.Options{Context: "test.pdf"})
	require.NoError(t, err)
	require.False(t, table.Repaired)

	e, ok := table.Lookup(object.ObjGen{ID: 5, Gen: 0})
	require.True(t, ok)
	require.Equal(t, xref.TypeCompressed, e.Type)

	r := New(src, arena, table, Options{Context: "test.pdf"})
	h, err := r.Resolve(object.ObjGen{ID: 5, Gen: 0})
	require.NoError(t, err)
	require.Equal(t, object.KindDictionary, h.Kind())
	foo, ok := h.Get("Foo")
	require.True(t, ok)
	name, ok := foo.AsName()
	require.True(t, ok)
	require.Equal(t, "Bar", name)
}

func writeRecord(buf *bytes.Buffer, ftype byte, f2 int64, f3 uint16) {
	buf.WriteByte(ftype)
	var b4 [4]byte
	b4[0] = byte(f2 >> 24)
	b4[1] = byte(f2 >> 16)
	b4[2] = byte(f2 >> 8)
	b4[3] = byte(f2)
	buf.Write(b4[:])
	buf.WriteByte(byte(f3 >> 8))
	buf.WriteByte(byte(f3))
}

func itoaT(n int64) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func pad10(n int64) string {
	s := itoaT(n)
	for len(s) < 10 {
		s = "0" + s
	}
	return s
}
