package xref

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/source"
)

func TestClassicTableLookup(t *testing.T) {
	doc := "1 0 obj\n<< /Type /Foo >>\nendobj\n"
	xrefOffset := int64(len(doc))
	doc += "xref\n" +
		"0 3\n" +
		"0000000000 65535 f \n" +
		"0000000000 00000 n \n" +
		"0000000029 00000 n \n" +
		"trailer\n<< /Size 3 /Root 2 0 R >>\n" +
		"startxref\n"
	doc2 := doc
	doc2 += intToStr(xrefOffset) + "\n%%EOF"

	src := source.NewMemory("test.pdf", []byte(doc2))
	arena := object.NewArena()
	table, err := Load(src, arena, Options{Context: "test.pdf"})
	require.NoError(t, err)
	require.False(t, table.Repaired)

	e, ok := table.Lookup(object.ObjGen{ID: 2, Gen: 0})
	require.True(t, ok)
	require.Equal(t, TypeOffset, e.Type)
	require.Equal(t, int64(29), e.Offset)

	_, ok = table.Lookup(object.ObjGen{ID: 0, Gen: 0})
	require.False(t, ok)

	require.NotNil(t, table.Trailer)
	root, ok := table.Trailer.Get("Root")
	require.True(t, ok)
	og, ok := root.Value().ReferenceTarget()
	require.True(t, ok)
	require.Equal(t, object.ObjGen{ID: 2, Gen: 0}, og)
}

func TestPrevChainNewestWins(t *testing.T) {
	obj1Old := "1 0 obj\n(old)\nendobj\n"
	oldXrefOffset := int64(len(obj1Old))
	base := obj1Old + "xref\n0 2\n0000000000 65535 f \n0000000000 00000 n \ntrailer\n<< /Size 2 /Root 1 0 R >>\n"

	obj1New := base + "1 0 obj\n(new)\nendobj\n"
	newObjOffset := int64(len(base))
	newXrefOffset := int64(len(obj1New))
	full := obj1New + "xref\n0 2\n0000000000 65535 f \n" +
		padOffset(newObjOffset) + " 00000 n \n" +
		"trailer\n<< /Size 2 /Root 1 0 R /Prev " + intToStr(oldXrefOffset) + " >>\n" +
		"startxref\n" + intToStr(newXrefOffset) + "\n%%EOF"

	src := source.NewMemory("test.pdf", []byte(full))
	arena := object.NewArena()
	table, err := Load(src, arena, Options{Context: "test.pdf"})
	require.NoError(t, err)

	e, ok := table.Lookup(object.ObjGen{ID: 1, Gen: 0})
	require.True(t, ok)
	require.Equal(t, newObjOffset, e.Offset)
}

func TestRepairScanRecoversDamagedXref(t *testing.T) {
	doc := "1 0 obj\n<< /Root 2 0 R /Size 3 >>\nendobj\n" +
		"2 0 obj\n<< /Type /Catalog >>\nendobj\n" +
		"xref\nnot a valid xref table at all\n" +
		"startxref\n0\n%%EOF"

	src := source.NewMemory("test.pdf", []byte(doc))
	arena := object.NewArena()
	table, err := Load(src, arena, Options{Context: "test.pdf"})
	require.NoError(t, err)
	require.True(t, table.Repaired)

	e, ok := table.Lookup(object.ObjGen{ID: 1, Gen: 0})
	require.True(t, ok)
	require.Equal(t, TypeOffset, e.Type)

	_, ok = table.Lookup(object.ObjGen{ID: 2, Gen: 0})
	require.True(t, ok)

	require.NotNil(t, table.Trailer)
}

func TestLoadMissingStartxrefFallsBackToRepair(t *testing.T) {
	doc := "1 0 obj\n<< /Root 2 0 R >>\nendobj\n2 0 obj\n<< /Type /Catalog >>\nendobj\n"
	src := source.NewMemory("test.pdf", []byte(doc))
	arena := object.NewArena()
	table, err := Load(src, arena, Options{Context: "test.pdf"})
	require.NoError(t, err)
	require.True(t, table.Repaired)
}

func intToStr(n int64) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}

func padOffset(n int64) string {
	s := intToStr(n)
	for len(s) < 10 {
		s = "0" + s
	}
	return s
}
