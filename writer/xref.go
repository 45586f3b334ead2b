package writer

import (
	"bytes"
	"fmt"

	"github.com/qpdf-go/qpdfcore/codec"
	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/pipeline"
)

// xrefEntry mirrors xref.Entry's three-way type tag for the objects this
// writer is about to emit.
type xrefEntry struct {
	typ          int // 0 free, 1 direct offset, 2 compressed (in an object stream)
	offset       int64
	containerNum int
	index        int
}

// writeTrailerFields appends the Root/Info/ID/Encrypt entries shared by
// both the classic trailer dictionary and the xref-stream dictionary.
func writeTrailerFields(out *bytes.Buffer, rootNum, infoNum, encNum int, id0, id1 []byte) {
	if rootNum > 0 {
		fmt.Fprintf(out, "/Root %d 0 R ", rootNum)
	}
	if infoNum > 0 {
		fmt.Fprintf(out, "/Info %d 0 R ", infoNum)
	}
	if id0 != nil {
		out.WriteString("/ID [")
		writeLiteralString(out, id0)
		writeLiteralString(out, id1)
		out.WriteString("] ")
	}
	if encNum > 0 {
		fmt.Fprintf(out, "/Encrypt %d 0 R ", encNum)
	}
}

// writeClassicXref emits a classic "xref" table plus "trailer" dictionary
// as one contiguous 0..size-1 subsection.
func writeClassicXref(out *bytes.Buffer, entries map[int]xrefEntry, size, rootNum, infoNum, encNum int, id0, id1 []byte) {
	fmt.Fprintf(out, "xref\n0 %d\n", size)
	for i := 0; i < size; i++ {
		e, ok := entries[i]
		if !ok || e.typ == 0 {
			fmt.Fprintf(out, "%010d %05d f \n", 0, 65535)
			continue
		}
		fmt.Fprintf(out, "%010d %05d n \n", e.offset, 0)
	}
	out.WriteString("trailer\n<< ")
	fmt.Fprintf(out, "/Size %d ", size)
	writeTrailerFields(out, rootNum, infoNum, encNum, id0, id1)
	out.WriteString(">>\n")
}

func byteWidth(n int64) int {
	w := 0
	for n > 0 {
		w++
		n >>= 8
	}
	return w
}

func writeBE(buf *bytes.Buffer, n uint64, width int) {
	for i := width - 1; i >= 0; i-- {
		buf.WriteByte(byte(n >> (8 * uint(i))))
	}
}

// writeXrefStream emits a cross-reference stream (step 5, "required
// when any object stream exists"): a three-field-per-entry binary table
// with minimal per-field widths, flate-compressed, carrying the trailer
// fields itself rather than a separate "trailer" keyword section.
func (w *Writer) writeXrefStream(out *bytes.Buffer, num int, entries map[int]xrefEntry, size, rootNum, infoNum, encNum int, id0, id1 []byte) error {
	maxOffset := int64(0)
	maxContainer := 0
	for i := 0; i < size; i++ {
		e, ok := entries[i]
		if !ok {
			continue
		}
		if e.typ == 1 && e.offset > maxOffset {
			maxOffset = e.offset
		}
		if e.typ == 2 && e.containerNum > maxContainer {
			maxContainer = e.containerNum
		}
	}
	width2 := byteWidth(maxOffset)
	if width2 == 0 {
		width2 = 1
	}
	width3 := byteWidth(int64(maxContainer))
	if width3 == 0 {
		width3 = 1
	}

	var body bytes.Buffer
	for i := 0; i < size; i++ {
		e, ok := entries[i]
		if !ok {
			e = xrefEntry{typ: 0}
		}
		switch e.typ {
		case 0:
			body.WriteByte(0)
			writeBE(&body, 0, width2)
			writeBE(&body, 0xFFFF, width3)
		case 1:
			body.WriteByte(1)
			writeBE(&body, uint64(e.offset), width2)
			writeBE(&body, 0, width3)
		case 2:
			body.WriteByte(2)
			writeBE(&body, uint64(e.containerNum), width2)
			writeBE(&body, uint64(e.index), width3)
		}
	}

	flate, _ := codec.Lookup(codec.NameFlate)
	sink := pipeline.NewBufferSink()
	enc, err := flate.Encoder(sink, codec.DefaultParams())
	if err != nil {
		return err
	}
	if err := pipeline.Run(enc, body.Bytes()); err != nil {
		return err
	}
	compressed := sink.Bytes()

	fmt.Fprintf(out, "%d 0 obj\n<< /Type /XRef ", num)
	fmt.Fprintf(out, "/Size %d ", size)
	writeTrailerFields(out, rootNum, infoNum, encNum, id0, id1)
	fmt.Fprintf(out, "/W [1 %d %d] /Index [0 %d] /Filter /FlateDecode /Length %d ", width2, width3, size, len(compressed))
	out.WriteString(">>\nstream\n")
	out.Write(compressed)
	out.WriteString("\nendstream\nendobj\n")
	return nil
}

var _ = object.ObjGen{} // keep package import stable if entry fields change shape
