package xref

import (
	"bytes"

	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/parser"
	"github.com/qpdf-go/qpdfcore/pdferr"
)

// parseXrefStreamSection parses a cross-reference stream at offset: field
// widths W=[f1 f2 f3], subsections given by /Index. The stream object
// itself doubles as the section's trailer dictionary.
func parseXrefStreamSection(ctx string, newParser func() *parser.Parser, offset int64) (*section, error) {
	p := newParser()
	_, h, err := p.ParseIndirectObjectAt(offset)
	if err != nil {
		return nil, err
	}
	if h.Kind() != object.KindStream {
		return nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: xref entry at offset %d is not a stream", ctx, offset)
	}
	dict, _ := h.Value().StreamDict()
	src, _ := h.Value().StreamSource()

	var buf bytes.Buffer
	if err := src.PipeRaw(&buf); err != nil {
		return nil, err
	}
	decoded, err := decodeStreamData(dict, buf.Bytes())
	if err != nil {
		return nil, err
	}

	wH, ok := dict.Get("W")
	if !ok {
		return nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: xref stream at offset %d missing /W", ctx, offset)
	}
	wn, ok := wH.ArrayLen()
	if !ok || wn != 3 {
		return nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: xref stream /W must have exactly 3 entries", ctx)
	}
	var w [3]int
	for i := 0; i < 3; i++ {
		eh, _ := wH.ArrayGet(i)
		n, _ := eh.AsInteger()
		w[i] = int(n)
	}
	recordLen := w[0] + w[1] + w[2]
	if recordLen <= 0 {
		return nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: xref stream /W has zero total width", ctx)
	}

	var size uint32
	if sH, ok := dict.Get("Size"); ok {
		if n, ok := sH.AsInteger(); ok && n > 0 {
			size = uint32(n)
		}
	}

	type span struct {
		first, count uint32
	}
	var spans []span
	if idxH, ok := dict.Get("Index"); ok {
		n, _ := idxH.ArrayLen()
		for i := 0; i+1 < n; i += 2 {
			fh, _ := idxH.ArrayGet(i)
			ch, _ := idxH.ArrayGet(i + 1)
			fn, _ := fh.AsInteger()
			cn, _ := ch.AsInteger()
			spans = append(spans, span{first: uint32(fn), count: uint32(cn)})
		}
	} else {
		spans = []span{{first: 0, count: size}}
	}

	sec := &section{entries: make(map[uint32]Entry), trailer: dict}
	pos := 0
	for _, sp := range spans {
		for i := uint32(0); i < sp.count; i++ {
			if pos+recordLen > len(decoded) {
				return nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: xref stream truncated before its declared /Index span", ctx)
			}
			rec := decoded[pos : pos+recordLen]
			pos += recordLen
			id := sp.first + i

			ftype := int64(1)
			if w[0] > 0 {
				ftype = beInt(rec[:w[0]])
			}
			f2 := beInt(rec[w[0] : w[0]+w[1]])
			f3 := beInt(rec[w[0]+w[1] : w[0]+w[1]+w[2]])

			switch ftype {
			case 0:
				sec.entries[id] = Entry{Type: TypeFree}
			case 1:
				sec.entries[id] = Entry{Type: TypeOffset, Offset: f2, Gen: uint16(f3)}
			case 2:
				sec.entries[id] = Entry{Type: TypeCompressed, StreamObj: uint32(f2), StreamIndex: int(f3)}
			default:
				// Unrecognised type: treated as null/skipped.
			}
		}
	}

	if v, ok := dict.Get("Prev"); ok {
		if n, ok := v.AsInteger(); ok {
			sec.prev, sec.hasPrev = n, true
		}
	}

	return sec, nil
}

func beInt(b []byte) int64 {
	var n int64
	for _, c := range b {
		n = n<<8 | int64(c)
	}
	return n
}
