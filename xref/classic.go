package xref

import (
	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/parser"
	"github.com/qpdf-go/qpdfcore/pdferr"
	"github.com/qpdf-go/qpdfcore/source"
	"github.com/qpdf-go/qpdfcore/token"
)

// section is one parsed xref section: the entries it contributed plus the
// trailer dictionary that terminates it and the chain pointers read from
// that trailer (construction steps 2-3).
type section struct {
	entries    map[uint32]Entry
	trailer    *object.Handle
	prev       int64
	hasPrev    bool
	xrefStm    int64
	hasXrefStm bool
}

// parseClassicSection parses a classic "xref ... trailer <<...>>" section
// starting at offset. Driven directly over token.ReadToken rather than
// line-regexes, since PDF whitespace rules
// make the token stream a strict superset of what line-splitting would
// need to handle (a subsection header split across lines, entries with
// irregular spacing, and so on all just fall out of the tokeniser).
func parseClassicSection(src source.Source, ctx string, newParser func() *parser.Parser, offset int64) (*section, error) {
	if _, err := src.Seek(offset, source.SeekStart); err != nil {
		return nil, err
	}
	kw, err := token.ReadToken(src, ctx, false, 0)
	if err != nil {
		return nil, err
	}
	if !kw.IsWord("xref") {
		return nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: expected \"xref\" keyword at offset %d", ctx, offset)
	}

	sec := &section{entries: make(map[uint32]Entry)}
	for {
		tok, err := token.ReadToken(src, ctx, false, 0)
		if err != nil {
			return nil, err
		}
		if tok.IsWord("trailer") {
			trailerOffset, terr := src.Tell()
			if terr != nil {
				return nil, terr
			}
			trailer, perr := newParser().ParseObjectAt(trailerOffset)
			if perr != nil {
				return nil, perr
			}
			sec.trailer = trailer
			if v, ok := trailer.Get("Prev"); ok {
				if n, ok := v.AsInteger(); ok {
					sec.prev, sec.hasPrev = n, true
				}
			}
			if v, ok := trailer.Get("XRefStm"); ok {
				if n, ok := v.AsInteger(); ok {
					sec.xrefStm, sec.hasXrefStm = n, true
				}
			}
			return sec, nil
		}
		if tok.Kind == token.EOF {
			return nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: xref section at offset %d has no trailer", ctx, offset)
		}
		if tok.Kind != token.Integer {
			return nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: expected subsection header or \"trailer\"", ctx)
		}
		first := parseUint(tok.Value)
		countTok, err := token.ReadToken(src, ctx, false, 0)
		if err != nil {
			return nil, err
		}
		if countTok.Kind != token.Integer {
			return nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: malformed subsection header", ctx)
		}
		count := parseUint(countTok.Value)
		for i := uint32(0); i < count; i++ {
			offTok, err := token.ReadToken(src, ctx, false, 0)
			if err != nil {
				return nil, err
			}
			genTok, err := token.ReadToken(src, ctx, false, 0)
			if err != nil {
				return nil, err
			}
			typTok, err := token.ReadToken(src, ctx, false, 0)
			if err != nil {
				return nil, err
			}
			if offTok.Kind != token.Integer || genTok.Kind != token.Integer {
				return nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: malformed xref entry", ctx)
			}
			id := first + i
			gen := uint16(parseUint(genTok.Value))
			switch {
			case typTok.IsWord("n"):
				sec.entries[id] = Entry{Type: TypeOffset, Offset: int64(parseUint(offTok.Value)), Gen: gen}
			case typTok.IsWord("f"):
				sec.entries[id] = Entry{Type: TypeFree}
			default:
				return nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: xref entry type must be \"n\" or \"f\"", ctx)
			}
		}
	}
}

func parseUint(b []byte) uint32 {
	var n uint32
	for _, c := range b {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + uint32(c-'0')
	}
	return n
}
