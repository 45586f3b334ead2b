package parser

import (
	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/pdferr"
	"github.com/qpdf-go/qpdfcore/source"
	"github.com/qpdf-go/qpdfcore/token"
)

// ParseObjectAt parses a single direct value at offset and returns it,
// without expecting an "N G obj ... endobj" wrapper. Used by package xref
// to parse trailer dictionaries and xref-stream dictionaries, which are
// written either bare (trailer) or as the body of an indirect object whose
// wrapper the caller has already stepped past.
func (p *Parser) ParseObjectAt(offset int64) (*object.Handle, error) {
	if _, err := p.src.Seek(offset, source.SeekStart); err != nil {
		return nil, err
	}
	p.pending = p.pending[:0]
	p.hasContentsOffset = false
	return p.parseValue(0)
}

// ParseIndirectObjectAt parses the "N G obj <value> [stream ...] endobj"
// wrapper at offset, returning the object's declared identity and
// parsed value. A stream keyword following the value dispatches to
// parseStreamBody; any other trailing content up to "endobj" is skipped
// tolerantly (a damaged file's stray bytes between value and endobj don't
// abort the parse).
func (p *Parser) ParseIndirectObjectAt(offset int64) (object.ObjGen, *object.Handle, error) {
	if _, err := p.src.Seek(offset, source.SeekStart); err != nil {
		return object.ObjGen{}, nil, err
	}
	p.pending = p.pending[:0]
	p.hasContentsOffset = false

	idTok, err := p.next()
	if err != nil {
		return object.ObjGen{}, nil, p.wrapIOErr(err)
	}
	if idTok.Kind != token.Integer {
		return object.ObjGen{}, nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: expected object number at offset %d", p.context(), offset)
	}
	genTok, err := p.next()
	if err != nil {
		return object.ObjGen{}, nil, p.wrapIOErr(err)
	}
	if genTok.Kind != token.Integer {
		return object.ObjGen{}, nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: expected generation number at offset %d", p.context(), offset)
	}
	objTok, err := p.next()
	if err != nil {
		return object.ObjGen{}, nil, p.wrapIOErr(err)
	}
	if !objTok.IsWord("obj") {
		return object.ObjGen{}, nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: expected \"obj\" keyword at offset %d", p.context(), offset)
	}

	og := object.ObjGen{ID: uint32(parseInt64(idTok.Value)), Gen: uint16(parseInt64(genTok.Value))}

	val, err := p.parseValue(0)
	if err != nil {
		return og, nil, err
	}

	tok, err := p.next()
	if err != nil {
		return og, nil, p.wrapIOErr(err)
	}
	if tok.IsWord("stream") {
		streamVal, serr := p.parseStreamBody(val)
		if serr != nil {
			return og, nil, serr
		}
		p.skipToEndobj()
		return og, streamVal, nil
	}
	if !tok.IsWord("endobj") {
		p.unget(tok)
		p.skipToEndobj()
	}
	return og, val, nil
}

// skipToEndobj tolerantly consumes tokens up to and including "endobj",
// stopping at EOF with a warning rather than failing (tolerant mode: a
// missing or malformed trailer after the value is recovered from, not fatal).
func (p *Parser) skipToEndobj() {
	for {
		tok, err := p.next()
		if err != nil || tok.Kind == token.EOF {
			p.warnfAt(0, true, "missing endobj")
			return
		}
		if tok.IsWord("endobj") {
			return
		}
	}
}
