package parser

import (
	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/pdferr"
	"github.com/qpdf-go/qpdfcore/token"
	"github.com/qpdf-go/qpdfcore/warnings"
)

// ParseValue reads one value starting at the source's current position
//. It does not consume a trailing "endobj"/"stream" — callers that
// need the indirect-object wrapper use ParseIndirectObjectAt instead.
func (p *Parser) ParseValue() (*object.Handle, error) {
	return p.parseValue(0)
}

func (p *Parser) parseValue(depth int) (*object.Handle, error) {
	if depth > maxContainerDepth {
		return nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: object nesting exceeds %d", p.context(), maxContainerDepth)
	}
	tok, err := p.next()
	if err != nil {
		return nil, p.wrapIOErr(err)
	}
	return p.parseValueFromToken(tok, depth)
}

func (p *Parser) parseValueFromToken(tok token.Token, depth int) (*object.Handle, error) {
	if (tok.Kind == token.ArrayOpen || tok.Kind == token.DictOpen) && depth >= maxContainerDepth {
		return nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: object nesting exceeds %d", p.context(), maxContainerDepth)
	}
	switch tok.Kind {
	case token.Null:
		return object.NewNull(), nil
	case token.Bool:
		return object.NewBool(string(tok.Value) == "true"), nil
	case token.Integer:
		if h, ok, err := p.tryReference(tok); err != nil {
			return nil, err
		} else if ok {
			return h, nil
		}
		return object.NewInteger(parseInt64(tok.Value)), nil
	case token.Real:
		return object.NewReal(string(tok.Value)), nil
	case token.Name:
		return object.NewName(string(tok.Value)), nil
	case token.String:
		return object.NewString(append([]byte(nil), tok.Value...), object.EncodingRaw), nil
	case token.ArrayOpen:
		return p.parseArray(depth + 1)
	case token.DictOpen:
		return p.parseDict(depth + 1)
	case token.BraceOpen, token.BraceClose:
		// Content-stream-only delimiters; illegal here but recovered as
		// null rather than aborting the whole parse.
		p.warnf(tok, "unexpected brace token, treated as null")
		return object.NewNull(), nil
	case token.Word:
		p.warnf(tok, "unexpected bare word %q, treated as null", string(tok.Value))
		return object.NewNull(), nil
	case token.ArrayClose, token.DictClose:
		return nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: unexpected %s", p.context(), tok.Kind)
	case token.Bad:
		return nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: bad token: %s", p.context(), tok.ErrorMessage)
	case token.EOF:
		return nil, errUnexpectedEOF(p.context())
	default:
		return nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: unexpected token %s", p.context(), tok.Kind)
	}
}

// tryReference implements the 3-token "N G R" lookahead: firstInt is an
// Integer token already consumed. If the next two tokens are an Integer
// and the literal word "R", and a parent document (arena) is available,
// this consumes all three and returns a deferred reference Handle.
// Without an arena, a matching "N G R" is left as-is per ("only
// interpreted as an indirect reference when a parent document is
// available; otherwise the three tokens are left as-is with a warning"):
// every lookahead token is pushed back and ok is false either way the
// pattern doesn't apply.
func (p *Parser) tryReference(firstInt token.Token) (*object.Handle, bool, error) {
	genTok, err := p.next()
	if err != nil {
		return nil, false, p.wrapIOErr(err)
	}
	if genTok.Kind != token.Integer {
		p.unget(genTok)
		return nil, false, nil
	}
	rTok, err := p.next()
	if err != nil {
		return nil, false, p.wrapIOErr(err)
	}
	if !rTok.IsWord("R") {
		p.unget(rTok)
		p.unget(genTok)
		return nil, false, nil
	}
	if p.arena == nil {
		p.warnfAt(0, true, "%q %q R seen with no parent document, left as separate tokens", string(firstInt.Value), string(genTok.Value))
		p.unget(rTok)
		p.unget(genTok)
		return nil, false, nil
	}
	og := object.ObjGen{ID: uint32(parseInt64(firstInt.Value)), Gen: uint16(parseInt64(genTok.Value))}
	// A reference is always built as a deferred KindReference marker
	// carrying its target ObjGen, never pre-dereferenced through the
	// arena: resolution (including the identity-sharing arena.Get(og)
	// lookup) is package resolve's job, not the parser's (/).
	return object.NewReferenceValue(og), true, nil
}

// parseArray reads array elements until ArrayClose, tolerating malformed
// elements up to maxConsecutiveErrors in a row before giving up.
func (p *Parser) parseArray(depth int) (*object.Handle, error) {
	arr := object.NewArray()
	consecutiveErrors := 0
	for {
		tok, err := p.next()
		if err != nil {
			return nil, p.wrapIOErr(err)
		}
		if tok.Kind == token.ArrayClose {
			return arr, nil
		}
		if tok.Kind == token.EOF {
			return nil, errUnexpectedEOF(p.context())
		}
		elem, err := p.parseValueFromToken(tok, depth)
		if err != nil {
			consecutiveErrors++
			if consecutiveErrors > maxConsecutiveErrors {
				return nil, pdferr.Wrap(pdferr.CodeDamagedPDF, err, "%s: too many malformed array elements", p.context())
			}
			p.warnf(tok, "skipping malformed array element: %v", err)
			continue
		}
		consecutiveErrors = 0
		_ = arr.ArrayAppend(elem)
	}
}

// parseDict reads "/key value" pairs until DictClose. A non-name
// key token fabricates a synthetic key via the arena; a dangling key
// immediately followed by DictClose is assigned null; duplicate keys are
// last-write-wins (handled by object.Value.DictSet).
func (p *Parser) parseDict(depth int) (*object.Handle, error) {
	dict := object.NewDictionary()
	consecutiveErrors := 0
	for {
		keyTok, err := p.next()
		if err != nil {
			return nil, p.wrapIOErr(err)
		}
		if keyTok.Kind == token.DictClose {
			return dict, nil
		}
		if keyTok.Kind == token.EOF {
			return nil, errUnexpectedEOF(p.context())
		}

		var key string
		if keyTok.Kind == token.Name {
			key = string(keyTok.Value)
		} else {
			p.warnf(keyTok, "non-name dictionary key, fabricating synthetic key")
			key = p.syntheticKey()
		}

		// "a /Contents key whose value is a literal string is
		// captured with both its value and its absolute file offset"
		// (used by signature verification): only meaningful when the
		// value token is read fresh, not drawn from the lookahead
		// pushback buffer.
		var contentsOffset int64 = -1
		if key == "Contents" && len(p.pending) == 0 {
			contentsOffset, _ = p.tell()
			// Step past the whitespace between the key and its value.
			var b [1]byte
			for n, _ := p.src.ReadAt(b[:], contentsOffset); n == 1 && (b[0] == ' ' || b[0] == '\t' || b[0] == '\n' || b[0] == '\r' || b[0] == '\f' || b[0] == 0); n, _ = p.src.ReadAt(b[:], contentsOffset) {
				contentsOffset++
			}
		}

		valTok, err := p.next()
		if err != nil {
			return nil, p.wrapIOErr(err)
		}
		if valTok.Kind == token.DictClose {
			// Dangling key with no value: assign null and stop.
			_ = dict.Put(key, object.NewNull())
			return dict, nil
		}
		if valTok.Kind == token.EOF {
			return nil, errUnexpectedEOF(p.context())
		}

		val, err := p.parseValueFromToken(valTok, depth)
		if err != nil {
			consecutiveErrors++
			if consecutiveErrors > maxConsecutiveErrors {
				return nil, pdferr.Wrap(pdferr.CodeDamagedPDF, err, "%s: too many malformed dictionary entries", p.context())
			}
			p.warnf(valTok, "skipping malformed dictionary value for key %q: %v", key, err)
			continue
		}
		if key == "Contents" && contentsOffset >= 0 && val.Kind() == object.KindString {
			p.contentsOffset = contentsOffset
			p.hasContentsOffset = true
		}
		consecutiveErrors = 0
		_ = dict.Put(key, val)
	}
}

func (p *Parser) syntheticKey() string {
	if p.arena != nil {
		return p.arena.NextSyntheticKey()
	}
	return "QPDFFake0"
}

// warnf records a recovered-from parse issue. tok supplies positional
// context when available; pass token.Token{} to fall back to the source's
// current offset.
func (p *Parser) warnf(tok token.Token, format string, args ...interface{}) {
	p.warnfAt(0, true, format, args...)
	_ = tok
}

// warnfAt records a recovered-from parse issue anchored to an explicit
// offset. useCurrent, when true, ignores offset and uses the source's
// current position instead.
func (p *Parser) warnfAt(offset int64, useCurrent bool, format string, args ...interface{}) {
	if p.opts.Warnings == nil {
		return
	}
	off := offset
	if useCurrent {
		off, _ = p.tell()
	}
	p.opts.Warnings.Addf(warnings.KindDamagedPDF, p.context(), "", off, format, args...)
}

// parseInt64 converts a decimal digit run (optionally signed) to int64,
// saturating rather than erroring on overflow — tokeniser already
// guarantees the bytes are digits with at most a leading sign.
func parseInt64(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	neg := false
	i := 0
	if b[0] == '+' || b[0] == '-' {
		neg = b[0] == '-'
		i++
	}
	var n int64
	for ; i < len(b); i++ {
		c := b[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return n
}
