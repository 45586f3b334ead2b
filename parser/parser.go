// Package parser implements the recursive-descent object parser:
// it turns a token.Lexer's pull-mode token stream into object.Handle trees,
// dispatching on token.Kind directly rather than regex-matching raw text,
// since package token already did the lexical classification.
//
// parser has no dependency on package xref: an indirect reference is
// parsed as a deferred object.NewReferenceValue, never resolved here, so
// the object graph can be built without knowing where anything lives in
// the file. Package xref depends on parser instead, using ParseObjectAt to
// read trailer and xref-stream dictionaries.
package parser

import (
	"io"

	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/pdferr"
	"github.com/qpdf-go/qpdfcore/source"
	"github.com/qpdf-go/qpdfcore/token"
	"github.com/qpdf-go/qpdfcore/warnings"
)

// maxContainerDepth bounds array/dictionary nesting ("recursion depth
// cap").
const maxContainerDepth = 500

// maxConsecutiveErrors bounds how many malformed elements in a row an
// array/dict parse tolerates before giving up ("max-consecutive-
// errors cap").
const maxConsecutiveErrors = 6

// LengthResolver resolves a stream's /Length value when it is an indirect
// reference, since parser itself never resolves references. Package
// resolve implements this and passes itself to NewParser.
type LengthResolver interface {
	ResolveLength(og object.ObjGen) (int64, bool)
}

// Options configures a Parser.
type Options struct {
	// Context names the source for error messages (a file path or
	// synthetic name).
	Context string
	// Length resolves indirect /Length values; nil disables indirect
	// /Length support (any such stream falls back to scanning for
	// endstream).
	Length LengthResolver
	// Warnings, if set, receives recovered-from parse noise; nil
	// means tolerant recovery happens silently.
	Warnings *warnings.List
}

// Parser turns a byte source into object.Handle trees.
type Parser struct {
	src     source.Source
	arena   *object.Arena
	opts    Options
	pending []token.Token

	// contentsOffset/hasContentsOffset record the absolute file offset of
	// the most recently parsed top-level "/Contents" literal-string value,
	// used by signature verification, reset at the start of each
	// ParseIndirectObjectAt/ParseObjectAt call.
	contentsOffset    int64
	hasContentsOffset bool
}

// New creates a Parser reading from src. arena supplies fabricated
// synthetic dictionary keys; it may be nil, in which case every
// fabricated key falls back to a fixed placeholder (acceptable only for
// throwaway/single-use parses, since collisions become possible).
func New(src source.Source, arena *object.Arena, opts Options) *Parser {
	return &Parser{src: src, arena: arena, opts: opts}
}

func (p *Parser) context() string {
	if p.opts.Context != "" {
		return p.opts.Context
	}
	return p.src.Name()
}

// next returns the next token, drawing from the pushback buffer first.
func (p *Parser) next() (token.Token, error) {
	if n := len(p.pending); n > 0 {
		tok := p.pending[n-1]
		p.pending = p.pending[:n-1]
		return tok, nil
	}
	return token.ReadToken(p.src, p.context(), false, 0)
}

// unget pushes tok back so the next call to next() returns it again. Used
// for the 3-token "N G R" lookahead.
func (p *Parser) unget(tok token.Token) {
	p.pending = append(p.pending, tok)
}

// tell reports the source's current offset. Pushed-back tokens are not
// accounted for: they have already been consumed from the source, so the
// offset lies past them.
func (p *Parser) tell() (int64, error) {
	return p.src.Tell()
}

func errUnexpectedEOF(context string) error {
	return pdferr.New(pdferr.CodeDamagedPDF, "%s: unexpected end of input", context)
}

func (p *Parser) wrapIOErr(err error) error {
	if err == io.EOF {
		return errUnexpectedEOF(p.context())
	}
	return err
}

// ContentsOffset returns the absolute file offset of the last-parsed
// top-level "/Contents" literal-string value, if one was seen during the
// most recent ParseIndirectObjectAt/ParseObjectAt call (signature
// support).
func (p *Parser) ContentsOffset() (int64, bool) {
	return p.contentsOffset, p.hasContentsOffset
}
