package parser

import (
	"io"

	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/pdferr"
	"github.com/qpdf-go/qpdfcore/source"
)

// endstreamKeyword is the marker a stream body's declared length is
// validated against (stream-length fallback).
const endstreamKeyword = "endstream"

// parseStreamBody runs once the "stream" keyword has just been consumed
// (the source sits at the byte immediately following it, before the
// mandatory EOL). dict is the stream's already-parsed dictionary. It
// tolerates the EOL-after-"stream" variants real files use (CRLF, bare LF,
// bare CR), resolves /Length (direct or, if p.opts.Length is set,
// indirect), validates the resulting end offset against an actual
// "endstream" marker, and falls back to scanning for one when the
// declared length is wrong ("stream /Length validation").
func (p *Parser) parseStreamBody(dict *object.Handle) (*object.Handle, error) {
	if err := p.skipStreamEOL(); err != nil {
		return nil, err
	}
	dataStart, err := p.tell()
	if err != nil {
		return nil, err
	}

	length, lengthOK := p.resolveLength(dict)
	if lengthOK {
		if ok, verr := p.hasEndstreamAt(dataStart + length); verr != nil {
			return nil, verr
		} else if !ok {
			lengthOK = false
		}
	}
	if !lengthOK {
		scanned, serr := p.scanForEndstream(dataStart)
		if serr != nil {
			return nil, serr
		}
		length = scanned
		p.warnfAt(dataStart, false, "recovered stream /Length by scanning for endstream (%d bytes)", length)
		if dict != nil {
			_ = dict.Put("Length", object.NewInteger(length))
		}
	}

	data := make([]byte, length)
	if length > 0 {
		n, rerr := p.src.ReadAt(data, dataStart)
		if int64(n) < length && (rerr == nil || rerr == io.EOF) {
			return nil, pdferr.New(pdferr.CodeDamagedPDF, "%s: stream at offset %d truncated", p.context(), dataStart)
		}
		if rerr != nil && rerr != io.EOF {
			return nil, rerr
		}
	}
	if _, err := p.src.Seek(dataStart+length, source.SeekStart); err != nil {
		return nil, err
	}

	p.skipWhitespaceAndComments()
	p.skipKeyword(endstreamKeyword)

	return object.NewStream(dict, &object.BufferSource{Data: data}), nil
}

// skipStreamEOL consumes the single mandatory EOL after the "stream"
// keyword: CRLF, a bare LF, or (tolerated, with a warning) a bare CR.
func (p *Parser) skipStreamEOL() error {
	pos, err := p.tell()
	if err != nil {
		return err
	}
	var buf [2]byte
	n, rerr := p.src.ReadAt(buf[:], pos)
	if rerr != nil && rerr != io.EOF {
		return rerr
	}
	switch {
	case n >= 1 && buf[0] == '\r' && n >= 2 && buf[1] == '\n':
		pos += 2
	case n >= 1 && buf[0] == '\n':
		pos += 1
	case n >= 1 && buf[0] == '\r':
		p.warnfAt(pos, false, "stream keyword followed by a bare CR")
		pos += 1
	default:
		// No EOL present at all; tolerate and treat data as starting here.
	}
	_, err = p.src.Seek(pos, source.SeekStart)
	return err
}

// resolveLength reads dict's /Length entry, resolving an indirect
// reference via p.opts.Length if present. ok is false when /Length is
// missing, non-integer, or an unresolved reference with no resolver.
func (p *Parser) resolveLength(dict *object.Handle) (int64, bool) {
	if dict == nil {
		return 0, false
	}
	lh, ok := dict.Get("Length")
	if !ok || lh == nil {
		return 0, false
	}
	if n, ok := lh.AsInteger(); ok {
		if n < 0 {
			return 0, false
		}
		return n, true
	}
	if og, ok := lh.Value().ReferenceTarget(); ok && p.opts.Length != nil {
		if n, ok := p.opts.Length.ResolveLength(og); ok && n >= 0 {
			return n, true
		}
	}
	return 0, false
}

// hasEndstreamAt reports whether the "endstream" keyword (after optional
// whitespace) appears at or shortly after offset, without disturbing the
// source's position on failure.
func (p *Parser) hasEndstreamAt(offset int64) (bool, error) {
	total, err := p.src.Length()
	if err != nil {
		return false, err
	}
	if offset < 0 || offset > total {
		return false, nil
	}
	buf := make([]byte, 32)
	n, rerr := p.src.ReadAt(buf, offset)
	if rerr != nil && rerr != io.EOF {
		return false, rerr
	}
	buf = buf[:n]
	i := 0
	for i < len(buf) && isStreamSpace(buf[i]) {
		i++
	}
	rest := buf[i:]
	return len(rest) >= len(endstreamKeyword) && string(rest[:len(endstreamKeyword)]) == endstreamKeyword, nil
}

// scanForEndstream brute-force searches for the next "endstream" marker
// starting at dataStart, returning the byte length up to (but not
// including) the EOL that immediately precedes it, per "trim the
// EOL belonging to the marker, not the data" rule.
func (p *Parser) scanForEndstream(dataStart int64) (int64, error) {
	found, err := p.src.FindFirst([]byte(endstreamKeyword), dataStart, 0, source.AcceptAll)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, pdferr.New(pdferr.CodeDamagedPDF, "%s: stream at offset %d has no endstream marker", p.context(), dataStart)
	}
	matchOffset, err := p.src.Tell()
	if err != nil {
		return 0, err
	}
	return p.trimTrailingEOL(dataStart, matchOffset), nil
}

// trimTrailingEOL returns the length of [dataStart, markerOffset) with a
// single trailing CR, LF, or CRLF run immediately before markerOffset
// excluded, since that EOL belongs to the "data EOL endstream" syntax, not
// the stream's actual bytes.
func (p *Parser) trimTrailingEOL(dataStart, markerOffset int64) int64 {
	end := markerOffset
	var buf [2]byte
	start := end - 2
	if start < dataStart {
		start = dataStart
	}
	n, _ := p.src.ReadAt(buf[:end-start], start)
	tail := buf[:n]
	switch {
	case len(tail) >= 2 && tail[len(tail)-2] == '\r' && tail[len(tail)-1] == '\n':
		end -= 2
	case len(tail) >= 1 && (tail[len(tail)-1] == '\n' || tail[len(tail)-1] == '\r'):
		end -= 1
	}
	if end < dataStart {
		end = dataStart
	}
	return end - dataStart
}

// skipWhitespaceAndComments advances past PDF whitespace and "%"-comments,
// tolerating their presence between the stream data and "endstream".
func (p *Parser) skipWhitespaceAndComments() {
	inComment := false
	for {
		pos, err := p.tell()
		if err != nil {
			return
		}
		var b [1]byte
		n, _ := p.src.ReadAt(b[:], pos)
		if n == 0 {
			return
		}
		c := b[0]
		if inComment {
			if c == '\n' || c == '\r' {
				inComment = false
			}
			_, _ = p.src.Seek(pos+1, source.SeekStart)
			continue
		}
		if c == '%' {
			inComment = true
			_, _ = p.src.Seek(pos+1, source.SeekStart)
			continue
		}
		if !isStreamSpace(c) {
			return
		}
		_, _ = p.src.Seek(pos+1, source.SeekStart)
	}
}

// skipKeyword consumes kw at the current position if present, tolerating
// its absence (a damaged file missing "endstream"/"endobj" is recovered
// from, not fatal, tolerant mode).
func (p *Parser) skipKeyword(kw string) {
	pos, err := p.tell()
	if err != nil {
		return
	}
	buf := make([]byte, len(kw))
	n, _ := p.src.ReadAt(buf, pos)
	if n == len(kw) && string(buf) == kw {
		_, _ = p.src.Seek(pos+int64(len(kw)), source.SeekStart)
	}
}

func isStreamSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	default:
		return false
	}
}
