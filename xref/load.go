package xref

import (
	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/parser"
	"github.com/qpdf-go/qpdfcore/pdferr"
	"github.com/qpdf-go/qpdfcore/source"
	"github.com/qpdf-go/qpdfcore/token"
	"github.com/qpdf-go/qpdfcore/warnings"
)

// Options configures Load.
type Options struct {
	// Context names src in error/warning messages; defaults to src.Name().
	Context string
	// Warnings, if non-nil, collects recoverable problems encountered while
	// building the table (damaged entries, generation mismatches, and so
	// on). A nil List means warnings are discarded.
	Warnings *warnings.List
	// ForceRepair skips the structured xref chain entirely and goes
	// straight to the brute-force scan.
	ForceRepair bool
}

// Load builds a Table for src: it locates the
// "startxref" pointer, walks the chain of classic tables and/or
// cross-reference streams via /Prev (newest entries win, guarded against
// a circular chain), merges in any hybrid-file /XRefStm, and falls back to
// the brute-force repair scan when the structured path is missing or
// damaged. Grounded on unidoc-unipdf/core/parser.go's loadXrefs.
func Load(src source.Source, arena *object.Arena, opts Options) (*Table, error) {
	ctx := opts.Context
	if ctx == "" {
		ctx = src.Name()
	}
	newParser := func() *parser.Parser {
		return parser.New(src, arena, parser.Options{Context: ctx, Warnings: opts.Warnings})
	}

	if opts.ForceRepair {
		return repairLoad(src, ctx, newParser, opts.Warnings)
	}

	startOffset, ok, err := findStartXref(src, ctx)
	if err != nil || !ok {
		return repairLoad(src, ctx, newParser, opts.Warnings)
	}

	table, maxID, ok := walkChain(src, ctx, newParser, startOffset, opts.Warnings)
	if !ok {
		return repairLoad(src, ctx, newParser, opts.Warnings)
	}

	if table.size == 0 || maxID > table.size {
		if table.size != 0 {
			warnf(opts.Warnings, warnings.KindDamagedPDF, ctx, "trailer", 0,
				"trailer /Size %d is smaller than the largest object id %d observed; using %d", table.size, maxID-1, maxID)
		}
		table.size = maxID
	}

	return table, nil
}

// findStartXref locates the last "startxref" keyword in the final search
// window of the file and returns the integer offset that follows it
// ("Find startxref near EOF").
func findStartXref(src source.Source, ctx string) (int64, bool, error) {
	total, err := src.Length()
	if err != nil {
		return 0, false, err
	}
	const tailWindow = 2048
	start := total - tailWindow
	if start < 0 {
		start = 0
	}
	found, err := src.FindLast([]byte("startxref"), start, 0, source.AcceptAll)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, nil
	}
	if _, err := token.ReadToken(src, ctx, true, 0); err != nil {
		return 0, false, err
	}
	numTok, err := token.ReadToken(src, ctx, true, 0)
	if err != nil {
		return 0, false, err
	}
	if numTok.Kind != token.Integer {
		return 0, false, nil
	}
	return int64(parseUint(numTok.Value)), true, nil
}

// walkChain walks the /Prev chain starting at offset, merging entries with
// "first seen wins" (newest to oldest) and collecting every trailer
// dictionary encountered. ok is false when any section in the chain fails
// to parse, signalling that the caller should fall back to repair.
func walkChain(src source.Source, ctx string, newParser func() *parser.Parser, offset int64, warn *warnings.List) (*Table, uint32, bool) {
	table := newTable()
	visited := make(map[int64]bool)
	var trailers []*object.Handle
	var maxID uint32

	for {
		if visited[offset] {
			warnf(warn, warnings.KindDamagedPDF, ctx, "xref", offset, "circular /Prev chain detected, stopping")
			break
		}
		visited[offset] = true

		sec, err := parseSectionAt(src, ctx, newParser, offset)
		if err != nil {
			return nil, 0, false
		}
		mergeSection(table, sec, &maxID)
		if sec.trailer != nil {
			trailers = append(trailers, sec.trailer)
		}

		if sec.hasXrefStm && !visited[sec.xrefStm] {
			visited[sec.xrefStm] = true
			if xsec, err := parseXrefStreamSection(ctx, newParser, sec.xrefStm); err == nil {
				mergeSection(table, xsec, &maxID)
			} else {
				warnf(warn, warnings.KindDamagedPDF, ctx, "xref", sec.xrefStm, "hybrid /XRefStm at offset %d failed to parse: %v", sec.xrefStm, err)
			}
		}

		if !sec.hasPrev {
			break
		}
		offset = sec.prev
	}

	table.Trailer = mergeTrailers(trailers)
	if table.Trailer != nil {
		if v, ok := table.Trailer.Get("Size"); ok {
			if n, ok := v.AsInteger(); ok && n > 0 {
				table.size = uint32(n)
			}
		}
	}
	return table, maxID, true
}

func mergeSection(table *Table, sec *section, maxID *uint32) {
	for id, e := range sec.entries {
		table.setIfAbsent(id, e)
		if id+1 > *maxID {
			*maxID = id + 1
		}
	}
}

// parseSectionAt dispatches to the classic or stream section parser
// depending on what's found at offset: a bare "xref" keyword, or an
// indirect object (a cross-reference stream).
func parseSectionAt(src source.Source, ctx string, newParser func() *parser.Parser, offset int64) (*section, error) {
	if _, err := src.Seek(offset, source.SeekStart); err != nil {
		return nil, err
	}
	peek, err := token.ReadToken(src, ctx, true, 0)
	if err != nil {
		return nil, err
	}
	if _, err := src.Seek(offset, source.SeekStart); err != nil {
		return nil, err
	}
	if peek.IsWord("xref") {
		return parseClassicSection(src, ctx, newParser, offset)
	}
	return parseXrefStreamSection(ctx, newParser, offset)
}

// mergeTrailers combines trailer dictionaries from newest to oldest
//: the first dictionary to define a key wins,
// except /Size which is resolved by the caller against the largest
// observed object id.
func mergeTrailers(trailers []*object.Handle) *object.Handle {
	if len(trailers) == 0 {
		return nil
	}
	merged := object.NewDictionary()
	for _, t := range trailers {
		for _, key := range t.Keys() {
			if _, exists := merged.Get(key); exists {
				continue
			}
			if v, ok := t.Get(key); ok {
				_ = merged.Put(key, v)
			}
		}
	}
	return merged
}

// repairLoad builds a Table via the brute-force scan when
// the structured xref chain is absent or damaged.
func repairLoad(src source.Source, ctx string, newParser func() *parser.Parser, warn *warnings.List) (*Table, error) {
	raw, err := repairScan(src, ctx)
	if err != nil {
		return nil, pdferr.Wrap(pdferr.CodeDamagedPDF, err, "%s: repair scan failed", ctx)
	}

	table := newTable()
	var maxID uint32
	var trailer *object.Handle
	for id, e := range raw {
		table.entries[id] = e
		if id+1 > maxID {
			maxID = id + 1
		}
	}

	for id, e := range raw {
		if e.Type != TypeOffset {
			continue
		}
		_ = enumerateObjectStreamMembers(ctx, newParser, id, e.Offset, table.entries)
		if trailer == nil {
			if h, err := probeTrailerCandidate(newParser, id, e.Offset); err == nil && h != nil {
				trailer = h
			}
		}
	}

	table.Repaired = true
	table.size = maxID
	table.Trailer = trailer
	warnf(warn, warnings.KindDamagedPDF, ctx, "xref", 0, "xref table rebuilt by linear scan (%d objects recovered)", len(raw))
	return table, nil
}

// warnf is a nil-safe wrapper around (*warnings.List).Addf: a nil list
// (warnings not being collected) is a no-op rather than a panic.
func warnf(l *warnings.List, kind warnings.Kind, file, object string, offset int64, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.Addf(kind, file, object, offset, format, args...)
}

// probeTrailerCandidate inspects the object at offset and returns it as a
// trailer candidate if it looks like a document catalog-bearing dictionary
// (has /Root) or, for a cross-reference stream left over from a damaged
// file, its own dictionary. A damaged file with no classic trailer still
// needs /Root to locate the document catalog (repair note: recovery
// "reconstructs what a trailer would have said" from whatever /Root- or
// /Type/XRef-bearing object survives the scan).
func probeTrailerCandidate(newParser func() *parser.Parser, id uint32, offset int64) (*object.Handle, error) {
	p := newParser()
	_, h, err := p.ParseIndirectObjectAt(offset)
	if err != nil {
		return nil, err
	}
	var dict *object.Handle
	switch h.Kind() {
	case object.KindDictionary:
		dict = h
	case object.KindStream:
		dict, _ = h.Value().StreamDict()
	default:
		return nil, nil
	}
	if dict == nil {
		return nil, nil
	}
	if _, ok := dict.Get("Root"); ok {
		return dict, nil
	}
	return nil, nil
}
