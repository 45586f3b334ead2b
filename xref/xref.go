// Package xref implements the cross-reference index and its repair path
//: it maps each ObjGen to where its body lives — a byte offset, a
// slot inside an object stream, or implicitly free — by walking a chain of
// classic xref tables and/or cross-reference streams, falling back to a
// brute-force "N G obj" scan when the structured path fails.
//
// Grounded on unidoc-unipdf/core/crossrefs.go's XrefObject/XrefTable shape
// and core/parser.go's loadXrefs orchestration, and on
// unidoc-unipdf/core/repairs.go's rebuild/seek routines for the repair
// path. Depends on package parser (not the other way around, see that
// package's doc comment) for trailer and xref-stream-dictionary parsing.
package xref

import (
	"github.com/qpdf-go/qpdfcore/object"
)

// Type classifies one Entry ("the xref index maps ObjGen to one of").
type Type int

const (
	// TypeFree means the ObjGen is not in use. Entries a section marks
	// free are stored in Table (so an older section cannot revive them);
	// Lookup reports them, like unknown ids, as the zero Entry and ok=false.
	TypeFree Type = iota
	// TypeOffset means the object body starts at Entry.Offset in the file.
	TypeOffset
	// TypeCompressed means the object is member Entry.StreamIndex of the
	// object stream with id Entry.StreamObj.
	TypeCompressed
)

func (t Type) String() string {
	switch t {
	case TypeFree:
		return "free"
	case TypeOffset:
		return "offset"
	case TypeCompressed:
		return "compressed"
	default:
		return "unknown"
	}
}

// Entry is one xref slot.
type Entry struct {
	Type Type
	// Offset is the byte offset of "N G obj", valid when Type == TypeOffset.
	Offset int64
	// Gen is the entry's declared generation, valid when Type ==
	// TypeOffset (classic tables only record generation for in-use
	// entries; compressed entries are always generation 0 per spec).
	Gen uint16
	// StreamObj/StreamIndex locate a compressed object within its object
	// stream, valid when Type == TypeCompressed.
	StreamObj   uint32
	StreamIndex int
}

// Table is the resolved cross-reference index for one document.
type Table struct {
	entries map[uint32]Entry
	// size is the trailer's /Size, the max object id + 1; may be
	// corrected upward from the largest id actually observed.
	size uint32
	// Trailer is the merged trailer dictionary (construction step 4:
	// newest /Root, /Encrypt, /Info, /ID win). Its /Size is the newest
	// trailer's own value; Size() returns the corrected one.
	Trailer *object.Handle
	// Repaired records whether the table was built via the brute-force
	// scan instead of the structured xref chain.
	Repaired bool
}

// Lookup returns og's Entry and whether it is known and in use. An unknown
// or explicitly free ObjGen reports ok=false ("absent (implicit null
// by spec)" folds into the same "not found" signal here).
func (t *Table) Lookup(og object.ObjGen) (Entry, bool) {
	e, ok := t.entries[og.ID]
	if !ok || e.Type == TypeFree {
		return Entry{}, false
	}
	if e.Type == TypeOffset && e.Gen != og.Gen {
		// Generation mismatch against the xref entry itself (as opposed
		// to the "N G obj" header, checked at resolve time) still
		// resolves by object id per qpdf's lenient generation handling;
		// callers needing strict matching compare Gen themselves.
		return e, true
	}
	return e, true
}

// Size returns the table's /Size value (max object id + 1).
func (t *Table) Size() uint32 { return t.size }

// ObjectIDs returns every object id present in the table, in no particular
// order.
func (t *Table) ObjectIDs() []uint32 {
	ids := make([]uint32, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	return ids
}

func newTable() *Table {
	return &Table{entries: make(map[uint32]Entry)}
}

// setIfAbsent installs e for id only if id has no entry yet, implementing
// "newest-over-oldest: the first entry seen for an ObjGen wins"
// merge rule for the newest-to-oldest /Prev walk.
func (t *Table) setIfAbsent(id uint32, e Entry) {
	if _, exists := t.entries[id]; exists {
		return
	}
	t.entries[id] = e
}
