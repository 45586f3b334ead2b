// Package resolve implements the indirect-object resolver and cache: it
// turns an ObjGen into the shared Arena cell holding its parsed value,
// materialising the body from wherever the xref table says it lives — a
// direct file offset, or a slot inside an object stream — on first access,
// and is never consulted again once an ObjGen is resolved. Resolution state
// is tracked through object.Arena's CellState machine rather than a
// separate cache map plus an ad-hoc xref-type switch.
package resolve

import (
	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/parser"
	"github.com/qpdf-go/qpdfcore/source"
	"github.com/qpdf-go/qpdfcore/warnings"
	"github.com/qpdf-go/qpdfcore/xref"
)

// Options configures a Resolver.
type Options struct {
	// Context names the document in warning messages; defaults to
	// src.Name().
	Context string
	// Warnings, if non-nil, collects recoverable parse problems.
	Warnings *warnings.List
}

// Resolver materialises indirect objects on demand.
type Resolver struct {
	src   source.Source
	arena *object.Arena
	table *xref.Table
	opts  Options

	objStreams     map[uint32][]osMember
	objStreamCache map[uint32][]byte
	decoding       map[uint32]bool
}

// New creates a Resolver over src's already-loaded cross-reference table.
func New(src source.Source, arena *object.Arena, table *xref.Table, opts Options) *Resolver {
	return &Resolver{
		src:            src,
		arena:          arena,
		table:          table,
		opts:           opts,
		objStreams:     make(map[uint32][]osMember),
		objStreamCache: make(map[uint32][]byte),
		decoding:       make(map[uint32]bool),
	}
}

func (r *Resolver) context() string {
	if r.opts.Context != "" {
		return r.opts.Context
	}
	return r.src.Name()
}

func (r *Resolver) warnf(og object.ObjGen, offset int64, format string, args ...interface{}) {
	if r.opts.Warnings == nil {
		return
	}
	r.opts.Warnings.Addf(warnings.KindDamagedPDF, r.context(), og.String(), offset, format, args...)
}

func (r *Resolver) newParser() *parser.Parser {
	return parser.New(r.src, r.arena, parser.Options{
		Context:  r.context(),
		Length:   r,
		Warnings: r.opts.Warnings,
	})
}

// Get returns a Handle to og's cell without forcing resolution (// "get(og): returns a handle to the cell... never fails").
func (r *Resolver) Get(og object.ObjGen) *object.Handle {
	return r.arena.Get(og)
}

// Arena exposes the underlying object arena, for callers (the writer's
// preserve_unreferenced pass, step 1) that need to enumerate every
// object this document has ever touched rather than only what's reachable
// from a root set.
func (r *Resolver) Arena() *object.Arena {
	return r.arena
}

// Resolve materialises og's value if it is not already resolved, and
// returns a Handle to its cell ("resolve(og)").
func (r *Resolver) Resolve(og object.ObjGen) (*object.Handle, error) {
	if og.IsNull() {
		return object.NewNull(), nil
	}

	switch r.arena.State(og) {
	case object.StateResolved:
		return r.arena.Get(og), nil
	case object.StateDestroyed:
		return r.arena.Get(og), nil
	}

	if !r.arena.MarkResolving(og) {
		// Already on the resolving stack: a self-reference cycle on this
		// edge only. Other references to the same
		// ObjGen still complete normally once the outer parse returns.
		r.warnf(og, 0, "self-referential object encountered while resolving, using null for this reference")
		r.arena.StoreNull(og)
		return r.arena.Get(og), nil
	}

	entry, ok := r.table.Lookup(og)
	if !ok {
		r.arena.StoreNull(og)
		return r.arena.Get(og), nil
	}

	switch entry.Type {
	case xref.TypeOffset:
		r.resolveAtOffset(og, entry)
	case xref.TypeCompressed:
		r.resolveCompressed(og, entry)
	default:
		r.arena.StoreNull(og)
	}

	return r.arena.Get(og), nil
}

// resolveAtOffset parses "og.ID og.Gen obj ... endobj" at entry.Offset
// ("seek, require header og obj, parse object body, require endobj
// (warn if missing), store").
func (r *Resolver) resolveAtOffset(og object.ObjGen, entry xref.Entry) {
	p := r.newParser()
	gotOG, val, err := p.ParseIndirectObjectAt(entry.Offset)
	if err != nil {
		r.warnf(og, entry.Offset, "failed to parse object body: %v", err)
		r.arena.StoreNull(og)
		return
	}
	if gotOG.ID != og.ID {
		r.warnf(og, entry.Offset, "object header declares id %d, expected %d", gotOG.ID, og.ID)
		r.arena.StoreNull(og)
		return
	}
	if gotOG.Gen != og.Gen {
		// invariant: a generation mismatch between the xref entry and
		// the object header is a warning, and the header wins — the parsed
		// body is kept regardless.
		r.warnf(og, entry.Offset, "xref generation %d does not match object header generation %d; using header", og.Gen, gotOG.Gen)
	}
	r.arena.Store(og, *val.Value())
}

// resolveCompressed materialises the object stream entry.StreamObj and
// installs member entry.StreamIndex as og's value ("compressed in
// stream S at index i").
func (r *Resolver) resolveCompressed(og object.ObjGen, entry xref.Entry) {
	if entry.StreamObj == og.ID {
		r.warnf(og, 0, "object stream entry refers to itself, using null")
		r.arena.StoreNull(og)
		return
	}

	members, decoded, err := r.materializeObjectStream(entry.StreamObj)
	if err != nil {
		r.warnf(og, 0, "object stream %d unavailable: %v", entry.StreamObj, err)
		r.arena.StoreNull(og)
		return
	}
	if entry.StreamIndex < 0 || entry.StreamIndex >= len(members) {
		r.warnf(og, 0, "object stream %d has no member at index %d", entry.StreamObj, entry.StreamIndex)
		r.arena.StoreNull(og)
		return
	}

	m := members[entry.StreamIndex]
	memSrc := source.NewMemory(r.context(), decoded)
	p := parser.New(memSrc, r.arena, parser.Options{Context: r.context(), Warnings: r.opts.Warnings})
	val, err := p.ParseObjectAt(m.offset)
	if err != nil {
		r.warnf(og, 0, "failed to parse member %d of object stream %d: %v", entry.StreamIndex, entry.StreamObj, err)
		r.arena.StoreNull(og)
		return
	}
	if val.Kind() == object.KindStream {
		r.warnf(og, 0, "object stream member %d of stream %d is itself a stream, not permitted", entry.StreamIndex, entry.StreamObj)
		r.arena.StoreNull(og)
		return
	}
	r.arena.Store(og, *val.Value())
}

// ResolveLength implements parser.LengthResolver, letting a stream's
// indirect /Length be resolved through the same cache other objects use.
func (r *Resolver) ResolveLength(og object.ObjGen) (int64, bool) {
	h, err := r.Resolve(og)
	if err != nil {
		return 0, false
	}
	return h.AsInteger()
}
