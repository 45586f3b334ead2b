package writer

import (
	"sort"

	"github.com/qpdf-go/qpdfcore/config"
	"github.com/qpdf-go/qpdfcore/object"
)

// graph is the traversal result: every indirect object reachable from the
// root set, in first-encountered order, plus the old-ObjGen-to-new-object-
// number renumbering table (steps 1-2).
type graph struct {
	order    []object.ObjGen
	handles  map[object.ObjGen]*object.Handle
	renumber map[object.ObjGen]int
}

// buildGraph walks from the trailer (not itself a numbered object) through
// every reference it can reach, assigning object numbers in visitation
// order, the same reference-detection shape resolve.ResolveDeep uses.
func (w *Writer) buildGraph() (*graph, error) {
	g := &graph{handles: make(map[object.ObjGen]*object.Handle), renumber: make(map[object.ObjGen]int)}
	for _, key := range w.in.Trailer.Keys() {
		v, ok := w.in.Trailer.Get(key)
		if !ok {
			continue
		}
		if err := w.walk(v, g); err != nil {
			return nil, err
		}
	}
	if w.opts.PreserveUnreferenced {
		w.addUnreferenced(g)
	}
	for i, og := range g.order {
		g.renumber[og] = i + 1
	}
	return g, nil
}

func (w *Writer) walk(h *object.Handle, g *graph) error {
	if h == nil {
		return nil
	}
	if og, isRef := h.Value().ReferenceTarget(); isRef {
		if _, seen := g.handles[og]; seen {
			return nil
		}
		resolved, err := w.in.Resolver.Resolve(og)
		if err != nil {
			return err
		}
		g.handles[og] = resolved
		g.order = append(g.order, og)
		return w.walk(resolved, g)
	}

	switch h.Kind() {
	case object.KindArray:
		n, _ := h.ArrayLen()
		for i := 0; i < n; i++ {
			elem, ok := h.ArrayGet(i)
			if !ok {
				continue
			}
			if err := w.walk(elem, g); err != nil {
				return err
			}
		}
	case object.KindDictionary:
		for _, key := range h.Keys() {
			v, ok := h.Get(key)
			if !ok {
				continue
			}
			if err := w.walk(v, g); err != nil {
				return err
			}
		}
	case object.KindStream:
		dict, ok := h.Value().StreamDict()
		if ok {
			if err := w.walk(dict, g); err != nil {
				return err
			}
		}
	}
	return nil
}

// addUnreferenced appends every other object the resolver has ever touched
// (config.WriterOptions.PreserveUnreferenced), in a deterministic (ID, Gen)
// order since Arena.ObjGens makes no ordering guarantee.
func (w *Writer) addUnreferenced(g *graph) {
	arena := w.in.Resolver.Arena()
	if arena == nil {
		return
	}
	var extra []object.ObjGen
	for _, og := range arena.ObjGens() {
		if _, seen := g.handles[og]; seen {
			continue
		}
		if arena.State(og) != object.StateResolved {
			continue
		}
		extra = append(extra, og)
	}
	sort.Slice(extra, func(i, j int) bool {
		if extra[i].ID != extra[j].ID {
			return extra[i].ID < extra[j].ID
		}
		return extra[i].Gen < extra[j].Gen
	})
	for _, og := range extra {
		g.handles[og] = arena.Get(og)
		g.order = append(g.order, og)
	}
}

// objStreamContainer is one assembled object stream: a run of eligible
// objects packed together.
type objStreamContainer struct {
	num     int
	members []object.ObjGen
}

// planObjectStreams partitions eligible objects into containers of at most
// opts.ObjectStreamThreshold members each (step 1 eligibility: "not a
// stream, not the catalog's /Encrypt, not the root, not referenced from the
// encryption dictionary"); a reference counts when it is the value of one of
// the /Encrypt dictionary's own keys, not one nested deeper inside it.
// Container object numbers are filled in by the
// caller once the count of non-packed objects is known.
func (w *Writer) planObjectStreams(g *graph, rootOG object.ObjGen, encObjNum int) []objStreamContainer {
	if w.opts.ObjectStreams != config.ObjectStreamsGenerate {
		return nil
	}
	threshold := w.opts.ObjectStreamThreshold
	if threshold <= 0 {
		threshold = 100
	}

	encRefs := make(map[object.ObjGen]bool)
	for _, og := range g.order {
		if encObjNum != 0 && g.renumber[og] == encObjNum {
			for _, k := range g.handles[og].Keys() {
				v, _ := g.handles[og].Get(k)
				if ref, isRef := v.Value().ReferenceTarget(); isRef {
					encRefs[ref] = true
				}
			}
		}
	}

	var eligible []object.ObjGen
	for _, og := range g.order {
		h := g.handles[og]
		if h.Kind() == object.KindStream || encRefs[og] {
			continue
		}
		if og == rootOG {
			continue
		}
		if g.renumber[og] == encObjNum && encObjNum != 0 {
			continue
		}
		eligible = append(eligible, og)
	}

	var containers []objStreamContainer
	for i := 0; i < len(eligible); i += threshold {
		end := i + threshold
		if end > len(eligible) {
			end = len(eligible)
		}
		containers = append(containers, objStreamContainer{members: append([]object.ObjGen(nil), eligible[i:end]...)})
	}
	return containers
}
