package resolve

import "github.com/qpdf-go/qpdfcore/object"

// ResolveDeep walks h's object graph, resolving every reference it reaches
// (directly or via nested arrays/dicts/a stream's dictionary) and
// recording the resolved ObjGens in visited so a later call, or a cyclic
// structure within this one, does not re-traverse the same subtree. The
// traversed set is keyed by ObjGen, a comparable value type, rather than by
// handle identity, since *object.Handle is not itself a safe map key across
// cells sharing identity.
func (r *Resolver) ResolveDeep(h *object.Handle, visited map[object.ObjGen]bool) error {
	if visited == nil {
		visited = make(map[object.ObjGen]bool)
	}
	return r.resolveDeep(h, visited)
}

func (r *Resolver) resolveDeep(h *object.Handle, visited map[object.ObjGen]bool) error {
	if h == nil {
		return nil
	}

	if og, isRef := h.Value().ReferenceTarget(); isRef {
		if visited[og] {
			return nil
		}
		visited[og] = true
		resolved, err := r.Resolve(og)
		if err != nil {
			return err
		}
		return r.resolveDeep(resolved, visited)
	}

	switch h.Kind() {
	case object.KindArray:
		n, _ := h.ArrayLen()
		for i := 0; i < n; i++ {
			elem, ok := h.ArrayGet(i)
			if !ok {
				continue
			}
			if err := r.resolveDeep(elem, visited); err != nil {
				return err
			}
		}
	case object.KindDictionary:
		for _, key := range h.Keys() {
			v, ok := h.Get(key)
			if !ok {
				continue
			}
			if err := r.resolveDeep(v, visited); err != nil {
				return err
			}
		}
	case object.KindStream:
		dict, ok := h.Value().StreamDict()
		if ok {
			if err := r.resolveDeep(dict, visited); err != nil {
				return err
			}
		}
	}
	return nil
}
