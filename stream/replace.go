package stream

import (
	"github.com/qpdf-go/qpdfcore/codec"
	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/pdferr"
)

// FilterSpec names one filter and its parameters for ReplaceStreamData's
// /Filter and /DecodeParms rewrite.
type FilterSpec struct {
	Name   string
	Params codec.Params
	// HasParams distinguishes "no /DecodeParms entry for this filter" from
	// "an entry with every field at its PDF default", since the latter
	// still needs an (empty) dictionary written when EarlyChange was
	// explicitly set.
	HasParams bool
}

// ReplaceStreamData rewrites h's data source and, atomically, its
// dictionary's /Filter, /DecodeParms, and /Length ("replace_stream_data
// rewrites the dictionary's /Filter, /DecodeParms, and /Length atomically;
// subsequent writes use the new source"). Passing a nil filters slice
// clears /Filter and /DecodeParms entirely (the new source is raw data).
func ReplaceStreamData(h *object.Handle, src object.StreamSource, filters []FilterSpec) error {
	if h.Kind() != object.KindStream {
		return pdferr.New(pdferr.CodeObject, "ReplaceStreamData on a non-stream handle")
	}
	d, err := dict(h)
	if err != nil {
		return err
	}

	switch len(filters) {
	case 0:
		d.Delete("Filter")
		d.Delete("DecodeParms")
	case 1:
		d.Put("Filter", object.NewName(filters[0].Name))
		if filters[0].HasParams {
			d.Put("DecodeParms", paramsDict(filters[0].Params))
		} else {
			d.Delete("DecodeParms")
		}
	default:
		names := make([]*object.Handle, len(filters))
		parms := make([]*object.Handle, len(filters))
		anyParms := false
		for i, f := range filters {
			names[i] = object.NewName(f.Name)
			if f.HasParams {
				parms[i] = paramsDict(f.Params)
				anyParms = true
			} else {
				parms[i] = object.NewNull()
			}
		}
		d.Put("Filter", object.NewArray(names...))
		if anyParms {
			d.Put("DecodeParms", object.NewArray(parms...))
		} else {
			d.Delete("DecodeParms")
		}
	}

	length, ok := src.Len()
	if ok {
		d.Put("Length", object.NewInteger(length))
	} else {
		d.Delete("Length")
	}

	h.Value().SetStreamSource(src)
	return nil
}

// paramsDict renders a codec.Params as a /DecodeParms dictionary, omitting
// fields left at their PDF default (writing an empty dict for an all-default
// Params with HasParams set, e.g. a bare EarlyChange override).
func paramsDict(p codec.Params) *object.Handle {
	d := object.NewDictionary()
	if p.Predictor != 0 && p.Predictor != 1 {
		d.Put("Predictor", object.NewInteger(int64(p.Predictor)))
	}
	if p.Colors != 0 && p.Colors != 1 {
		d.Put("Colors", object.NewInteger(int64(p.Colors)))
	}
	if p.BitsPerComponent != 0 && p.BitsPerComponent != 8 {
		d.Put("BitsPerComponent", object.NewInteger(int64(p.BitsPerComponent)))
	}
	if p.Columns != 0 && p.Columns != 1 {
		d.Put("Columns", object.NewInteger(int64(p.Columns)))
	}
	if p.HasEarlyChange {
		d.Put("EarlyChange", object.NewInteger(int64(p.EarlyChange)))
	}
	return d
}
