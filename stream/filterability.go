package stream

import (
	"github.com/qpdf-go/qpdfcore/codec"
	"github.com/qpdf-go/qpdfcore/object"
)

// chainEntry pairs a resolved codec.Filter with the /DecodeParms it was
// declared with.
type chainEntry struct {
	filter codec.Filter
	params codec.Params
}

// Filterability resolves dict's declared /Filter chain against level and
// chainLimit, returning the resolved chain or, if the stream cannot be
// filtered as declared, an empty chain and a non-empty reason describing
// why. A filter with a predictor (/Predictor > 1) needs at least
// codec.LevelSpecialized. A stream with no /Filter at all is
// filterable trivially (an empty chain, empty reason): PipeDecoded then
// just returns the raw bytes.
func Filterability(dict *object.Handle, level codec.Level, chainLimit int) ([]chainEntry, string) {
	names, paramsList := filterNames(dict)
	if len(names) == 0 {
		return nil, ""
	}
	if chainLimit <= 0 {
		chainLimit = codec.MaxFilterChainLength
	}
	if len(names) > chainLimit {
		return nil, "filter chain length exceeds the configured limit"
	}

	chain := make([]chainEntry, 0, len(names))
	for i, name := range names {
		f, ok := codec.Lookup(name)
		if !ok {
			return nil, "unknown filter " + name
		}
		if f.RequiredLevel() > level {
			return nil, "filter " + name + " requires a higher decode level than requested"
		}
		p := paramsList[i]
		if p.Predictor > 1 {
			if level < codec.LevelSpecialized {
				return nil, "predictor for filter " + name + " requires the specialized decode level"
			}
			if !validPredictorValue(p.Predictor) {
				return nil, "invalid predictor value for filter " + name
			}
			if p.Columns <= 0 {
				return nil, "predictor requires Columns > 0 for filter " + name
			}
		}
		chain = append(chain, chainEntry{filter: f, params: p})
	}
	return chain, ""
}

// validPredictorValue reports whether p is one of the recognised predictor
// codes: 1 (none), 2 (TIFF), or 10-15 (PNG).
func validPredictorValue(p int) bool {
	return p == 1 || p == 2 || (p >= 10 && p <= 15)
}

// filterNames reads dict's /Filter and /DecodeParms, normalising both the
// single-name and array forms into parallel slices, matching
// unidoc-unipdf/core/stream.go's NewEncoderFromStream dispatch (name vs
// array-of-one vs array-of-many).
func filterNames(dict *object.Handle) ([]string, []codec.Params) {
	filterH, ok := dict.Get("Filter")
	if !ok || filterH.IsNull() {
		return nil, nil
	}
	parmsH, _ := dict.Get("DecodeParms")

	if name, ok := filterH.AsName(); ok {
		return []string{name}, []codec.Params{decodeParms(parmsH)}
	}

	n, ok := filterH.ArrayLen()
	if !ok {
		return nil, nil
	}
	names := make([]string, 0, n)
	paramsList := make([]codec.Params, 0, n)
	for i := 0; i < n; i++ {
		elem, _ := filterH.ArrayGet(i)
		name, ok := elem.AsName()
		if !ok {
			continue
		}
		names = append(names, name)

		var parmH *object.Handle
		if parmsH != nil && !parmsH.IsNull() {
			if pn, ok := parmsH.ArrayLen(); ok {
				if i < pn {
					parmH, _ = parmsH.ArrayGet(i)
				}
			} else if i == 0 {
				parmH = parmsH
			}
		}
		paramsList = append(paramsList, decodeParms(parmH))
	}
	return names, paramsList
}

// decodeParms converts a /DecodeParms dictionary Handle (possibly nil or
// null) into codec.Params, filling in PDF defaults for absent entries.
func decodeParms(h *object.Handle) codec.Params {
	p := codec.DefaultParams()
	if h == nil || h.IsNull() {
		return p
	}
	if v, ok := h.Get("Predictor"); ok {
		if n, ok := v.AsInteger(); ok {
			p.Predictor = int(n)
		}
	}
	if v, ok := h.Get("Colors"); ok {
		if n, ok := v.AsInteger(); ok {
			p.Colors = int(n)
		}
	}
	if v, ok := h.Get("BitsPerComponent"); ok {
		if n, ok := v.AsInteger(); ok {
			p.BitsPerComponent = int(n)
		}
	}
	if v, ok := h.Get("Columns"); ok {
		if n, ok := v.AsInteger(); ok {
			p.Columns = int(n)
		}
	}
	if v, ok := h.Get("EarlyChange"); ok {
		if n, ok := v.AsInteger(); ok {
			p.EarlyChange = int(n)
			p.HasEarlyChange = true
		}
	}
	return p
}
