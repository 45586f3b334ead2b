package xref

import (
	"github.com/qpdf-go/qpdfcore/codec"
	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/pdferr"
	"github.com/qpdf-go/qpdfcore/pipeline"
)

// DecodeStream runs raw through dict's declared /Filter chain at
// codec.LevelSpecialized, exported for package resolve's object-stream
// materialisation, which needs the identical decode rules xref
// streams use.
func DecodeStream(dict *object.Handle, raw []byte) ([]byte, error) {
	return decodeStreamData(dict, raw)
}

// decodeStreamData runs raw through dict's declared /Filter chain at
// codec.LevelSpecialized (xref and object streams always need predictor
// reversal, never a lossy filter), returning the fully decoded bytes.
// A stream with no /Filter is returned unchanged.
func decodeStreamData(dict *object.Handle, raw []byte) ([]byte, error) {
	names, paramsList := filterChain(dict)
	if len(names) == 0 {
		return raw, nil
	}
	if len(names) > codec.MaxFilterChainLength {
		return nil, pdferr.New(pdferr.CodeDamagedPDF, "xref stream declares %d filters, exceeding the %d chain limit", len(names), codec.MaxFilterChainLength)
	}

	sink := pipeline.NewBufferSink()
	var head pipeline.Pipeline = sink
	for i := len(names) - 1; i >= 0; i-- {
		f, ok := codec.Lookup(names[i])
		if !ok {
			return nil, pdferr.New(pdferr.CodeUnsupported, "unknown filter %q on xref/object stream", names[i])
		}
		if f.RequiredLevel() > codec.LevelSpecialized {
			return nil, pdferr.New(pdferr.CodeUnsupported, "filter %q not supported for xref/object stream decoding", names[i])
		}
		dec, err := f.Decoder(head, paramsList[i])
		if err != nil {
			return nil, pdferr.Wrap(pdferr.CodeDamagedPDF, err, "building decoder for filter %q", names[i])
		}
		head = dec
	}
	if err := pipeline.Run(head, raw); err != nil {
		return nil, pdferr.Wrap(pdferr.CodeDamagedPDF, err, "decoding xref/object stream data")
	}
	return sink.Bytes(), nil
}

// filterChain reads dict's /Filter and /DecodeParms, normalising both the
// single-name and array forms into parallel slices.
func filterChain(dict *object.Handle) ([]string, []codec.Params) {
	filterH, ok := dict.Get("Filter")
	if !ok || filterH == nil || filterH.IsNull() {
		return nil, nil
	}
	parmsH, _ := dict.Get("DecodeParms")

	if name, ok := filterH.AsName(); ok {
		return []string{name}, []codec.Params{decodeParams(parmsH)}
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
		if parmsH != nil {
			if pn, ok := parmsH.ArrayLen(); ok && i < pn {
				parmH, _ = parmsH.ArrayGet(i)
			} else if i == 0 {
				parmH = parmsH
			}
		}
		paramsList = append(paramsList, decodeParams(parmH))
	}
	return names, paramsList
}

// decodeParams converts a /DecodeParms dictionary Handle (possibly nil or
// null) into codec.Params, filling in PDF defaults for absent entries.
func decodeParams(h *object.Handle) codec.Params {
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
