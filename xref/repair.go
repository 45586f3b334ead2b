package xref

import (
	"bytes"

	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/parser"
	"github.com/qpdf-go/qpdfcore/source"
	"github.com/qpdf-go/qpdfcore/token"
)

// repairScan brute-force scans the whole file for "N G obj" occurrences:
// every token is read in sequence (allowing bad tokens rather than
// aborting on garbage bytes), tracking the last two Integer tokens seen
// back-to-back; a following "obj" word commits them as an object header at
// the offset the first of the two started at. When more than one header
// names the same object id, the entry with the higher generation wins.
func repairScan(src source.Source, ctx string) (map[uint32]Entry, error) {
	entries := make(map[uint32]Entry)

	if err := src.Rewind(); err != nil {
		return nil, err
	}

	type windowTok struct {
		offset int64
		val    []byte
	}
	var window []windowTok

	for {
		tok, terr := token.ReadToken(src, ctx, true, 0)
		if terr != nil {
			return nil, terr
		}
		if tok.Kind == token.EOF {
			break
		}
		switch {
		case tok.Kind == token.Integer:
			// The source sits just past the integer's last digit.
			end, err := src.Tell()
			if err != nil {
				return nil, err
			}
			window = append(window, windowTok{offset: end - int64(len(tok.Value)), val: append([]byte(nil), tok.Value...)})
			if len(window) > 2 {
				window = window[len(window)-2:]
			}
		case tok.IsWord("obj") && len(window) == 2:
			id := parseUint(window[0].val)
			gen := uint16(parseUint(window[1].val))
			if existing, ok := entries[id]; !ok || gen >= existing.Gen {
				entries[id] = Entry{Type: TypeOffset, Offset: window[0].offset, Gen: gen}
			}
			window = nil
		default:
			window = nil
		}
	}

	return entries, nil
}

// enumerateObjectStreamMembers parses the object stream whose header was
// found at offset by repairScan and installs a TypeCompressed entry for
// each object it contains (: "a recovery pass may detect an object
// stream and then enumerate its contained objects by parsing its prefix
// integer table"). Entries it produces never overwrite ones already
// present, so a top-level "N G obj" header recovered directly by the scan
// still wins over a stale compressed reference to the same id.
func enumerateObjectStreamMembers(ctx string, newParser func() *parser.Parser, streamObjID uint32, offset int64, into map[uint32]Entry) error {
	p := newParser()
	_, h, err := p.ParseIndirectObjectAt(offset)
	if err != nil {
		return err
	}
	if h.Kind() != object.KindStream {
		return nil
	}
	dict, ok := h.Value().StreamDict()
	if !ok {
		return nil
	}
	typeH, ok := dict.Get("Type")
	if !ok {
		return nil
	}
	if name, ok := typeH.AsName(); !ok || name != "ObjStm" {
		return nil
	}
	nH, ok := dict.Get("N")
	if !ok {
		return nil
	}
	n, _ := nH.AsInteger()

	src, ok := h.Value().StreamSource()
	if !ok {
		return nil
	}
	var buf bytes.Buffer
	if err := src.PipeRaw(&buf); err != nil {
		return err
	}
	decoded, err := decodeStreamData(dict, buf.Bytes())
	if err != nil {
		return err
	}

	header := source.NewMemory(ctx, decoded)
	for i := int64(0); i < n; i++ {
		idTok, err := token.ReadToken(header, ctx, true, 0)
		if err != nil {
			return err
		}
		offTok, err := token.ReadToken(header, ctx, true, 0)
		if err != nil {
			return err
		}
		if idTok.Kind != token.Integer || offTok.Kind != token.Integer {
			break
		}
		id := parseUint(idTok.Value)
		if _, exists := into[id]; exists {
			continue
		}
		into[id] = Entry{Type: TypeCompressed, StreamObj: streamObjID, StreamIndex: int(i)}
	}
	return nil
}
