package resolve

import (
	"bytes"

	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/pdferr"
	"github.com/qpdf-go/qpdfcore/source"
	"github.com/qpdf-go/qpdfcore/token"
	"github.com/qpdf-go/qpdfcore/xref"
)

// osMember is one entry of an object stream's integer prefix table: object
// id plus its byte offset from the start of the stream's decoded body (the
// table's /First-relative value with /First added) ("decode its integer
// prefix table into (id, offset) pairs").
type osMember struct {
	id     uint32
	offset int64
}

// materializeObjectStream resolves, decodes, and parses the prefix table
// of the object stream numbered streamObjID, caching the result so a
// stream with many compressed members is only decoded once. Returns the
// member table and the stream's decoded bytes (offsets in the table are
// relative to the start of those bytes, i.e. /First is already added).
func (r *Resolver) materializeObjectStream(streamObjID uint32) ([]osMember, []byte, error) {
	if decoded, ok := r.objStreamCache[streamObjID]; ok {
		return r.objStreams[streamObjID], decoded, nil
	}

	if r.decoding[streamObjID] {
		return nil, nil, pdferr.New(pdferr.CodeDamagedPDF, "nested object stream materialisation for object %d", streamObjID)
	}

	entry, ok := r.table.Lookup(object.ObjGen{ID: streamObjID, Gen: 0})
	if !ok || entry.Type != xref.TypeOffset {
		return nil, nil, pdferr.New(pdferr.CodeDamagedPDF, "object stream %d is not a direct offset entry", streamObjID)
	}

	r.decoding[streamObjID] = true
	defer delete(r.decoding, streamObjID)

	p := r.newParser()
	_, h, err := p.ParseIndirectObjectAt(entry.Offset)
	if err != nil {
		return nil, nil, err
	}
	if h.Kind() != object.KindStream {
		return nil, nil, pdferr.New(pdferr.CodeDamagedPDF, "object %d referenced as an object stream is not a stream", streamObjID)
	}

	dict, _ := h.Value().StreamDict()
	nH, ok := dict.Get("N")
	if !ok {
		return nil, nil, pdferr.New(pdferr.CodeDamagedPDF, "object stream %d missing /N", streamObjID)
	}
	n, _ := nH.AsInteger()
	firstH, ok := dict.Get("First")
	if !ok {
		return nil, nil, pdferr.New(pdferr.CodeDamagedPDF, "object stream %d missing /First", streamObjID)
	}
	first, _ := firstH.AsInteger()

	streamSrc, _ := h.Value().StreamSource()
	var buf bytes.Buffer
	if err := streamSrc.PipeRaw(&buf); err != nil {
		return nil, nil, err
	}
	decoded, err := xref.DecodeStream(dict, buf.Bytes())
	if err != nil {
		return nil, nil, err
	}

	header := source.NewMemory(r.context(), decoded)
	members := make([]osMember, 0, n)
	for i := int64(0); i < n; i++ {
		idTok, err := token.ReadToken(header, r.context(), true, 0)
		if err != nil {
			return nil, nil, err
		}
		offTok, err := token.ReadToken(header, r.context(), true, 0)
		if err != nil {
			return nil, nil, err
		}
		if idTok.Kind != token.Integer || offTok.Kind != token.Integer {
			r.warnf(object.ObjGen{ID: streamObjID}, 0, "object stream %d has a malformed prefix table entry at index %d", streamObjID, i)
			break
		}
		members = append(members, osMember{
			id:     parseUintToken(idTok.Value),
			offset: first + int64(parseUintToken(offTok.Value)),
		})
	}

	r.objStreams[streamObjID] = members
	r.objStreamCache[streamObjID] = decoded
	return members, decoded, nil
}

func parseUintToken(b []byte) uint32 {
	var n uint32
	for _, c := range b {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + uint32(c-'0')
	}
	return n
}
