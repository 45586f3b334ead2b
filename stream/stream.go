// Package stream implements the stream engine: it ties together a
// stream Value's data source (package object), the filter/codec framework
// (package codec), and document decryption (package crypt) into the two
// read operations every other component drives a stream through,
// pipe_raw and pipe_decoded, plus the in-place source rewrite
// replace_stream_data.
//
// Grounded on unidoc-unipdf/core/stream.go's NewEncoderFromStream/
// DecodeStream (filter-name dispatch, single vs multi-filter handling) and
// unidoc-unipdf/core/crypt.go's decrypt-then-decode ordering.
package stream

import (
	"bytes"
	"io"

	"github.com/qpdf-go/qpdfcore/codec"
	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/pdferr"
	"github.com/qpdf-go/qpdfcore/pipeline"
	"github.com/qpdf-go/qpdfcore/warnings"
)

// Decryptor is the subset of *crypt.Handler the stream engine needs,
// satisfied by a document that has already authenticated. A nil Decryptor
// means the document is unencrypted; callers pass one in only once a
// password has been accepted.
type Decryptor interface {
	ObjectKey(filterName string, og object.ObjGen) ([]byte, error)
	DecryptBytes(buf []byte, filterName string, objectKey []byte) ([]byte, error)
	EncryptBytes(buf []byte, filterName string, objectKey []byte) ([]byte, error)
	StreamFilterName() string
}

// dict returns h's stream dictionary. h must be a KindStream Handle.
func dict(h *object.Handle) (*object.Handle, error) {
	d, ok := h.Value().StreamDict()
	if !ok {
		return nil, pdferr.New(pdferr.CodeObject, "stream operation on a non-stream handle")
	}
	return d, nil
}

// decryptRaw runs the document decryption step on raw stream bytes, if dec
// is non-nil. It is a no-op for an unencrypted document, when the stream
// dictionary's /Type is /XRef (cross-reference streams are never
// encrypted, per ISO 32000-1 7.5.8.2), or when the stream's first filter is
// /Crypt naming the Identity crypt filter (the default when /Name is
// absent). A /Crypt filter naming another crypt filter is not selected per
// stream: the document's default stream filter is used.
func decryptRaw(d *object.Handle, raw []byte, dec Decryptor, og object.ObjGen) ([]byte, error) {
	if dec == nil {
		return raw, nil
	}
	if th, ok := d.Get("Type"); ok {
		if name, ok := th.AsName(); ok && name == "XRef" {
			return raw, nil
		}
	}
	if fh, ok := d.Get("Filter"); ok {
		parms, _ := d.Get("DecodeParms")
		if _, isArr := fh.ArrayLen(); isArr {
			fh, _ = fh.ArrayGet(0)
			parms, _ = parms.ArrayGet(0)
		}
		cf, hasName := parms.Get("Name")
		if name, _ := fh.AsName(); name == "Crypt" {
			if cfName, _ := cf.AsName(); !hasName || cfName == "Identity" {
				return raw, nil
			}
		}
	}
	key, err := dec.ObjectKey(dec.StreamFilterName(), og)
	if err != nil {
		return nil, err
	}
	return dec.DecryptBytes(append([]byte(nil), raw...), dec.StreamFilterName(), key)
}

// PipeRaw copies h's undecoded bytes to sink, applying document decryption
// but not filter decoding ("pipe_raw(sink): copy the undecoded bytes
// to sink; applies decryption but not filter decoding"). og identifies h's
// own object number/generation, needed to derive its per-object key.
func PipeRaw(h *object.Handle, sink io.Writer, dec Decryptor, og object.ObjGen) error {
	d, err := dict(h)
	if err != nil {
		return err
	}
	src, ok := h.Value().StreamSource()
	if !ok {
		return pdferr.New(pdferr.CodeObject, "stream operation on a non-stream handle")
	}

	var buf bytes.Buffer
	if err := src.PipeRaw(&buf); err != nil {
		return err
	}
	raw, err := decryptRaw(d, buf.Bytes(), dec, og)
	if err != nil {
		return err
	}
	_, err = sink.Write(raw)
	return err
}

// PipeDecoded applies h's declared filter chain, up to level, to its
// (decrypted) bytes and writes the result to sink ("pipe_decoded(sink,
// decode_level): apply the filter chain named by /Filter with parameters
// from /DecodeParms, up to the requested decode level"). If the chain is
// not filterable at level (an unknown filter, a bad predictor parameter, or
// too many chained filters), the raw decrypted bytes are written instead
// and a warning is recorded.
func PipeDecoded(h *object.Handle, sink io.Writer, level codec.Level, chainLimit int, dec Decryptor, og object.ObjGen, w *warnings.List, file string) error {
	if chainLimit <= 0 {
		chainLimit = codec.MaxFilterChainLength
	}
	d, err := dict(h)
	if err != nil {
		return err
	}
	src, ok := h.Value().StreamSource()
	if !ok {
		return pdferr.New(pdferr.CodeObject, "stream operation on a non-stream handle")
	}

	var rawBuf bytes.Buffer
	if err := src.PipeRaw(&rawBuf); err != nil {
		return err
	}
	raw, err := decryptRaw(d, rawBuf.Bytes(), dec, og)
	if err != nil {
		return err
	}

	chain, reason := Filterability(d, level, chainLimit)
	if reason != "" {
		if w != nil {
			w.Addf(warnings.KindUnsupported, file, objLabel(og), -1, "stream not filterable at this decode level: %s", reason)
		}
		_, err := sink.Write(raw)
		return err
	}
	if len(chain) == 0 {
		_, err := sink.Write(raw)
		return err
	}

	out := pipeline.NewBufferSink()
	var head pipeline.Pipeline = out
	for i := len(chain) - 1; i >= 0; i-- {
		f := chain[i].filter
		// /Crypt is registered in package codec as a passthrough stage: the
		// actual decryption already ran above, so this filter only ever
		// needs to be a no-op once reached ("Identity crypt filter
		// disables per-object decryption for that stream").
		stage, err := f.Decoder(head, chain[i].params)
		if err != nil {
			return pdferr.Wrap(pdferr.CodeDamagedPDF, err, "building decoder for filter %q", f.Name())
		}
		head = stage
	}
	if err := pipeline.Run(head, raw); err != nil {
		return pdferr.Wrap(pdferr.CodeDamagedPDF, err, "decoding stream")
	}
	_, err = sink.Write(out.Bytes())
	return err
}

func objLabel(og object.ObjGen) string {
	return "object " + itoa(int64(og.ID)) + " " + itoa(int64(og.Gen))
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
