package writer

import (
	"bytes"
	"fmt"

	"github.com/qpdf-go/qpdfcore/codec"
	"github.com/qpdf-go/qpdfcore/config"
	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/pdferr"
	"github.com/qpdf-go/qpdfcore/pipeline"
	"github.com/qpdf-go/qpdfcore/stream"
	"github.com/qpdf-go/qpdfcore/warnings"
)

// streamRewrite records how a stream's /Filter entry should be emitted once
// streamBytesForOutput has decided what bytes it is returning.
type streamRewrite int

const (
	rewriteKeep  streamRewrite = iota // copy /Filter,/DecodeParms from the source verbatim
	rewriteClear                      // the returned bytes are raw; drop /Filter,/DecodeParms
	rewriteFlate                      // the returned bytes are flate-compressed; set /Filter FlateDecode
)

func (w *Writer) chainLimit() int {
	if w.in.Runtime != nil && w.in.Runtime.MaxFilterChainLength > 0 {
		return w.in.Runtime.MaxFilterChainLength
	}
	return codec.MaxFilterChainLength
}

// streamBytesForOutput produces h's output bytes (decrypted relative to the
// source, not yet re-encrypted for the destination) and how its filter
// entries should be rewritten, per config.WriterOptions.StreamData (// step 3 "compress mode re-encodes uncompressed streams with flate,
// preserve mode copies raw bytes/filter chain verbatim").
func (w *Writer) streamBytesForOutput(og object.ObjGen, h *object.Handle, dict *object.Handle) ([]byte, streamRewrite, error) {
	limit := w.chainLimit()

	switch w.opts.StreamData {
	case config.StreamDataUncompress:
		_, reason := stream.Filterability(dict, codec.LevelAll, limit)
		var buf bytes.Buffer
		if err := stream.PipeDecoded(h, &buf, codec.LevelAll, limit, w.in.Decryptor, og, w.in.Warnings, w.in.Context); err != nil {
			return nil, 0, err
		}
		if reason != "" {
			// Nothing was actually decoded; what came back is raw (but
			// decrypted) bytes, so the filter entry must stay as-is.
			return buf.Bytes(), rewriteKeep, nil
		}
		return buf.Bytes(), rewriteClear, nil

	case config.StreamDataCompress:
		_, reason := stream.Filterability(dict, codec.LevelAll, limit)
		if reason != "" {
			var buf bytes.Buffer
			if err := stream.PipeRaw(h, &buf, w.in.Decryptor, og); err != nil {
				return nil, 0, err
			}
			if w.in.Warnings != nil {
				w.in.Warnings.Addf(warnings.KindUnsupported, w.in.Context, og.String(), -1, "stream left as-is, cannot safely recompress: %s", reason)
			}
			return buf.Bytes(), rewriteKeep, nil
		}
		var decoded bytes.Buffer
		if err := stream.PipeDecoded(h, &decoded, codec.LevelAll, limit, w.in.Decryptor, og, w.in.Warnings, w.in.Context); err != nil {
			return nil, 0, err
		}
		compressed, err := flateCompress(decoded.Bytes())
		if err != nil {
			return nil, 0, err
		}
		return compressed, rewriteFlate, nil

	default: // StreamDataPreserve, or unset
		var buf bytes.Buffer
		if err := stream.PipeRaw(h, &buf, w.in.Decryptor, og); err != nil {
			return nil, 0, err
		}
		return buf.Bytes(), rewriteKeep, nil
	}
}

func flateCompress(raw []byte) ([]byte, error) {
	flate, ok := codec.Lookup(codec.NameFlate)
	if !ok {
		return nil, pdferr.New(pdferr.CodeLogic, "FlateDecode filter not registered")
	}
	sink := pipeline.NewBufferSink()
	enc, err := flate.Encoder(sink, codec.DefaultParams())
	if err != nil {
		return nil, err
	}
	if err := pipeline.Run(enc, raw); err != nil {
		return nil, err
	}
	return sink.Bytes(), nil
}

// writeObject emits one non-packed indirect object, "%d 0 obj ... endobj"
//. skipEncrypt is set for the /Encrypt dictionary itself,
// whose own strings must never be encrypted.
func (w *Writer) writeObject(out *bytes.Buffer, num int, og object.ObjGen, h *object.Handle, g *graph, plan *encryptionPlan, skipEncrypt bool) error {
	fmt.Fprintf(out, "%d 0 obj\n", num)

	ctx := &writeCtx{g: g, qdf: w.opts.QDFMode}
	if plan.handler != nil && !skipEncrypt {
		name := plan.handler.StringFilterName()
		key, err := plan.handler.ObjectKey(name, object.ObjGen{ID: uint32(num), Gen: 0})
		if err != nil {
			return err
		}
		ctx.cryptKey = key
		ctx.cryptName = name
		ctx.cryptHandler = plan.handler
	}

	if h.Kind() == object.KindStream {
		if err := w.writeStreamObject(out, og, h, num, ctx, plan, skipEncrypt); err != nil {
			return err
		}
	} else {
		if err := serializeValue(out, h, ctx); err != nil {
			return err
		}
	}
	out.WriteString("\nendobj\n")
	return nil
}

func (w *Writer) writeStreamObject(out *bytes.Buffer, og object.ObjGen, h *object.Handle, num int, ctx *writeCtx, plan *encryptionPlan, skipEncrypt bool) error {
	dict, ok := h.Value().StreamDict()
	if !ok {
		return pdferr.New(pdferr.CodeObject, "stream object has no dictionary")
	}
	data, rewrite, err := w.streamBytesForOutput(og, h, dict)
	if err != nil {
		return err
	}

	if plan.handler != nil && !skipEncrypt {
		name := plan.handler.StreamFilterName()
		key, err := plan.handler.ObjectKey(name, object.ObjGen{ID: uint32(num), Gen: 0})
		if err != nil {
			return err
		}
		data, err = plan.handler.EncryptBytes(append([]byte(nil), data...), name, key)
		if err != nil {
			return err
		}
	}

	newDict := object.NewDictionary()
	for _, k := range dict.Keys() {
		if k == "Filter" || k == "DecodeParms" || k == "Length" {
			continue
		}
		v, _ := dict.Get(k)
		_ = newDict.Put(k, v)
	}
	switch rewrite {
	case rewriteKeep:
		if f, ok := dict.Get("Filter"); ok {
			_ = newDict.Put("Filter", f)
		}
		if p, ok := dict.Get("DecodeParms"); ok {
			_ = newDict.Put("DecodeParms", p)
		}
	case rewriteFlate:
		_ = newDict.Put("Filter", object.NewName(codec.NameFlate))
	}
	_ = newDict.Put("Length", object.NewInteger(int64(len(data))))

	if err := serializeDict(out, newDict, ctx); err != nil {
		return err
	}
	out.WriteString("\nstream\n")
	out.Write(data)
	if w.opts.NewlineBeforeEndstream {
		out.WriteByte('\n')
	}
	out.WriteString("\nendstream")
	return nil
}

// writeObjectStreamContainer assembles and emits one object-stream container
//: a prefix integer table of (id, relative_offset) pairs
// followed by the concatenated, flate-compressed member bodies. Members are
// never individually encrypted; only the container's own bytes are.
func (w *Writer) writeObjectStreamContainer(out *bytes.Buffer, c objStreamContainer, g *graph, plan *encryptionPlan) error {
	ctx := &writeCtx{g: g, qdf: w.opts.QDFMode}

	var body bytes.Buffer
	offsets := make([]int64, len(c.members))
	for i, og := range c.members {
		offsets[i] = int64(body.Len())
		h := g.handles[og]
		if err := serializeValue(&body, h, ctx); err != nil {
			return err
		}
		body.WriteByte('\n')
	}

	var prefix bytes.Buffer
	for i, og := range c.members {
		fmt.Fprintf(&prefix, "%d %d ", g.renumber[og], offsets[i])
	}

	raw := append(append([]byte(nil), prefix.Bytes()...), body.Bytes()...)
	compressed, err := flateCompress(raw)
	if err != nil {
		return err
	}

	if plan.handler != nil {
		name := plan.handler.StreamFilterName()
		key, err := plan.handler.ObjectKey(name, object.ObjGen{ID: uint32(c.num), Gen: 0})
		if err != nil {
			return err
		}
		compressed, err = plan.handler.EncryptBytes(compressed, name, key)
		if err != nil {
			return err
		}
	}

	dict := object.NewDictionary()
	_ = dict.Put("Type", object.NewName("ObjStm"))
	_ = dict.Put("N", object.NewInteger(int64(len(c.members))))
	_ = dict.Put("First", object.NewInteger(int64(prefix.Len())))
	_ = dict.Put("Filter", object.NewName(codec.NameFlate))
	_ = dict.Put("Length", object.NewInteger(int64(len(compressed))))

	fmt.Fprintf(out, "%d 0 obj\n", c.num)
	if err := serializeDict(out, dict, ctx); err != nil {
		return err
	}
	out.WriteString("\nstream\n")
	out.Write(compressed)
	out.WriteString("\nendstream\nendobj\n")
	return nil
}
