package object

import (
	"bytes"
	"io"

	"github.com/qpdf-go/qpdfcore/source"
)

// StreamSource abstracts where a stream Value's undecoded bytes live (:
// "exactly one data source, chosen among (a) a range in the underlying
// input... (b) an in-memory byte buffer... (c) a caller-supplied byte
// producer... (d) an edit overlay of token filters"). (d) is not
// represented here and no package implements it: token.Filter is only an
// interface, and the stream engine pipes (a)/(b)/(c) without any overlay.
type StreamSource interface {
	// PipeRaw copies the undecoded bytes to w. Decryption (if the owning
	// document is encrypted) is the caller's responsibility, applied
	// before or while piping, per "applies decryption but not
	// filter decoding".
	PipeRaw(w io.Writer) error
	// Len reports the source's byte length if known without reading it;
	// ok is false when the length can only be known by piping (a
	// producer that hasn't run yet).
	Len() (n int64, ok bool)
}

// RangeSource is a stream backed by a byte range in an input.Source.
type RangeSource struct {
	Src    source.Source
	Offset int64
	Length int64
}

func (r *RangeSource) PipeRaw(w io.Writer) error {
	buf := make([]byte, 32*1024)
	remaining := r.Length
	pos := r.Offset
	for remaining > 0 {
		n := int64(len(buf))
		if n > remaining {
			n = remaining
		}
		read, err := r.Src.ReadAt(buf[:n], pos)
		if read > 0 {
			if _, werr := w.Write(buf[:read]); werr != nil {
				return werr
			}
		}
		pos += int64(read)
		remaining -= int64(read)
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		if read == 0 {
			break
		}
	}
	return nil
}

func (r *RangeSource) Len() (int64, bool) { return r.Length, true }

// BufferSource is a stream backed by an in-memory byte slice.
type BufferSource struct {
	Data []byte
}

func (b *BufferSource) PipeRaw(w io.Writer) error {
	_, err := w.Write(b.Data)
	return err
}

func (b *BufferSource) Len() (int64, bool) { return int64(len(b.Data)), true }

// Producer is a caller-supplied byte generator invoked on demand, possibly
// more than once; per "stream data providers" design note it must be
// idempotent, writing exactly the same bytes on every call for a given
// stream.
type Producer func(w io.Writer) error

// ProducerSource is a stream backed by a Producer.
type ProducerSource struct {
	Produce Producer
	// cachedLen is filled in lazily the first time PipeRaw runs, letting a
	// later Len() call report a size without re-invoking Produce.
	cachedLen int64
	knowLen   bool
}

func (p *ProducerSource) PipeRaw(w io.Writer) error {
	var buf bytes.Buffer
	if err := p.Produce(&buf); err != nil {
		return err
	}
	p.cachedLen = int64(buf.Len())
	p.knowLen = true
	_, err := w.Write(buf.Bytes())
	return err
}

func (p *ProducerSource) Len() (int64, bool) { return p.cachedLen, p.knowLen }
