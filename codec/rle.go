package codec

import (
	"bytes"

	"github.com/qpdf-go/qpdfcore/pipeline"
)

// rleFilter implements /RunLengthDecode: the PDF byte-oriented RLE scheme
// (length byte 0-127 => copy next length+1 literal bytes; 129-255 => repeat
// the following byte 257-length times; 128 => EOD).
type rleFilter struct{}

func init() { register(rleFilter{}) }

func (rleFilter) Name() string         { return NameRunLength }
func (rleFilter) RequiredLevel() Level { return LevelGeneralized }

func (rleFilter) Decoder(next pipeline.Pipeline, _ Params) (pipeline.Pipeline, error) {
	return &rleDecoder{Base: pipeline.NewBase(next)}, nil
}

func (rleFilter) Encoder(next pipeline.Pipeline, _ Params) (pipeline.Pipeline, error) {
	return &rleEncoder{Base: pipeline.NewBase(next)}, nil
}

type rleDecoder struct {
	pipeline.Base
	buf bytes.Buffer
}

func (d *rleDecoder) Write(p []byte) (int, error) { return d.buf.Write(p) }

func (d *rleDecoder) Finish() error {
	if d.Finished() {
		return nil
	}
	in := d.buf.Bytes()
	var out bytes.Buffer
	for i := 0; i < len(in); {
		length := in[i]
		i++
		switch {
		case length == 128:
			i = len(in) // EOD
		case length < 128:
			n := int(length) + 1
			if i+n > len(in) {
				n = len(in) - i
			}
			out.Write(in[i : i+n])
			i += n
		default:
			if i >= len(in) {
				break
			}
			count := 257 - int(length)
			b := in[i]
			i++
			for k := 0; k < count; k++ {
				out.WriteByte(b)
			}
		}
	}
	if d.Next() != nil {
		if _, err := d.Next().Write(out.Bytes()); err != nil {
			return err
		}
	}
	return d.Base.Finish()
}

type rleEncoder struct {
	pipeline.Base
	buf bytes.Buffer
}

func (e *rleEncoder) Write(p []byte) (int, error) { return e.buf.Write(p) }

// Finish encodes the accumulated bytes using literal runs only (length <=
// 128 bytes per run); this is a valid, simple RunLengthEncode producer even
// though it never emits repeat runs.
func (e *rleEncoder) Finish() error {
	if e.Finished() {
		return nil
	}
	in := e.buf.Bytes()
	var out bytes.Buffer
	for i := 0; i < len(in); {
		n := len(in) - i
		if n > 128 {
			n = 128
		}
		out.WriteByte(byte(n - 1))
		out.Write(in[i : i+n])
		i += n
	}
	out.WriteByte(128)
	if e.Next() != nil {
		if _, err := e.Next().Write(out.Bytes()); err != nil {
			return err
		}
	}
	return e.Base.Finish()
}
