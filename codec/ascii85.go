package codec

import (
	"bytes"

	"github.com/qpdf-go/qpdfcore/pipeline"
)

// ascii85Filter implements /ASCII85Decode, PDF's variant of Adobe's binary-
// to-text encoding (terminated by "~>", 'z' shorthand for an all-zero
// group). encoding/ascii85 in the standard library implements the same
// alphabet but not the PDF terminator convention, so decoding/encoding is
// done directly here.
type ascii85Filter struct{}

func init() { register(ascii85Filter{}) }

func (ascii85Filter) Name() string         { return NameASCII85 }
func (ascii85Filter) RequiredLevel() Level { return LevelGeneralized }

func (ascii85Filter) Decoder(next pipeline.Pipeline, _ Params) (pipeline.Pipeline, error) {
	return &ascii85Decoder{Base: pipeline.NewBase(next)}, nil
}

func (ascii85Filter) Encoder(next pipeline.Pipeline, _ Params) (pipeline.Pipeline, error) {
	return &ascii85Encoder{Base: pipeline.NewBase(next)}, nil
}

type ascii85Decoder struct {
	pipeline.Base
	buf bytes.Buffer
}

func (d *ascii85Decoder) Write(p []byte) (int, error) { return d.buf.Write(p) }

func (d *ascii85Decoder) Finish() error {
	if d.Finished() {
		return nil
	}
	out, err := decodeASCII85(d.buf.Bytes())
	if err != nil {
		return err
	}
	if d.Next() != nil {
		if _, werr := d.Next().Write(out); werr != nil {
			return werr
		}
	}
	return d.Base.Finish()
}

func decodeASCII85(in []byte) ([]byte, error) {
	var out bytes.Buffer
	var group [5]byte
	n := 0
	for i := 0; i < len(in); i++ {
		c := in[i]
		switch {
		case c == '~':
			goto done
		case c == 'z' && n == 0:
			out.Write([]byte{0, 0, 0, 0})
			continue
		case c <= ' ':
			continue
		case c < '!' || c > 'u':
			return nil, &errPredictor{"invalid ASCII85 byte"}
		}
		group[n] = c - '!'
		n++
		if n == 5 {
			writeASCII85Group(&out, group[:], 5)
			n = 0
		}
	}
done:
	if n > 0 {
		for i := n; i < 5; i++ {
			group[i] = 84
		}
		writeASCII85Group(&out, group[:], n)
	}
	return out.Bytes(), nil
}

func writeASCII85Group(out *bytes.Buffer, group []byte, n int) {
	var val uint32
	for _, g := range group {
		val = val*85 + uint32(g)
	}
	var b [4]byte
	b[0] = byte(val >> 24)
	b[1] = byte(val >> 16)
	b[2] = byte(val >> 8)
	b[3] = byte(val)
	out.Write(b[:n-1])
}

type ascii85Encoder struct {
	pipeline.Base
	buf bytes.Buffer
}

func (e *ascii85Encoder) Write(p []byte) (int, error) { return e.buf.Write(p) }

func (e *ascii85Encoder) Finish() error {
	if e.Finished() {
		return nil
	}
	in := e.buf.Bytes()
	var out bytes.Buffer
	for i := 0; i < len(in); i += 4 {
		n := len(in) - i
		if n > 4 {
			n = 4
		}
		var group [4]byte
		copy(group[:], in[i:i+n])
		val := uint32(group[0])<<24 | uint32(group[1])<<16 | uint32(group[2])<<8 | uint32(group[3])
		if n == 4 && val == 0 {
			out.WriteByte('z')
			continue
		}
		var digits [5]byte
		for j := 4; j >= 0; j-- {
			digits[j] = byte(val%85) + '!'
			val /= 85
		}
		out.Write(digits[:n+1])
	}
	out.Write([]byte("~>"))
	if e.Next() != nil {
		if _, err := e.Next().Write(out.Bytes()); err != nil {
			return err
		}
	}
	return e.Base.Finish()
}
