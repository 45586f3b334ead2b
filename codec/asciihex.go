package codec

import (
	"bytes"

	"github.com/qpdf-go/qpdfcore/pipeline"
)

// asciiHexFilter implements /ASCIIHexDecode: whitespace-tolerant hex text,
// terminated by '>'.
type asciiHexFilter struct{}

func init() { register(asciiHexFilter{}) }

func (asciiHexFilter) Name() string         { return NameASCIIHex }
func (asciiHexFilter) RequiredLevel() Level { return LevelGeneralized }

func (asciiHexFilter) Decoder(next pipeline.Pipeline, _ Params) (pipeline.Pipeline, error) {
	return &asciiHexDecoder{Base: pipeline.NewBase(next)}, nil
}

func (asciiHexFilter) Encoder(next pipeline.Pipeline, _ Params) (pipeline.Pipeline, error) {
	return &asciiHexEncoder{Base: pipeline.NewBase(next)}, nil
}

type asciiHexDecoder struct {
	pipeline.Base
	buf bytes.Buffer
}

func (d *asciiHexDecoder) Write(p []byte) (int, error) { return d.buf.Write(p) }

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

func (d *asciiHexDecoder) Finish() error {
	if d.Finished() {
		return nil
	}
	in := d.buf.Bytes()
	var out bytes.Buffer
	var hi byte
	haveHi := false
	for _, c := range in {
		if c == '>' {
			break
		}
		v, ok := hexVal(c)
		if !ok {
			continue
		}
		if !haveHi {
			hi = v
			haveHi = true
		} else {
			out.WriteByte(hi<<4 | v)
			haveHi = false
		}
	}
	if haveHi {
		out.WriteByte(hi << 4)
	}
	if d.Next() != nil {
		if _, err := d.Next().Write(out.Bytes()); err != nil {
			return err
		}
	}
	return d.Base.Finish()
}

type asciiHexEncoder struct {
	pipeline.Base
	buf bytes.Buffer
}

func (e *asciiHexEncoder) Write(p []byte) (int, error) { return e.buf.Write(p) }

const hexDigits = "0123456789ABCDEF"

func (e *asciiHexEncoder) Finish() error {
	if e.Finished() {
		return nil
	}
	in := e.buf.Bytes()
	out := make([]byte, 0, len(in)*2+1)
	for _, b := range in {
		out = append(out, hexDigits[b>>4], hexDigits[b&0xf])
	}
	out = append(out, '>')
	if e.Next() != nil {
		if _, err := e.Next().Write(out); err != nil {
			return err
		}
	}
	return e.Base.Finish()
}
