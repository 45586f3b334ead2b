package codec

import (
	"bytes"
	"image/jpeg"

	"github.com/qpdf-go/qpdfcore/pipeline"
)

// dctFilter implements /DCTDecode by delegating JPEG decoding to the
// standard library, which is sufficient to validate and strip a DCT stream
// down to raw sample bytes. Re-encoding a stream to DCT is
// not attempted: callers that need a specific JPEG encoding should supply
// already-encoded image data and use the raw filter instead.
type dctFilter struct{}

func init() { register(dctFilter{}) }

func (dctFilter) Name() string         { return NameDCT }
func (dctFilter) RequiredLevel() Level { return LevelAll }

func (dctFilter) Decoder(next pipeline.Pipeline, _ Params) (pipeline.Pipeline, error) {
	return &dctDecoder{Base: pipeline.NewBase(next), limit: DefaultDCTLimit}, nil
}

func (dctFilter) Encoder(_ pipeline.Pipeline, _ Params) (pipeline.Pipeline, error) {
	return nil, &errPredictor{"DCTDecode re-encoding is not supported"}
}

type dctDecoder struct {
	pipeline.Base
	limit int
	buf   bytes.Buffer
}

func (d *dctDecoder) Write(p []byte) (int, error) {
	if d.buf.Len()+len(p) > d.limit {
		return 0, &ErrMemoryLimit{Filter: d.Name(), Limit: d.limit}
	}
	return d.buf.Write(p)
}

func (d *dctDecoder) Name() string { return NameDCT }

func (d *dctDecoder) Finish() error {
	if d.Finished() {
		return nil
	}
	img, err := jpeg.Decode(bytes.NewReader(d.buf.Bytes()))
	if err != nil {
		return err
	}
	bounds := img.Bounds()
	out := make([]byte, 0, bounds.Dx()*bounds.Dy()*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			out = append(out, byte(r>>8), byte(g>>8), byte(b>>8))
		}
	}
	if len(out) > d.limit {
		return &ErrMemoryLimit{Filter: d.Name(), Limit: d.limit}
	}
	if d.Next() != nil {
		if _, werr := d.Next().Write(out); werr != nil {
			return werr
		}
	}
	return d.Base.Finish()
}
