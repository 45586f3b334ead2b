package codec

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/qpdf-go/qpdfcore/pipeline"
)

// flateFilter implements /FlateDecode. PDF streams are zlib-wrapped deflate
// (RFC 1950), so compress/zlib is used rather than the raw compress/flate
// codec.
type flateFilter struct{}

func init() { register(flateFilter{}) }

func (flateFilter) Name() string         { return NameFlate }
func (flateFilter) RequiredLevel() Level { return LevelGeneralized }

func (flateFilter) Decoder(next pipeline.Pipeline, params Params) (pipeline.Pipeline, error) {
	return &flateDecoder{Base: pipeline.NewBase(next), params: params, limit: DefaultFlateLimit}, nil
}

func (flateFilter) Encoder(next pipeline.Pipeline, params Params) (pipeline.Pipeline, error) {
	return &flateEncoder{Base: pipeline.NewBase(next), params: params}, nil
}

// flateDecoder buffers the compressed input and inflates it on Finish; a
// push-style zlib.NewReader over a live pipe would add goroutine lifecycle
// complexity the PDF decode path does not need, since whole streams are
// always decoded in one shot.
type flateDecoder struct {
	pipeline.Base
	params Params
	limit  int
	buf    bytes.Buffer
}

func (d *flateDecoder) Write(p []byte) (int, error) {
	if d.buf.Len()+len(p) > d.limit {
		return 0, &ErrMemoryLimit{Filter: d.Name(), Limit: d.limit}
	}
	return d.buf.Write(p)
}

func (d *flateDecoder) Name() string { return NameFlate }

func (d *flateDecoder) Finish() error {
	if d.Finished() {
		return nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(d.buf.Bytes()))
	if err != nil {
		return err
	}
	out, err := io.ReadAll(zr)
	if err != nil && len(out) == 0 {
		return err
	}
	out, err = applyPredictor(out, d.params)
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

// flateEncoder deflates written bytes and forwards the compressed result on
// Finish.
type flateEncoder struct {
	pipeline.Base
	params Params
	buf    bytes.Buffer
}

func (e *flateEncoder) Write(p []byte) (int, error) { return e.buf.Write(p) }

func (e *flateEncoder) Finish() error {
	if e.Finished() {
		return nil
	}
	in := e.buf.Bytes()
	var err error
	if e.params.Predictor > 1 {
		in, err = unapplyPredictorForEncode(in, e.params)
		if err != nil {
			return err
		}
	}
	var out bytes.Buffer
	zw := zlib.NewWriter(&out)
	if _, err := zw.Write(in); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	if e.Next() != nil {
		if _, werr := e.Next().Write(out.Bytes()); werr != nil {
			return werr
		}
	}
	return e.Base.Finish()
}

// applyPredictor reverses a PNG or TIFF predictor on already-decoded stream
// bytes, per /DecodeParms. Predictor values other than 1 (none), 2
// (TIFF), and 10-15 (PNG) are rejected.
func applyPredictor(data []byte, params Params) ([]byte, error) {
	if params.Predictor <= 1 {
		return data, nil
	}
	if !validPredictor(params.Predictor) {
		return nil, &errPredictor{"unsupported predictor value"}
	}
	columns := params.Columns
	if columns == 0 {
		columns = 1
	}
	colors := params.Colors
	if colors == 0 {
		colors = 1
	}
	if len(data) > DefaultPredictorLimit {
		return nil, &ErrMemoryLimit{Filter: "Predictor", Limit: DefaultPredictorLimit}
	}
	if params.Predictor == 2 {
		return unpredictTIFF(data, columns, colors)
	}
	return unpredictPNG(data, columns, colors)
}

// unapplyPredictorForEncode is the inverse operation used before
// compressing: it applies the PNG Sub filter (predictor 11) to raw samples,
// since this implementation only ever writes predictor 11 on encode.
func unapplyPredictorForEncode(data []byte, params Params) ([]byte, error) {
	columns := params.Columns
	if columns == 0 {
		columns = 1
	}
	colors := params.Colors
	if colors == 0 {
		colors = 1
	}
	if params.Predictor == 2 {
		return data, nil // TIFF re-encoding is not attempted; pass through raw.
	}
	return predictPNG(data, columns, colors)
}
