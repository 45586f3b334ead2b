package codec

import (
	"bytes"
	lzw0 "compress/lzw"

	lzw1 "golang.org/x/image/tiff/lzw"

	"github.com/qpdf-go/qpdfcore/pipeline"
)

// lzwFilter implements /LZWDecode. PDF's EarlyChange parameter selects
// between two incompatible LZW code-width-increase conventions, so two
// distinct decoder implementations are needed: compress/lzw only ever
// implements the postponed-increase (EarlyChange=0) variant, while
// golang.org/x/image/tiff/lzw implements the early-increase (EarlyChange=1,
// the PDF default) variant.
type lzwFilter struct{}

func init() { register(lzwFilter{}) }

func (lzwFilter) Name() string         { return NameLZW }
func (lzwFilter) RequiredLevel() Level { return LevelGeneralized }

func (lzwFilter) Decoder(next pipeline.Pipeline, params Params) (pipeline.Pipeline, error) {
	return &lzwDecoder{Base: pipeline.NewBase(next), params: params}, nil
}

func (lzwFilter) Encoder(next pipeline.Pipeline, params Params) (pipeline.Pipeline, error) {
	return &lzwEncoder{Base: pipeline.NewBase(next), params: params}, nil
}

type lzwDecoder struct {
	pipeline.Base
	params Params
	buf    bytes.Buffer
}

func (d *lzwDecoder) Write(p []byte) (int, error) { return d.buf.Write(p) }

func (d *lzwDecoder) Finish() error {
	if d.Finished() {
		return nil
	}
	earlyChange := 1
	if d.params.HasEarlyChange {
		earlyChange = d.params.EarlyChange
	}

	var out bytes.Buffer
	if earlyChange == 1 {
		r := lzw1.NewReader(bytes.NewReader(d.buf.Bytes()), lzw1.MSB, 8)
		defer r.Close()
		if _, err := out.ReadFrom(r); err != nil {
			return err
		}
	} else {
		r := lzw0.NewReader(bytes.NewReader(d.buf.Bytes()), lzw0.MSB, 8)
		defer r.Close()
		if _, err := out.ReadFrom(r); err != nil {
			return err
		}
	}

	decoded, err := applyPredictor(out.Bytes(), d.params)
	if err != nil {
		return err
	}
	if d.Next() != nil {
		if _, werr := d.Next().Write(decoded); werr != nil {
			return werr
		}
	}
	return d.Base.Finish()
}

// lzwEncoder only ever produces the EarlyChange=0 bitstream: it writes
// through compress/lzw, the postponed-increase variant described above.
// params.EarlyChange is not consulted, so the output decodes correctly only
// when the decoder is given EarlyChange 0.
type lzwEncoder struct {
	pipeline.Base
	params Params
	buf    bytes.Buffer
}

func (e *lzwEncoder) Write(p []byte) (int, error) { return e.buf.Write(p) }

func (e *lzwEncoder) Finish() error {
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
	w := lzw0.NewWriter(&out, lzw0.MSB, 8)
	if _, werr := w.Write(in); werr != nil {
		return werr
	}
	if werr := w.Close(); werr != nil {
		return werr
	}
	if e.Next() != nil {
		if _, werr := e.Next().Write(out.Bytes()); werr != nil {
			return werr
		}
	}
	return e.Base.Finish()
}
