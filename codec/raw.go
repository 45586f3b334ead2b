package codec

import "github.com/qpdf-go/qpdfcore/pipeline"

// rawFilter is the identity transform, used when a stream declares no
// /Filter or when decoding is requested at LevelNone.
type rawFilter struct{}

func init() { register(rawFilter{}) }

func (rawFilter) Name() string          { return NameRaw }
func (rawFilter) RequiredLevel() Level  { return LevelNone }

func (rawFilter) Decoder(next pipeline.Pipeline, _ Params) (pipeline.Pipeline, error) {
	return &passthrough{Base: pipeline.NewBase(next)}, nil
}

func (rawFilter) Encoder(next pipeline.Pipeline, _ Params) (pipeline.Pipeline, error) {
	return &passthrough{Base: pipeline.NewBase(next)}, nil
}

// passthrough forwards every write to Next unchanged.
type passthrough struct {
	pipeline.Base
}

func (p *passthrough) Write(b []byte) (int, error) {
	if p.Next() == nil {
		return len(b), nil
	}
	return p.Next().Write(b)
}
