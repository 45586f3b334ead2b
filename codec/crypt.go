package codec

import "github.com/qpdf-go/qpdfcore/pipeline"

// cryptFilter implements /Crypt. Per the PDF spec, a Crypt filter entry only
// names which security-handler crypt filter decrypted the stream; the
// decryption itself happens in package stream (through a package crypt
// handler) before the filter chain runs, so this stage is always a
// passthrough here.
type cryptFilter struct{}

func init() { register(cryptFilter{}) }

func (cryptFilter) Name() string         { return NameCrypt }
func (cryptFilter) RequiredLevel() Level { return LevelGeneralized }

func (cryptFilter) Decoder(next pipeline.Pipeline, _ Params) (pipeline.Pipeline, error) {
	return &passthrough{Base: pipeline.NewBase(next)}, nil
}

func (cryptFilter) Encoder(next pipeline.Pipeline, _ Params) (pipeline.Pipeline, error) {
	return &passthrough{Base: pipeline.NewBase(next)}, nil
}
