package codec

import "github.com/qpdf-go/qpdfcore/pipeline"

// unsupportedFilter registers a name as recognised but never decodable: the
// stream is reported as present and well-formed-enough to pass through the
// chain undecoded ("specific compression implementations for
// image-oriented filters are out of scope"). CCITTFax, JBIG2, and JPX are
// genuine codecs with large, fully separate implementations; qpdf itself
// treats them as opaque pass-through data it copies rather than
// re-compresses, which this mirrors.
type unsupportedFilter struct {
	name string
}

func init() {
	register(unsupportedFilter{NameCCITTFax})
	register(unsupportedFilter{NameJBIG2})
	register(unsupportedFilter{NameJPX})
}

func (u unsupportedFilter) Name() string         { return u.name }
func (u unsupportedFilter) RequiredLevel() Level { return LevelAll }

func (u unsupportedFilter) Decoder(next pipeline.Pipeline, _ Params) (pipeline.Pipeline, error) {
	return nil, &errUnsupportedFilter{u.name}
}

func (u unsupportedFilter) Encoder(next pipeline.Pipeline, _ Params) (pipeline.Pipeline, error) {
	return nil, &errUnsupportedFilter{u.name}
}

type errUnsupportedFilter struct{ name string }

func (e *errUnsupportedFilter) Error() string {
	return "codec: " + e.name + ": decoding this filter is not implemented"
}
