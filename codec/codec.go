// Package codec implements the stream filter chain and the pluggable codec
// framework it runs on, built directly on top of package pipeline.
// Each filter (flate, lzw, rle, ascii85, asciihex, dct, and crypt) is a
// Pipeline stage registered under its PDF /Filter name. The PNG/TIFF
// predictors are not registered filters: the flate and lzw stages apply
// them from /DecodeParms.
package codec

import (
	"fmt"

	"github.com/qpdf-go/qpdfcore/pipeline"
)

// Level is the decode aggressiveness requested by a caller. Levels
// are monotonic: a filter applies only when its RequiredLevel() is <= the
// requested Level.
type Level int

const (
	// LevelNone decodes nothing; only raw bytes are ever returned.
	LevelNone Level = iota
	// LevelGeneralized reverses flate, lzw, rle, asciihex, ascii85, and the
	// identity crypt filter.
	LevelGeneralized
	// LevelSpecialized additionally reverses predictors (PNG/TIFF) and
	// other lossless-but-structural transforms.
	LevelSpecialized
	// LevelAll additionally reverses lossy filters (dct, jbig2, jpx).
	LevelAll
)

// Params carries the subset of /DecodeParms that filters need. It is a
// plain struct rather than a reference to the object model so package codec
// has no dependency on package object: the filter chain is a pluggable
// component the object/stream layer drives, not the other way around.
type Params struct {
	// Predictor, Colors, BitsPerComponent, Columns are PNG/TIFF predictor
	// parameters.
	Predictor        int
	Colors           int
	BitsPerComponent int
	Columns          int
	// EarlyChange is the LZW EarlyChange parameter (0 or 1, default 1).
	EarlyChange int
	// HasEarlyChange records whether EarlyChange was present in
	// /DecodeParms, since 0 and "absent" are different PDF states.
	HasEarlyChange bool
}

// DefaultParams returns the PDF-default parameter values.
func DefaultParams() Params {
	return Params{Predictor: 1, Colors: 1, BitsPerComponent: 8, Columns: 1, EarlyChange: 1}
}

// Filter is a named, pluggable stream transform. Implementations
// wrap a downstream pipeline.Pipeline. The flate decoder (on its compressed
// input), the dct decoder and the predictors refuse with an ErrMemoryLimit
// once their default ceiling would be exceeded; the lzw, rle, ascii85 and
// asciihex stages and all encoders buffer their input without a limit.
type Filter interface {
	// Name is the canonical /Filter name, e.g. "FlateDecode".
	Name() string

	// RequiredLevel is the minimum decode level at which this filter may
	// be applied.
	RequiredLevel() Level

	// Decoder returns a pipeline.Pipeline that decodes bytes written to it,
	// forwarding decoded output to next.
	Decoder(next pipeline.Pipeline, params Params) (pipeline.Pipeline, error)

	// Encoder returns a pipeline.Pipeline that encodes bytes written to it,
	// forwarding encoded output to next. Not every filter supports
	// encoding (e.g. DCT re-encoding is not attempted); such filters
	// return an error naming themselves.
	Encoder(next pipeline.Pipeline, params Params) (pipeline.Pipeline, error)
}

// registry is the process-level table of recognised filters, populated by
// each codec file's init(). This mirrors the single "filter abbreviation
// table" the source keeps as global state: one
// process-wide registry, populated once at start-up, consulted per document
// rather than duplicated per document.
var registry = map[string]Filter{}

func register(f Filter) {
	registry[f.Name()] = f
}

// Lookup returns the registered Filter for name, trying PDF's standard
// abbreviations (AHx, A85, LZW, Fl, RL, CCF, DCT) as well as full names.
func Lookup(name string) (Filter, bool) {
	if f, ok := registry[name]; ok {
		return f, true
	}
	if full, ok := abbreviations[name]; ok {
		f, ok := registry[full]
		return f, ok
	}
	return nil, false
}

var abbreviations = map[string]string{
	"AHx": NameASCIIHex,
	"A85": NameASCII85,
	"LZW": NameLZW,
	"Fl":  NameFlate,
	"RL":  NameRunLength,
	"CCF": NameCCITTFax,
	"DCT": NameDCT,
}

// ErrMemoryLimit is wrapped by filters that refuse to keep decoding once
// their configured working-set ceiling would be exceeded.
type ErrMemoryLimit struct {
	Filter string
	Limit  int
}

func (e *ErrMemoryLimit) Error() string {
	return fmt.Sprintf("codec: %s exceeded its %d-byte memory limit", e.Filter, e.Limit)
}

// Filter name constants, matching the PDF spec's /Filter values.
const (
	NameFlate     = "FlateDecode"
	NameLZW       = "LZWDecode"
	NameRunLength = "RunLengthDecode"
	NameASCII85   = "ASCII85Decode"
	NameASCIIHex  = "ASCIIHexDecode"
	NameCCITTFax  = "CCITTFaxDecode"
	NameDCT       = "DCTDecode"
	NameJBIG2     = "JBIG2Decode"
	NameJPX       = "JPXDecode"
	NameCrypt     = "Crypt"
	NameRaw       = "Raw"
)

// Default per-filter memory ceilings: flate's working set, dct's
// decoded-image ceiling, and the predictors' row-buffer ceiling.
const (
	DefaultFlateLimit     = 200 * 1024
	DefaultDCTLimit       = 100 * 1024 * 1024
	DefaultPredictorLimit = 1024 * 1024
)

// MaxFilterChainLength is the default cap on the number of filters that may
// be chained on a single stream: beyond this, the stream is treated
// as non-filterable.
const MaxFilterChainLength = 25
