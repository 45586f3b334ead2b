// Package config holds the process-wide and per-document configuration
// structs enumerated in spec , validated at construction time the way
// github.com/sassoftware/viya-pdf-xtract validates its Config: struct tags
// plus a single Validate() call, rather than hand-written field checks
// scattered through the constructor.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/qpdf-go/qpdfcore/codec"
)

// ObjectStreamMode selects how the writer treats object streams on output.
type ObjectStreamMode string

const (
	ObjectStreamsDisable  ObjectStreamMode = "disable"
	ObjectStreamsPreserve ObjectStreamMode = "preserve"
	ObjectStreamsGenerate ObjectStreamMode = "generate"
)

// StreamDataMode selects how the writer treats existing stream encodings.
type StreamDataMode string

const (
	StreamDataUncompress StreamDataMode = "uncompress"
	StreamDataPreserve   StreamDataMode = "preserve"
	StreamDataCompress   StreamDataMode = "compress"
)

// IDMode selects how the writer computes the trailer /ID.
type IDMode string

const (
	IDDeterministic IDMode = "deterministic"
	IDStatic        IDMode = "static"
	IDRandom        IDMode = "random"
)

// EncryptionMode selects the writer's encryption disposition.
type EncryptionMode string

const (
	EncryptionDisabled   EncryptionMode = "disabled"
	EncryptionPreserve   EncryptionMode = "preserve"
	EncryptionRegenerate EncryptionMode = "regenerate"
)

// Runtime holds process-level ceilings and limits, shared across every
// document opened in this process.
type Runtime struct {
	// MaxObjectDepth bounds recursive object-parse depth.
	MaxObjectDepth int `validate:"min=1"`
	// MaxConsecutiveErrors aborts a single object body's parse.
	MaxConsecutiveErrors int `validate:"min=1"`
	// MaxFilterChainLength caps chained filters per stream.
	MaxFilterChainLength int `validate:"min=1"`
	// MaxWarnings caps retained warnings per document; 0 means
	// unlimited.
	MaxWarnings int `validate:"min=0"`
	// MaxOpenFileDescriptors bounds the source.Registry LRU; 0 means
	// unlimited.
	MaxOpenFileDescriptors int `validate:"min=0"`
	// TokenMaxLen bounds a single tokeniser token's length.
	TokenMaxLen int `validate:"min=1"`

	FlateMemoryLimit     int `validate:"min=1"`
	DCTMemoryLimit       int `validate:"min=1"`
	PredictorMemoryLimit int `validate:"min=1"`
}

// NewDefaultRuntime returns the library's default process-level limits.
func NewDefaultRuntime() *Runtime {
	return &Runtime{
		MaxObjectDepth:         500,
		MaxConsecutiveErrors:   6,
		MaxFilterChainLength:   codec.MaxFilterChainLength,
		MaxWarnings:            1000,
		MaxOpenFileDescriptors: 32,
		TokenMaxLen:            65536,
		FlateMemoryLimit:       codec.DefaultFlateLimit,
		DCTMemoryLimit:         codec.DefaultDCTLimit,
		PredictorMemoryLimit:   codec.DefaultPredictorLimit,
	}
}

// Validate checks field constraints, returning the first violation found.
func (r *Runtime) Validate() error {
	return validator.New().Struct(r)
}

// ParserOptions controls how a single document is opened and how parse
// errors propagate.
type ParserOptions struct {
	// AllowRepair enables brute-force xref reconstruction when the
	// trailer/xref chain cannot be parsed cleanly.
	AllowRepair bool
	// ForceRepair always runs repair, even when the xref parses cleanly
	// (useful for fixture generation and testing the repair path itself).
	ForceRepair bool
	// Password is tried as both user and owner password.
	Password string
	// DecodeLevel bounds how aggressively streams are decoded by default.
	DecodeLevel codec.Level
}

// DefaultParserOptions returns permissive defaults: repair on demand,
// generalized decoding.
func DefaultParserOptions() ParserOptions {
	return ParserOptions{AllowRepair: true, DecodeLevel: codec.LevelGeneralized}
}

// WriterOptions controls output generation.
type WriterOptions struct {
	ObjectStreams ObjectStreamMode `validate:"oneof=disable preserve generate"`
	StreamData    StreamDataMode   `validate:"oneof=uncompress preserve compress"`
	DecodeLevel   codec.Level
	// ObjectStreamThreshold is the target member count per assembled
	// object stream; default 100.
	ObjectStreamThreshold int `validate:"min=1"`
	NormalizeContentStreams bool
	Linearize               bool
	QDFMode                 bool
	IDMode                  IDMode `validate:"oneof=deterministic static random"`
	NewlineBeforeEndstream  bool
	PreserveUnreferenced    bool
	Encryption              EncryptionMode `validate:"oneof=disabled preserve regenerate"`

	// WriteTimeout is carried for a caller embedding the writer in a service
	// with its own deadline, mirroring sassoftware-pdf-xtract's
	// Config.WorkerTimeout field shape. The library itself is synchronous and
	// the writer does not read this field: a Write call is never abandoned.
	WriteTimeout time.Duration
}

// DefaultWriterOptions returns qpdf-equivalent defaults: preserve streams
// and object structure, classic xref unless object streams force a stream
// xref, random ID.
func DefaultWriterOptions() WriterOptions {
	return WriterOptions{
		ObjectStreams:         ObjectStreamsPreserve,
		StreamData:            StreamDataPreserve,
		DecodeLevel:           codec.LevelGeneralized,
		ObjectStreamThreshold: 100,
		IDMode:                IDRandom,
		Encryption:            EncryptionPreserve,
	}
}

// Validate checks field constraints, returning the first violation found.
func (w *WriterOptions) Validate() error {
	return validator.New().Struct(w)
}
