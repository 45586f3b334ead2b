package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qpdf-go/qpdfcore/pipeline"
)

func roundTrip(t *testing.T, name string, params Params, data []byte) []byte {
	t.Helper()
	f, ok := Lookup(name)
	require.True(t, ok, "filter %s not registered", name)

	encSink := pipeline.NewBufferSink()
	enc, err := f.Encoder(encSink, params)
	require.NoError(t, err)
	require.NoError(t, pipeline.Run(enc, data))

	decSink := pipeline.NewBufferSink()
	dec, err := f.Decoder(decSink, params)
	require.NoError(t, err)
	require.NoError(t, pipeline.Run(dec, encSink.Bytes()))

	return decSink.Bytes()
}

func TestFlateRoundTrip(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog, repeatedly, repeatedly, repeatedly")
	got := roundTrip(t, NameFlate, DefaultParams(), data)
	require.Equal(t, data, got)
}

func TestLZWRoundTrip(t *testing.T) {
	data := []byte("aaaaaaaaaaaaaaaaaaabbbbbbbbbbbbbbbbbbbbbcccccccccccccccccccc")
	params := DefaultParams()
	got := roundTrip(t, NameLZW, params, data)
	require.Equal(t, data, got)
}

func TestRunLengthRoundTrip(t *testing.T) {
	data := []byte("xxxxxxxxxxxxxxxxxxxxxyz")
	got := roundTrip(t, NameRunLength, DefaultParams(), data)
	require.Equal(t, data, got)
}

func TestASCII85RoundTrip(t *testing.T) {
	data := []byte("Man is distinguished, not only by his reason")
	got := roundTrip(t, NameASCII85, DefaultParams(), data)
	require.Equal(t, data, got)
}

func TestASCII85ZeroGroup(t *testing.T) {
	data := []byte{0, 0, 0, 0, 1, 2, 3, 4}
	got := roundTrip(t, NameASCII85, DefaultParams(), data)
	require.Equal(t, data, got)
}

func TestASCIIHexRoundTrip(t *testing.T) {
	data := []byte{0x00, 0xff, 0x10, 0xab, 0x42}
	got := roundTrip(t, NameASCIIHex, DefaultParams(), data)
	require.Equal(t, data, got)
}

func TestFlateWithPNGPredictor(t *testing.T) {
	params := Params{Predictor: 11, Colors: 1, BitsPerComponent: 8, Columns: 4}
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	got := roundTrip(t, NameFlate, params, data)
	require.Equal(t, data, got)
}

func TestUnpredictTIFF(t *testing.T) {
	// Two 3-byte-wide, 1-color rows, horizontally differenced.
	encoded := []byte{10, 1, 1, 20, 1, 1}
	out, err := unpredictTIFF(encoded, 3, 1)
	require.NoError(t, err)
	require.Equal(t, []byte{10, 11, 12, 20, 21, 22}, out)
}

func TestLookupAbbreviations(t *testing.T) {
	f, ok := Lookup("Fl")
	require.True(t, ok)
	require.Equal(t, NameFlate, f.Name())

	f, ok = Lookup("AHx")
	require.True(t, ok)
	require.Equal(t, NameASCIIHex, f.Name())
}

func TestUnsupportedFilterReportsError(t *testing.T) {
	f, ok := Lookup(NameJBIG2)
	require.True(t, ok)
	_, err := f.Decoder(pipeline.NewBufferSink(), DefaultParams())
	require.Error(t, err)
}

func TestFlateMemoryLimit(t *testing.T) {
	f, _ := Lookup(NameFlate)
	dec, err := f.Decoder(pipeline.NewBufferSink(), DefaultParams())
	require.NoError(t, err)
	big := make([]byte, DefaultFlateLimit+1)
	_, err = dec.Write(big)
	require.Error(t, err)
}
