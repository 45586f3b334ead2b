package stream

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qpdf-go/qpdfcore/codec"
	"github.com/qpdf-go/qpdfcore/crypt"
	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/warnings"
)

func zlibCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newStream(t *testing.T, dict *object.Handle, data []byte) *object.Handle {
	t.Helper()
	return object.NewStream(dict, &object.BufferSource{Data: data})
}

func TestPipeRawNoEncryption(t *testing.T) {
	dict := object.NewDictionary()
	h := newStream(t, dict, []byte("raw stream bytes"))

	var out bytes.Buffer
	err := PipeRaw(h, &out, nil, object.ObjGen{ID: 1, Gen: 0})
	require.NoError(t, err)
	require.Equal(t, "raw stream bytes", out.String())
}

func TestPipeDecodedFlate(t *testing.T) {
	plain := []byte("some content stream operators here")
	dict := object.NewDictionary()
	dict.Put("Filter", object.NewName(codec.NameFlate))
	h := newStream(t, dict, zlibCompress(t, plain))

	var out bytes.Buffer
	err := PipeDecoded(h, &out, codec.LevelGeneralized, 0, nil, object.ObjGen{ID: 2, Gen: 0}, nil, "")
	require.NoError(t, err)
	require.Equal(t, plain, out.Bytes())
}

func TestPipeDecodedUnknownFilterFallsBackRaw(t *testing.T) {
	raw := []byte("opaque bytes under an unrecognised filter")
	dict := object.NewDictionary()
	dict.Put("Filter", object.NewName("WeirdDecode"))
	h := newStream(t, dict, raw)

	w := warnings.NewList(0)
	var out bytes.Buffer
	err := PipeDecoded(h, &out, codec.LevelGeneralized, 0, nil, object.ObjGen{ID: 3, Gen: 0}, w, "test.pdf")
	require.NoError(t, err)
	require.Equal(t, raw, out.Bytes())
	require.Equal(t, 1, w.Total())
}

func TestPipeDecodedChainTooLong(t *testing.T) {
	raw := []byte("bytes")
	dict := object.NewDictionary()
	names := make([]*object.Handle, 30)
	for i := range names {
		names[i] = object.NewName(codec.NameASCIIHex)
	}
	dict.Put("Filter", object.NewArray(names...))
	h := newStream(t, dict, raw)

	w := warnings.NewList(0)
	var out bytes.Buffer
	err := PipeDecoded(h, &out, codec.LevelGeneralized, 0, nil, object.ObjGen{ID: 4, Gen: 0}, w, "test.pdf")
	require.NoError(t, err)
	require.Equal(t, raw, out.Bytes())
	require.Equal(t, 1, w.Total())
}

func TestPipeDecodedWithEncryption(t *testing.T) {
	d := crypt.NewDict(4, 4, "AESV2", crypt.PermPrint, true, []byte("0123456789012345"))
	h, err := crypt.NewHandler(d)
	require.NoError(t, err)
	_, err = h.GenerateParams([]byte("owner"), []byte("user"))
	require.NoError(t, err)

	og := object.ObjGen{ID: 9, Gen: 0}
	key, err := h.ObjectKey(h.StreamFilterName(), og)
	require.NoError(t, err)

	plain := []byte("encrypted content stream data")
	enc, err := h.EncryptBytes(append([]byte(nil), plain...), h.StreamFilterName(), key)
	require.NoError(t, err)

	dict := object.NewDictionary()
	stm := newStream(t, dict, enc)

	var out bytes.Buffer
	err = PipeDecoded(stm, &out, codec.LevelGeneralized, 0, h, og, nil, "")
	require.NoError(t, err)
	require.Equal(t, plain, out.Bytes())
}

func TestReplaceStreamData(t *testing.T) {
	dict := object.NewDictionary()
	dict.Put("Filter", object.NewName(codec.NameASCIIHex))
	dict.Put("Length", object.NewInteger(100))
	stm := newStream(t, dict, []byte("old data"))

	newSrc := &object.BufferSource{Data: []byte("brand new data")}
	err := ReplaceStreamData(stm, newSrc, []FilterSpec{{Name: codec.NameFlate}})
	require.NoError(t, err)

	d, ok := stm.Value().StreamDict()
	require.True(t, ok)
	nameH, ok := d.Get("Filter")
	require.True(t, ok)
	name, _ := nameH.AsName()
	require.Equal(t, codec.NameFlate, name)

	lenH, ok := d.Get("Length")
	require.True(t, ok)
	n, _ := lenH.AsInteger()
	require.EqualValues(t, len("brand new data"), n)

	src, ok := stm.Value().StreamSource()
	require.True(t, ok)
	require.Same(t, newSrc, src.(*object.BufferSource))
}

func TestReplaceStreamDataClearsFilter(t *testing.T) {
	dict := object.NewDictionary()
	dict.Put("Filter", object.NewName(codec.NameFlate))
	stm := newStream(t, dict, []byte("x"))

	err := ReplaceStreamData(stm, &object.BufferSource{Data: []byte("y")}, nil)
	require.NoError(t, err)

	d, _ := stm.Value().StreamDict()
	_, ok := d.Get("Filter")
	require.False(t, ok)
}
