package crypt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qpdf-go/qpdfcore/object"
)

func TestLegacyR3RoundTrip(t *testing.T) {
	d := NewDict(2, 3, "", PermPrint, true, []byte("0123456789012345"))
	h, err := NewHandler(d)
	require.NoError(t, err)

	_, err = h.GenerateParams([]byte("owner-secret"), []byte("user-secret"))
	require.NoError(t, err)

	// A fresh handler over the same dict authenticates both passwords.
	h2, err := NewHandler(d)
	require.NoError(t, err)
	ok, role, perm, err := h2.Authenticate([]byte("user-secret"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "user", role)
	require.Equal(t, PermPrint, perm)

	h3, err := NewHandler(d)
	require.NoError(t, err)
	ok, role, perm, err = h3.Authenticate([]byte("owner-secret"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "owner", role)
	require.Equal(t, PermOwner, perm)

	h4, err := NewHandler(d)
	require.NoError(t, err)
	ok, _, _, err = h4.Authenticate([]byte("wrong-password"))
	require.NoError(t, err)
	require.False(t, ok)

	og := object.ObjGen{ID: 7, Gen: 0}
	key, err := h2.ObjectKey(h2.StreamFilterName(), og)
	require.NoError(t, err)

	plain := []byte("hello, encrypted world")
	buf := append([]byte(nil), plain...)
	enc, err := h2.EncryptBytes(buf, h2.StreamFilterName(), key)
	require.NoError(t, err)
	require.NotEqual(t, plain, enc)

	key2, err := h3.ObjectKey(h3.StreamFilterName(), og)
	require.NoError(t, err)
	dec, err := h3.DecryptBytes(append([]byte(nil), enc...), h3.StreamFilterName(), key2)
	require.NoError(t, err)
	require.Equal(t, plain, dec)
}

func TestR6AESV3RoundTrip(t *testing.T) {
	d := NewDict(5, 6, "AESV3", PermModify|PermAnnotate, true, nil)
	h, err := NewHandler(d)
	require.NoError(t, err)

	_, err = h.GenerateParams([]byte("ownerpw"), []byte("userpw"))
	require.NoError(t, err)

	h2, err := NewHandler(d)
	require.NoError(t, err)
	ok, role, perm, err := h2.Authenticate([]byte("userpw"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "user", role)
	require.Equal(t, d.P, perm)

	h3, err := NewHandler(d)
	require.NoError(t, err)
	ok, role, perm, err = h3.Authenticate([]byte("ownerpw"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "owner", role)
	require.Equal(t, PermOwner, perm)

	require.Equal(t, h2.FileKey(), h3.FileKey())

	og := object.ObjGen{ID: 3, Gen: 0}
	key, err := h2.ObjectKey(h2.StreamFilterName(), og)
	require.NoError(t, err)
	require.Equal(t, h2.FileKey(), key) // AESV3 never varies the key per object

	plain := []byte("streamed bytes under AESV3")
	enc, err := h2.EncryptBytes(append([]byte(nil), plain...), h2.StreamFilterName(), key)
	require.NoError(t, err)

	dec, err := h3.DecryptBytes(enc, h3.StreamFilterName(), key)
	require.NoError(t, err)
	require.Equal(t, plain, dec)
}

func TestR6WrongPasswordFails(t *testing.T) {
	d := NewDict(5, 6, "AESV3", PermOwner, true, nil)
	h, err := NewHandler(d)
	require.NoError(t, err)
	_, err = h.GenerateParams([]byte("correct-owner"), []byte("correct-user"))
	require.NoError(t, err)

	h2, err := NewHandler(d)
	require.NoError(t, err)
	ok, _, _, err := h2.Authenticate([]byte("incorrect"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIdentityFilterIsNoOp(t *testing.T) {
	d := NewDict(4, 4, "AESV2", PermOwner, true, nil)
	h, err := NewHandler(d)
	require.NoError(t, err)
	buf := []byte("unchanged")
	out, err := h.EncryptBytes(append([]byte(nil), buf...), "Identity", nil)
	require.NoError(t, err)
	require.Equal(t, buf, out)
}

func TestParseDictReadsFields(t *testing.T) {
	enc := object.NewDictionary()
	enc.Put("Filter", object.NewName("Standard"))
	enc.Put("V", object.NewInteger(2))
	enc.Put("R", object.NewInteger(3))
	enc.Put("Length", object.NewInteger(128))
	enc.Put("O", object.NewString(make([]byte, 32), object.EncodingRaw))
	enc.Put("U", object.NewString(make([]byte, 32), object.EncodingRaw))
	enc.Put("P", object.NewInteger(-44))
	enc.Put("EncryptMetadata", object.NewBool(false))

	d, err := ParseDict(enc, []byte("docid0"))
	require.NoError(t, err)
	require.Equal(t, 2, d.V)
	require.Equal(t, 3, d.R)
	require.Equal(t, 128, d.Length)
	require.False(t, d.EncryptMetadata)
	require.Equal(t, "docid0", string(d.ID0))
}
