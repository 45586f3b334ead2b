package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"fmt"
	"io"
)

// AuthEvent names the event that triggers a crypt filter's authentication,
// per the /AuthEvent entry of a crypt filter dictionary.
type AuthEvent string

const (
	// EventDocOpen triggers authentication when the document is opened.
	EventDocOpen = AuthEvent("DocOpen")
	// EventEFOpen triggers authentication when an embedded file is opened.
	EventEFOpen = AuthEvent("EFOpen")
)

// FilterDict carries the fields of a /CF sub-dictionary entry needed to
// build a Filter: the crypt filter method name (CFM) and key length.
type FilterDict struct {
	CFM       string
	AuthEvent AuthEvent
	// Length is the filter's key length. The PDF spec says this is bytes,
	// but many writers emit it in bits; filter constructors apply the same
	// bits-vs-bytes heuristic the standard security handler uses elsewhere.
	Length int
}

// Filter is a crypt filter method ("V2 (RC4), AESV2, AESV3,
// Identity"): it derives a per-object key from the file encryption key and
// encrypts/decrypts byte strings and stream bodies with it.
type Filter interface {
	// Name is the method name used in a CFM field.
	Name() string
	// KeyLength is the encryption key length, in bytes.
	KeyLength() int
	// HandlerVersion reports the V, R pair this filter is normally paired
	// with in the encryption dictionary.
	HandlerVersion() (V, R int)
	// MakeKey derives a per-object key from the file encryption key. AESV3
	// ignores objNum/genNum and returns the file key unchanged.
	MakeKey(objNum, genNum uint32, fileKey []byte) ([]byte, error)
	// EncryptBytes encrypts buf in place (or a replacement) using the
	// per-object key returned by MakeKey.
	EncryptBytes(buf, objectKey []byte) ([]byte, error)
	// DecryptBytes decrypts buf in place (or a replacement) using the
	// per-object key returned by MakeKey.
	DecryptBytes(buf, objectKey []byte) ([]byte, error)
}

// NewFilter builds the Filter named by d.CFM.
func NewFilter(d FilterDict) (Filter, error) {
	switch d.CFM {
	case "V2":
		return newFilterV2(d)
	case "AESV2":
		return newFilterAESV2(d)
	case "AESV3":
		return newFilterAESV3(d)
	case "Identity", "":
		return filterIdentity{}, nil
	default:
		return nil, fmt.Errorf("crypt: unsupported crypt filter method %q", d.CFM)
	}
}

// filterIdentity is the always-present no-op crypt filter (// "Identity crypt filter disables per-object decryption for that stream").
type filterIdentity struct{}

func (filterIdentity) Name() string                                         { return "Identity" }
func (filterIdentity) KeyLength() int                                       { return 0 }
func (filterIdentity) PDFVersion() [2]int                                   { return [2]int{} }
func (filterIdentity) HandlerVersion() (V, R int)                          { return 0, 0 }
func (filterIdentity) MakeKey(_, _ uint32, fileKey []byte) ([]byte, error) { return fileKey, nil }
func (filterIdentity) EncryptBytes(buf, _ []byte) ([]byte, error)          { return buf, nil }
func (filterIdentity) DecryptBytes(buf, _ []byte) ([]byte, error)          { return buf, nil }

var _ Filter = filterIdentity{}

// filterV2 is RC4 with a configurable key length (V=1 fixes it at 5 bytes,
// V=2 and the /CF entries of V=4 carry their own length).
type filterV2 struct{ length int }

func newFilterV2(d FilterDict) (Filter, error) {
	length := d.Length
	if length%8 != 0 {
		return nil, fmt.Errorf("crypt: V2 filter length not a multiple of 8 (%d)", length)
	}
	if length < 5 || length > 16 {
		switch length {
		case 40, 64, 128:
			length /= 8
		default:
			return nil, fmt.Errorf("crypt: V2 filter length not in range 40-128 bits (%d)", length)
		}
	}
	return filterV2{length: length}, nil
}

func (f filterV2) Name() string               { return "V2" }
func (f filterV2) KeyLength() int             { return f.length }
func (f filterV2) HandlerVersion() (V, R int) { return 2, 3 }

func (f filterV2) MakeKey(objNum, genNum uint32, fileKey []byte) ([]byte, error) {
	return derivePerObjectKey(objNum, genNum, fileKey, false)
}

func (f filterV2) EncryptBytes(buf, objectKey []byte) ([]byte, error) { return rc4XOR(buf, objectKey) }
func (f filterV2) DecryptBytes(buf, objectKey []byte) ([]byte, error) { return rc4XOR(buf, objectKey) }

func rc4XOR(buf, key []byte) ([]byte, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	c.XORKeyStream(buf, buf)
	return buf, nil
}

var _ Filter = filterV2{}

// filterAES is the shared AES-CBC, PKCS#7-padded body used by both AESV2
// and AESV3; only key length and per-object key derivation differ.
type filterAES struct{}

func (filterAES) EncryptBytes(buf, okey []byte) ([]byte, error) {
	block, err := aes.NewCipher(okey)
	if err != nil {
		return nil, err
	}
	pad := aes.BlockSize - len(buf)%aes.BlockSize
	for i := 0; i < pad; i++ {
		buf = append(buf, byte(pad))
	}
	out := make([]byte, aes.BlockSize+len(buf))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], buf)
	return out, nil
}

func (filterAES) DecryptBytes(buf, okey []byte) ([]byte, error) {
	block, err := aes.NewCipher(okey)
	if err != nil {
		return nil, err
	}
	if len(buf) < aes.BlockSize {
		return buf, fmt.Errorf("crypt: AES ciphertext shorter than one block (%d)", len(buf))
	}
	iv := buf[:aes.BlockSize]
	buf = buf[aes.BlockSize:]
	if len(buf)%aes.BlockSize != 0 {
		return buf, fmt.Errorf("crypt: AES ciphertext length not a multiple of %d (%d)", aes.BlockSize, len(buf))
	}
	if len(buf) == 0 {
		return buf, nil
	}
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(buf, buf)
	pad := int(buf[len(buf)-1])
	if pad <= 0 || pad > len(buf) {
		return buf, fmt.Errorf("crypt: invalid AES PKCS#7 padding (%d)", pad)
	}
	return buf[:len(buf)-pad], nil
}

type filterAESV2 struct{ filterAES }

func newFilterAESV2(d FilterDict) (Filter, error) {
	length := d.Length
	if length == 128 {
		length /= 8
	}
	if length != 0 && length != 16 {
		return nil, fmt.Errorf("crypt: invalid AESV2 filter length (%d)", d.Length)
	}
	return filterAESV2{}, nil
}

func (filterAESV2) Name() string               { return "AESV2" }
func (filterAESV2) KeyLength() int             { return 128 / 8 }
func (filterAESV2) HandlerVersion() (V, R int) { return 4, 4 }

func (filterAESV2) MakeKey(objNum, genNum uint32, fileKey []byte) ([]byte, error) {
	return derivePerObjectKey(objNum, genNum, fileKey, true)
}

var _ Filter = filterAESV2{}

type filterAESV3 struct{ filterAES }

func newFilterAESV3(d FilterDict) (Filter, error) {
	length := d.Length
	if length == 256 {
		length /= 8
	}
	if length != 0 && length != 32 {
		return nil, fmt.Errorf("crypt: invalid AESV3 filter length (%d)", d.Length)
	}
	return filterAESV3{}, nil
}

func (filterAESV3) Name() string               { return "AESV3" }
func (filterAESV3) KeyLength() int             { return 256 / 8 }
func (filterAESV3) HandlerVersion() (V, R int) { return 5, 6 }

// MakeKey is a no-op for AESV3: R>=5 handlers use the file key directly for
// every object ("R >= 5 uses the file key directly").
func (filterAESV3) MakeKey(_, _ uint32, fileKey []byte) ([]byte, error) { return fileKey, nil }

var _ Filter = filterAESV3{}

// derivePerObjectKey implements the R<=4 per-object key formula:
// MD5(file_key || obj_id[0..3] || gen[0..2] || ("sAlT" for AES))
// truncated to min(16, len(file_key)+5) bytes.
func derivePerObjectKey(objNum, genNum uint32, fileKey []byte, aesSalt bool) ([]byte, error) {
	buf := make([]byte, len(fileKey)+5, len(fileKey)+9)
	n := copy(buf, fileKey)
	buf[n] = byte(objNum)
	buf[n+1] = byte(objNum >> 8)
	buf[n+2] = byte(objNum >> 16)
	buf[n+3] = byte(genNum)
	buf[n+4] = byte(genNum >> 8)
	if aesSalt {
		buf = append(buf, 0x73, 0x41, 0x6C, 0x54) // "sAlT"
	}
	sum := md5.Sum(buf)
	n = len(fileKey) + 5
	if n > 16 {
		n = 16
	}
	return sum[:n], nil
}
