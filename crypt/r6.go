package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"hash"
	"io"
	"math"
)

// This file implements R5/R6 key derivation ("R5 and R6 use SHA-2
// family with a validation salt and key salt; R6 additionally applies the
// published iteration algorithm"), ported from
// unidoc-unipdf/core/security/standard_r6.go's stdHandlerR6 (ISO 32000-2
// Algorithms 2.A, 2.B, and 8-13).

// alg2bR5 is the deprecated R=5 hash: a single SHA-256 pass.
func alg2bR5(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// repeatToFill repeats buf[:n] until it fills buf; len(buf) must be a
// multiple of n.
func repeatToFill(buf []byte, n int) {
	for bp := n; bp < len(buf); bp *= 2 {
		copy(buf[bp:], buf[:bp])
	}
}

// alg2b is the R=6 hardened hash (ISO 32000-2 Algorithm 2.B): repeated
// AES-CBC rounds over an expanding buffer, switching hash family based on
// the previous round's output, until a data-dependent stopping condition.
func alg2b(data, pwd, userKey []byte) ([]byte, error) {
	s256 := sha256.New()
	var s384, s512 hash.Hash

	hbuf := make([]byte, 64)
	s256.Write(data)
	K := s256.Sum(hbuf[:0])

	n := len(pwd) + len(K) + len(userKey)
	buf := make([]byte, n*64)

	round := func() ([]byte, error) {
		part := buf[:n]
		i := copy(part, pwd)
		i += copy(part[i:], K)
		i += copy(part[i:], userKey)
		if i != n {
			return nil, errors.New("crypt: alg2b: unexpected round input size")
		}
		K1 := buf[:n*64]
		repeatToFill(K1, n)

		block, err := aes.NewCipher(K[:16])
		if err != nil {
			return nil, err
		}
		cipher.NewCBCEncrypter(block, K[16:32]).CryptBlocks(K1, K1)
		E := K1

		sum := 0
		for i := 0; i < 16; i++ {
			sum += int(E[i] % 3)
		}
		var hs hash.Hash
		switch sum % 3 {
		case 0:
			hs = s256
		case 1:
			if s384 == nil {
				s384 = sha512.New384()
			}
			hs = s384
		case 2:
			if s512 == nil {
				s512 = sha512.New()
			}
			hs = s512
		}
		hs.Reset()
		hs.Write(E)
		K = hs.Sum(hbuf[:0])
		return E, nil
	}

	for i := 0; ; i++ {
		E, err := round()
		if err != nil {
			return nil, err
		}
		b := uint8(E[len(E)-1])
		if i+1 >= 64 && b <= uint8(i+1-32) {
			break
		}
	}
	return append([]byte(nil), K[:32]...), nil
}

func (h *Handler) alg2b(data, pwd, userKey []byte) ([]byte, error) {
	if h.dict.R == 5 {
		return alg2bR5(data), nil
	}
	return alg2b(data, pwd, userKey)
}

// alg2a recovers the file encryption key from a password (R>=5), trying it
// first as the user password and then as the owner password; if it matches
// neither, the default (empty) user password is tried.
func (h *Handler) alg2a(pass []byte) (fileKey []byte, role string, err error) {
	d := h.dict
	if len(pass) > 127 {
		pass = pass[:127]
	}

	uh, err := h.alg11(pass)
	if err != nil {
		return nil, "", err
	}
	if len(uh) != 0 {
		// matched as the user password: the key is derived below
	} else if oh, err := h.alg12(pass); err != nil {
		return nil, "", err
	} else if len(oh) != 0 {
		str := make([]byte, 0, len(pass)+8+48)
		str = append(str, pass...)
		str = append(str, d.O[40:48]...) // owner key salt
		str = append(str, d.U[:48]...)

		ikey, err := h.alg2b(str, pass, d.U[:48])
		if err != nil {
			return nil, "", err
		}
		fkey, err := aesCBCNoIVDecrypt(ikey[:32], d.OE)
		if err != nil {
			return nil, "", err
		}
		if d.R >= 6 {
			if err := h.alg13(fkey); err != nil {
				return nil, "", err
			}
		}
		return fkey, "owner", nil
	}

	if len(uh) == 0 {
		uh, err = h.alg11(nil) // try the default (empty) password
		if err != nil {
			return nil, "", err
		}
		pass = nil
	}
	if len(uh) == 0 {
		return nil, "", nil
	}

	str := make([]byte, 0, len(pass)+8)
	str = append(str, pass...)
	str = append(str, d.U[32:40]...) // user key salt
	ikey, err := h.alg2b(str, pass, nil)
	if err != nil {
		return nil, "", err
	}
	fkey, err := aesCBCNoIVDecrypt(ikey[:32], d.UE)
	if err != nil {
		return nil, "", err
	}
	if d.R >= 6 {
		if err := h.alg13(fkey); err != nil {
			return nil, "", err
		}
	}
	return fkey, "user", nil
}

func aesCBCNoIVDecrypt(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	out := make([]byte, 32)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return out, nil
}

func aesCBCNoIVEncrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	out := make([]byte, 32)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plaintext)
	return out, nil
}

// alg8 computes /U and /UE from the user password and file key.
func (h *Handler) alg8(fileKey, upass []byte) error {
	var salts [16]byte
	if _, err := io.ReadFull(rand.Reader, salts[:]); err != nil {
		return err
	}
	valSalt, keySalt := salts[0:8], salts[8:16]

	str := append(append([]byte(nil), upass...), valSalt...)
	hv, err := h.alg2b(str, upass, nil)
	if err != nil {
		return err
	}
	U := make([]byte, 0, 48)
	U = append(U, hv[:32]...)
	U = append(U, valSalt...)
	U = append(U, keySalt...)
	h.dict.U = U

	str = append(append([]byte(nil), upass...), keySalt...)
	hk, err := h.alg2b(str, upass, nil)
	if err != nil {
		return err
	}
	UE, err := aesCBCNoIVEncrypt(hk[:32], fileKey)
	if err != nil {
		return err
	}
	h.dict.UE = UE
	return nil
}

// alg9 computes /O and /OE from the owner password, the already-computed
// /U, and the file key.
func (h *Handler) alg9(fileKey, opass []byte) error {
	var salts [16]byte
	if _, err := io.ReadFull(rand.Reader, salts[:]); err != nil {
		return err
	}
	valSalt, keySalt := salts[0:8], salts[8:16]
	userKey := h.dict.U[:48]

	str := append(append([]byte(nil), opass...), valSalt...)
	str = append(str, userKey...)
	hv, err := h.alg2b(str, opass, userKey)
	if err != nil {
		return err
	}
	O := make([]byte, 0, 48)
	O = append(O, hv[:32]...)
	O = append(O, valSalt...)
	O = append(O, keySalt...)
	h.dict.O = O

	str = append(append([]byte(nil), opass...), keySalt...)
	str = append(str, userKey...)
	hk, err := h.alg2b(str, opass, userKey)
	if err != nil {
		return err
	}
	OE, err := aesCBCNoIVEncrypt(hk[:32], fileKey)
	if err != nil {
		return err
	}
	h.dict.OE = OE
	return nil
}

// alg10 computes /Perms (R=6): an ECB-encrypted record of P, the metadata
// flag, and a magic marker, used to validate permissions without a
// password.
func (h *Handler) alg10(fileKey []byte) error {
	perms := uint64(uint32(h.dict.P)) | (math.MaxUint32 << 32)
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[:8], perms)
	if h.dict.EncryptMetadata {
		buf[8] = 'T'
	} else {
		buf[8] = 'F'
	}
	copy(buf[9:12], "adb")
	if _, err := io.ReadFull(rand.Reader, buf[12:16]); err != nil {
		return err
	}

	block, err := aes.NewCipher(fileKey[:32])
	if err != nil {
		return err
	}
	newECBEncrypter(block).CryptBlocks(buf, buf)
	h.dict.Perms = buf
	return nil
}

// alg11 checks upass against /U's validation salt, returning the 32-byte
// hash on success or nil (no error) on mismatch.
func (h *Handler) alg11(upass []byte) ([]byte, error) {
	d := h.dict
	str := append(append([]byte(nil), upass...), d.U[32:40]...)
	hv, err := h.alg2b(str, upass, nil)
	if err != nil {
		return nil, err
	}
	hv = hv[:32]
	if !bytes.Equal(hv, d.U[:32]) {
		return nil, nil
	}
	return hv, nil
}

// alg12 checks opass against /O's validation salt (keyed additionally by
// /U), returning the 32-byte hash on success or nil on mismatch.
func (h *Handler) alg12(opass []byte) ([]byte, error) {
	d := h.dict
	str := append(append([]byte(nil), opass...), d.O[32:40]...)
	str = append(str, d.U[:48]...)
	hv, err := h.alg2b(str, opass, d.U[:48])
	if err != nil {
		return nil, err
	}
	hv = hv[:32]
	if !bytes.Equal(hv, d.O[:32]) {
		return nil, nil
	}
	return hv, nil
}

// alg13 validates /Perms (R=6) against the recovered file key.
func (h *Handler) alg13(fileKey []byte) error {
	perms := append([]byte(nil), h.dict.Perms...)
	block, err := aes.NewCipher(fileKey[:32])
	if err != nil {
		return err
	}
	newECBDecrypter(block).CryptBlocks(perms, perms)

	if !bytes.Equal(perms[9:12], []byte("adb")) {
		return errors.New("crypt: R6 permissions validation failed (bad marker)")
	}
	p := Permissions(binary.LittleEndian.Uint32(perms[0:4]))
	if p != h.dict.P {
		return errors.New("crypt: R6 permissions validation failed (/P mismatch)")
	}
	switch perms[8] {
	case 'T':
		if !h.dict.EncryptMetadata {
			return errors.New("crypt: R6 permissions validation failed (/EncryptMetadata mismatch)")
		}
	case 'F':
		if h.dict.EncryptMetadata {
			return errors.New("crypt: R6 permissions validation failed (/EncryptMetadata mismatch)")
		}
	default:
		return errors.New("crypt: R6 permissions validation failed (bad metadata flag)")
	}
	return nil
}

func (h *Handler) authenticateR6(pass []byte) (bool, string, Permissions, error) {
	pass = normalizePassword(pass)
	key, role, err := h.alg2a(pass)
	if err != nil {
		return false, "", 0, err
	}
	if key == nil {
		return false, "", 0, nil
	}
	h.fileKey = key
	perm := h.dict.P
	if role == "owner" {
		perm = PermOwner
	}
	return true, role, perm, nil
}

func (h *Handler) generateParamsR6(opass, upass []byte) ([]byte, error) {
	if len(upass) > 127 {
		upass = upass[:127]
	}
	if len(opass) > 127 {
		opass = opass[:127]
	}
	upass = normalizePassword(upass)
	opass = normalizePassword(opass)

	fileKey := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, fileKey); err != nil {
		return nil, err
	}
	h.dict.U, h.dict.O, h.dict.UE, h.dict.OE, h.dict.Perms = nil, nil, nil, nil, nil

	if err := h.alg8(fileKey, upass); err != nil {
		return nil, err
	}
	if err := h.alg9(fileKey, opass); err != nil {
		return nil, err
	}
	if h.dict.R >= 6 {
		if err := h.alg10(fileKey); err != nil {
			return nil, err
		}
	}
	h.fileKey = fileKey
	return fileKey, nil
}
