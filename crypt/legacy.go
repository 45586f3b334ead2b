package crypt

import (
	"bytes"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"io"
)

// This file implements R2-R4 key derivation ("R2-R4 use an
// MD5-based derivation from the user or owner password, /O, /P, document
// /ID[0], and (R4) /Metadata-encryption flag"), ported from
// unidoc-unipdf/pdf/core/crypt.go's alg2 through alg7 (ISO 32000-1
// Algorithms 2-7).

// alg2 computes the file encryption key from a (user or owner) password.
func (h *Handler) alg2(pass []byte) []byte {
	d := h.dict
	m := md5.New()
	m.Write(padPassword(pass))
	m.Write(d.O)

	var p [4]byte
	pv := uint32(d.P)
	for i := range p {
		p[i] = byte(pv >> (8 * i))
	}
	m.Write(p[:])
	m.Write(d.ID0)

	if d.R >= 4 && !d.EncryptMetadata {
		m.Write([]byte{0xff, 0xff, 0xff, 0xff})
	}
	sum := m.Sum(nil)

	if d.R >= 3 {
		n := d.keyLenBytes()
		for i := 0; i < 50; i++ {
			sum = md5Sum(sum[:n])
		}
		return sum[:n]
	}
	return sum[:5]
}

// alg3Key computes the RC4 key used to encrypt/decrypt the /O entry.
func (h *Handler) alg3Key(pass []byte) []byte {
	d := h.dict
	sum := md5Sum(padPassword(pass))
	if d.R >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5Sum(sum)
		}
	}
	if d.R == 2 {
		return sum[:5]
	}
	return sum[:d.keyLenBytes()]
}

// alg3 computes the /O entry from the user and owner passwords.
func (h *Handler) alg3(upass, opass []byte) ([]byte, error) {
	d := h.dict
	keySrc := upass
	if len(opass) > 0 {
		keySrc = opass
	}
	encKey := h.alg3Key(keySrc)

	c, err := rc4.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	padded := padPassword(upass)
	out := make([]byte, len(padded))
	c.XORKeyStream(out, padded)

	if d.R >= 3 {
		xored := make([]byte, len(encKey))
		for i := 0; i < 19; i++ {
			for j := range encKey {
				xored[j] = encKey[j] ^ byte(i+1)
			}
			c, err := rc4.NewCipher(xored)
			if err != nil {
				return nil, err
			}
			c.XORKeyStream(out, out)
		}
	}
	return out, nil
}

// alg4 computes /U for R=2.
func (h *Handler) alg4(upass []byte) (u, ekey []byte, err error) {
	ekey = h.alg2(upass)
	c, err := rc4.NewCipher(ekey)
	if err != nil {
		return nil, nil, err
	}
	u = make([]byte, len(padBytes))
	c.XORKeyStream(u, padBytes)
	return u, ekey, nil
}

// alg5 computes /U for R>=3.
func (h *Handler) alg5(upass []byte) (u, ekey []byte, err error) {
	d := h.dict
	ekey = h.alg2(upass)

	m := md5.New()
	m.Write(padBytes)
	m.Write(d.ID0)
	digest := m.Sum(nil)

	c, err := rc4.NewCipher(ekey)
	if err != nil {
		return nil, nil, err
	}
	enc := make([]byte, 16)
	c.XORKeyStream(enc, digest)

	xored := make([]byte, len(ekey))
	for i := 0; i < 19; i++ {
		for j := range ekey {
			xored[j] = ekey[j] ^ byte(i+1)
		}
		c, err := rc4.NewCipher(xored)
		if err != nil {
			return nil, nil, err
		}
		c.XORKeyStream(enc, enc)
	}

	out := make([]byte, 32)
	copy(out, enc)
	// The remaining 16 bytes are arbitrary padding (ISO 32000-1 Algorithm
	// 5 step f); only the first 16 are ever compared, in alg6.
	if _, err := io.ReadFull(rand.Reader, out[16:]); err != nil {
		return nil, nil, err
	}
	return out, ekey, nil
}

// alg6 authenticates upass as the user password.
func (h *Handler) alg6(upass []byte) (ok bool, fileKey []byte, err error) {
	var u, ekey []byte
	if h.dict.R == 2 {
		u, ekey, err = h.alg4(upass)
	} else {
		u, ekey, err = h.alg5(upass)
	}
	if err != nil {
		return false, nil, err
	}

	docU := h.dict.U
	if h.dict.R >= 3 {
		if len(u) > 16 {
			u = u[:16]
		}
		if len(docU) > 16 {
			docU = docU[:16]
		}
	}
	return bytes.Equal(u, docU), ekey, nil
}

// alg7 authenticates opass as the owner password.
func (h *Handler) alg7(opass []byte) (bool, []byte, error) {
	d := h.dict
	encKey := h.alg3Key(opass)

	decrypted := make([]byte, len(d.O))
	if d.R == 2 {
		c, err := rc4.NewCipher(encKey)
		if err != nil {
			return false, nil, err
		}
		c.XORKeyStream(decrypted, d.O)
	} else {
		src := append([]byte(nil), d.O...)
		xored := make([]byte, len(encKey))
		for i := 19; i >= 0; i-- {
			for j := range encKey {
				xored[j] = encKey[j] ^ byte(i)
			}
			c, err := rc4.NewCipher(xored)
			if err != nil {
				return false, nil, err
			}
			c.XORKeyStream(decrypted, src)
			src = append([]byte(nil), decrypted...)
		}
	}

	ok, fileKey, err := h.alg6(decrypted)
	if err != nil {
		return false, nil, nil
	}
	return ok, fileKey, nil
}

func (h *Handler) authenticateLegacy(pass []byte) (bool, string, Permissions, error) {
	if ok, key, err := h.alg6(pass); err != nil {
		return false, "", 0, err
	} else if ok {
		h.fileKey = key
		return true, "user", h.dict.P, nil
	}
	if ok, key, err := h.alg7(pass); err != nil {
		return false, "", 0, err
	} else if ok {
		h.fileKey = key
		return true, "owner", PermOwner, nil
	}
	return false, "", 0, nil
}

func (h *Handler) generateParamsLegacy(opass, upass []byte) ([]byte, error) {
	d := h.dict
	O, err := h.alg3(upass, opass)
	if err != nil {
		return nil, err
	}
	d.O = O

	U, key, err := h.alg5(upass)
	if err != nil {
		return nil, err
	}
	d.U = U
	h.fileKey = key
	return key, nil
}
