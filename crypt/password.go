package crypt

import "golang.org/x/text/secure/precis"

// padBytes is the fixed 32-byte sequence used to pad or truncate passwords
// for R<=4 key derivation (ISO 32000-1 7.6.3.3, "Algorithm 2" step a).
var padBytes = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// padPassword encodes a password for an R<=4 handler: truncated or padded
// with padBytes to exactly 32 bytes (R<=4 uses PDFDocEncoding truncated or
// padded to 32 bytes). The caller is expected to have already transcoded a
// Unicode password to PDFDocEncoding; this package accepts raw bytes and
// does not perform that transcoding itself, treating passwords as opaque
// byte strings.
func padPassword(pass []byte) []byte {
	key := make([]byte, 32)
	n := copy(key, pass)
	copy(key[n:], padBytes)
	return key
}

// normalizePassword encodes a password for an R>=5 handler: SASLprep-lite
// normalisation via the OpaqueString profile (RFC 8265, the modern
// replacement for stringprep's SASLprep), truncated to 127 bytes (// "R >= 5 uses UTF-8 SASLprep-lite... truncated to 127 bytes"). Input that
// fails to normalise (disallowed code points) is passed through verbatim
// rather than rejected, since a password an author actually used must
// still authenticate against a file encrypted with it.
func normalizePassword(pass []byte) []byte {
	norm, err := precis.OpaqueString.String(string(pass))
	var out []byte
	if err != nil {
		out = append([]byte(nil), pass...)
	} else {
		out = []byte(norm)
	}
	if len(out) > 127 {
		out = out[:127]
	}
	return out
}
