// Package crypt implements the standard security handler:
// encryption-dictionary parsing, password authentication, per-object key
// derivation, and the RC4/AESV2/AESV3 crypt filters for V in {1, 2, 4, 5}
// and R in {2, 3, 4, 5, 6}.
//
// Grounded on unidoc-unipdf's pdf/core/crypt.go (the unobfuscated legacy
// PdfCrypt, carrying the full R2-R4 MD5 derivation that the newer
// core/security package no longer implements directly) and
// core/security/standard_r6.go (R5/R6 SHA-2 derivation), rebuilt around a
// Dict+Handler split so parsing and key-derivation state don't entangle
// the object model the way PdfCrypt's direct *PdfObjectDictionary access
// does.
package crypt

import (
	"crypto/md5"

	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/pdferr"
)

// Permissions is the /P bitmask of operations granted to a user-password
// holder; an owner-password holder is always granted every permission.
type Permissions uint32

const (
	// PermOwner grants every permission; set for an authenticated owner.
	PermOwner Permissions = 0xFFFFFFFF

	PermPrint             Permissions = 1 << 2
	PermModify            Permissions = 1 << 3
	PermExtractGraphics   Permissions = 1 << 4
	PermAnnotate          Permissions = 1 << 5
	PermFillForms         Permissions = 1 << 8
	PermExtractAccessible Permissions = 1 << 9
	PermAssemble          Permissions = 1 << 10
	PermPrintHighQuality  Permissions = 1 << 11
)

// Allowed reports whether every bit set in want is also set in p.
func (p Permissions) Allowed(want Permissions) bool { return p&want == want }

// Dict holds the parsed fields of a document's /Encrypt dictionary plus the
// first half of the trailer's /ID, the input alg2/alg2a need.
type Dict struct {
	Filter    string // must be "Standard"; no other security handler is supported
	SubFilter string
	V         int
	R         int
	Length    int // key length in bits, from /Length (default 40)

	O, U   []byte
	OE, UE []byte // R>=5
	Perms  []byte // R=6

	P               Permissions
	EncryptMetadata bool

	ID0 []byte

	CF         map[string]FilterDict
	StmF, StrF string
	EFF        string // defaults to StmF when absent (PDF 32000-1 7.6.5 Table 20)
}

func (d *Dict) keyLenBytes() int {
	if d.Length <= 0 {
		return 5
	}
	return d.Length / 8
}

// NewDict builds a fresh encryption dictionary for a write-side re-encrypt
// ("regenerates all cryptographic values from a user+owner password
// pair, /P, and requested R/V"). cfm selects the crypt filter method used
// for V>=4 ("AESV2" or "AESV3"); it is ignored for V<4, which always uses
// V2/RC4. id0 is the first half of the document's /ID, generated by the
// writer before encryption parameters are computed.
func NewDict(v, r int, cfm string, perm Permissions, encryptMetadata bool, id0 []byte) *Dict {
	d := &Dict{
		Filter:          "Standard",
		V:               v,
		R:               r,
		P:               perm,
		EncryptMetadata: encryptMetadata,
		ID0:             id0,
	}
	switch {
	case v <= 2:
		d.Length = 40
		if v == 2 {
			d.Length = 128
		}
	default:
		length := 128
		if cfm == "AESV3" {
			length = 256
		}
		d.Length = length
		d.CF = map[string]FilterDict{implicitFilterName: {CFM: cfm, Length: length}}
		d.StmF, d.StrF, d.EFF = implicitFilterName, implicitFilterName, implicitFilterName
	}
	return d
}

// ParseDict reads a /Encrypt dictionary (and the trailer's /ID[0], passed
// separately since the caller already has the trailer resolved) into a
// Dict, validating field presence and lengths the way
// unidoc-unipdf/pdf/core/crypt.go's PdfCryptNewDecrypt does.
func ParseDict(enc *object.Handle, id0 []byte) (*Dict, error) {
	d := &Dict{EncryptMetadata: true, ID0: id0}

	filter, ok := enc.Get("Filter")
	if !ok {
		return nil, pdferr.New(pdferr.CodeDamagedPDF, "encryption dictionary missing /Filter")
	}
	name, _ := filter.AsName()
	if name != "Standard" {
		return nil, pdferr.New(pdferr.CodeUnsupported, "unsupported security handler /Filter %q", name)
	}
	d.Filter = name

	if sf, ok := enc.Get("SubFilter"); ok {
		d.SubFilter, _ = sf.AsName()
	}

	d.Length = 40
	if l, ok := enc.Get("Length"); ok {
		length, _ := l.AsInteger()
		if length%8 != 0 {
			return nil, pdferr.New(pdferr.CodeDamagedPDF, "encryption /Length not a multiple of 8 (%d)", length)
		}
		d.Length = int(length)
	}

	if v, ok := enc.Get("V"); ok {
		V, _ := v.AsInteger()
		d.V = int(V)
	}
	switch {
	case d.V >= 1 && d.V <= 2:
		// default crypt filter is V2, keyed by /Length; nothing further to parse
	case d.V >= 4 && d.V <= 5:
		if err := parseCryptFilters(enc, d); err != nil {
			return nil, err
		}
	default:
		return nil, pdferr.New(pdferr.CodeUnsupported, "unsupported encryption algorithm V=%d", d.V)
	}

	r, ok := enc.Get("R")
	if !ok {
		return nil, pdferr.New(pdferr.CodeDamagedPDF, "encryption dictionary missing /R")
	}
	R, _ := r.AsInteger()
	if R < 2 || R > 6 {
		return nil, pdferr.New(pdferr.CodeDamagedPDF, "invalid security handler /R (%d)", R)
	}
	d.R = int(R)

	minOU := 32
	if d.R >= 5 {
		minOU = 48
	}
	oH, ok := enc.Get("O")
	if !ok {
		return nil, pdferr.New(pdferr.CodeDamagedPDF, "encryption dictionary missing /O")
	}
	oBytes, _, _ := oH.Value().RawString()
	if len(oBytes) < minOU {
		return nil, pdferr.New(pdferr.CodeDamagedPDF, "/O too short (%d, want >= %d)", len(oBytes), minOU)
	}
	d.O = oBytes

	uH, ok := enc.Get("U")
	if !ok {
		return nil, pdferr.New(pdferr.CodeDamagedPDF, "encryption dictionary missing /U")
	}
	uBytes, _, _ := uH.Value().RawString()
	if len(uBytes) < minOU {
		return nil, pdferr.New(pdferr.CodeDamagedPDF, "/U too short (%d, want >= %d)", len(uBytes), minOU)
	}
	d.U = uBytes

	if d.R >= 5 {
		oe, ok := enc.Get("OE")
		if !ok {
			return nil, pdferr.New(pdferr.CodeDamagedPDF, "encryption dictionary missing /OE")
		}
		d.OE, _, _ = oe.Value().RawString()
		ue, ok := enc.Get("UE")
		if !ok {
			return nil, pdferr.New(pdferr.CodeDamagedPDF, "encryption dictionary missing /UE")
		}
		d.UE, _, _ = ue.Value().RawString()
		if len(d.OE) != 32 || len(d.UE) != 32 {
			return nil, pdferr.New(pdferr.CodeDamagedPDF, "/OE or /UE not 32 bytes")
		}
	}

	p, ok := enc.Get("P")
	if !ok {
		return nil, pdferr.New(pdferr.CodeDamagedPDF, "encryption dictionary missing /P")
	}
	P, _ := p.AsInteger()
	d.P = Permissions(uint32(P))

	if d.R == 6 {
		perms, ok := enc.Get("Perms")
		if !ok {
			return nil, pdferr.New(pdferr.CodeDamagedPDF, "encryption dictionary missing /Perms")
		}
		d.Perms, _, _ = perms.Value().RawString()
		if len(d.Perms) != 16 {
			return nil, pdferr.New(pdferr.CodeDamagedPDF, "/Perms not 16 bytes")
		}
	}

	if em, ok := enc.Get("EncryptMetadata"); ok {
		d.EncryptMetadata, _ = em.AsBool()
	}

	return d, nil
}

func parseCryptFilters(enc *object.Handle, d *Dict) error {
	d.CF = make(map[string]FilterDict)
	cf, ok := enc.Get("CF")
	if ok {
		for _, name := range cf.Keys() {
			if name == "Identity" {
				continue // cannot be overridden
			}
			sub, ok := cf.Get(name)
			if !ok {
				continue
			}
			var fd FilterDict
			if cfm, ok := sub.Get("CFM"); ok {
				fd.CFM, _ = cfm.AsName()
			}
			if ae, ok := sub.Get("AuthEvent"); ok {
				if s, ok := ae.AsName(); ok {
					fd.AuthEvent = AuthEvent(s)
				}
			}
			if l, ok := sub.Get("Length"); ok {
				length, _ := l.AsInteger()
				fd.Length = int(length)
			} else {
				fd.Length = d.Length
			}
			d.CF[name] = fd
		}
	}

	d.StrF = "Identity"
	if strf, ok := enc.Get("StrF"); ok {
		name, _ := strf.AsName()
		if _, known := d.CF[name]; !known && name != "Identity" {
			return pdferr.New(pdferr.CodeDamagedPDF, "/StrF names unknown crypt filter %q", name)
		}
		d.StrF = name
	}
	d.StmF = "Identity"
	if stmf, ok := enc.Get("StmF"); ok {
		name, _ := stmf.AsName()
		if _, known := d.CF[name]; !known && name != "Identity" {
			return pdferr.New(pdferr.CodeDamagedPDF, "/StmF names unknown crypt filter %q", name)
		}
		d.StmF = name
	}
	d.EFF = d.StmF
	if eff, ok := enc.Get("EFF"); ok {
		name, _ := eff.AsName()
		if _, known := d.CF[name]; !known && name != "Identity" {
			return pdferr.New(pdferr.CodeDamagedPDF, "/EFF names unknown crypt filter %q", name)
		}
		d.EFF = name
	}
	return nil
}

// Handler drives authentication and per-object cryptography for one
// document's encryption dictionary.
type Handler struct {
	dict    *Dict
	fileKey []byte
	filters map[string]Filter
}

// NewHandler builds the set of named crypt filters for d: V=4 or 5 chooses
// per-filter via /CF; for V<=2 a single implicit "StdCF" RC4 filter is
// installed for pre-V4 documents.
func NewHandler(d *Dict) (*Handler, error) {
	h := &Handler{dict: d, filters: map[string]Filter{"Identity": filterIdentity{}}}

	switch {
	case d.V >= 1 && d.V <= 2:
		length := d.Length
		if d.V == 1 {
			length = 40
		}
		f, err := NewFilter(FilterDict{CFM: "V2", Length: length})
		if err != nil {
			return nil, err
		}
		h.filters[implicitFilterName] = f
	default:
		for name, fd := range d.CF {
			f, err := NewFilter(fd)
			if err != nil {
				return nil, err
			}
			h.filters[name] = f
		}
	}
	return h, nil
}

// implicitFilterName is the crypt-filter name used for V<=2 documents,
// which have no /CF dictionary at all (unidoc-unipdf's StandardCryptFilter).
const implicitFilterName = "StdCF"

// StreamFilterName reports which named filter encrypts stream bodies.
func (h *Handler) StreamFilterName() string {
	if h.dict.V >= 4 {
		return h.dict.StmF
	}
	return implicitFilterName
}

// StringFilterName reports which named filter encrypts string values.
func (h *Handler) StringFilterName() string {
	if h.dict.V >= 4 {
		return h.dict.StrF
	}
	return implicitFilterName
}

// EmbeddedFileFilterName reports which named filter encrypts embedded-file
// streams, falling back to the stream filter when /EFF is absent.
func (h *Handler) EmbeddedFileFilterName() string {
	if h.dict.V >= 4 {
		return h.dict.EFF
	}
	return implicitFilterName
}

func (h *Handler) filter(name string) (Filter, error) {
	f, ok := h.filters[name]
	if !ok {
		return nil, pdferr.New(pdferr.CodeUnsupported, "crypt: unknown crypt filter %q", name)
	}
	return f, nil
}

// ObjectKey derives og's per-object key under the named crypt filter.
func (h *Handler) ObjectKey(filterName string, og object.ObjGen) ([]byte, error) {
	f, err := h.filter(filterName)
	if err != nil {
		return nil, err
	}
	return f.MakeKey(og.ID, uint32(og.Gen), h.fileKey)
}

// EncryptBytes encrypts buf under the named filter and object key.
func (h *Handler) EncryptBytes(buf []byte, filterName string, objectKey []byte) ([]byte, error) {
	f, err := h.filter(filterName)
	if err != nil {
		return nil, err
	}
	return f.EncryptBytes(buf, objectKey)
}

// DecryptBytes decrypts buf under the named filter and object key.
func (h *Handler) DecryptBytes(buf []byte, filterName string, objectKey []byte) ([]byte, error) {
	f, err := h.filter(filterName)
	if err != nil {
		return nil, err
	}
	return f.DecryptBytes(buf, objectKey)
}

// FileKey returns the authenticated document encryption key, or nil if
// Authenticate has not yet succeeded.
func (h *Handler) FileKey() []byte { return h.fileKey }

// Permissions returns the /P value of the encryption dictionary.
func (h *Handler) Permissions() Permissions { return h.dict.P }

// R returns the security handler revision.
func (h *Handler) R() int { return h.dict.R }

// Authenticate checks pass as a user password and then, if that fails, as
// an owner password ("Password check order: try as user password;
// if that fails, try as owner password"), and on success records the
// document encryption key for later object-key derivation. The returned
// role is "user", "owner", or "" if pass matched neither.
func (h *Handler) Authenticate(pass []byte) (ok bool, role string, perm Permissions, err error) {
	if h.dict.R >= 5 {
		return h.authenticateR6(pass)
	}
	return h.authenticateLegacy(pass)
}

// GenerateParams regenerates O/U(/OE/UE/Perms) and a fresh file key for a
// write-side re-encryption, given owner and user passwords and with
// d.R/d.P/d.EncryptMetadata already set by the caller.
func (h *Handler) GenerateParams(ownerPass, userPass []byte) ([]byte, error) {
	if h.dict.R >= 5 {
		return h.generateParamsR6(ownerPass, userPass)
	}
	return h.generateParamsLegacy(ownerPass, userPass)
}

func md5Sum(b []byte) []byte {
	sum := md5.Sum(b)
	return sum[:]
}
