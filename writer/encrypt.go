package writer

import (
	"github.com/qpdf-go/qpdfcore/config"
	"github.com/qpdf-go/qpdfcore/crypt"
	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/pdferr"
	"github.com/qpdf-go/qpdfcore/stream"
)

// cryptWriter is the write-side superset of stream.Decryptor: the writer
// also needs the filter protecting strings, which stream.Decryptor (built
// for the read-only stream engine) does not name.
type cryptWriter interface {
	stream.Decryptor
	StringFilterName() string
}

// encryptionPlan is the resolved outcome of config.WriterOptions.Encryption:
// which handler (if any) encrypts outgoing strings/streams, and where the
// /Encrypt dictionary object comes from.
type encryptionPlan struct {
	// handler is nil for an unencrypted output.
	handler cryptWriter
	// dictOG is the pre-existing /Encrypt object's ObjGen, set only in
	// preserve mode (the dict rides through the normal traversal/renumbering
	// like any other reachable object).
	dictOG    object.ObjGen
	hasDictOG bool
	// extraDict is a freshly built /Encrypt dictionary with no ObjGen yet,
	// set only in regenerate mode; the caller assigns it the next free
	// object number.
	extraDict *object.Handle
}

// setupEncryption resolves opts.Encryption against the source document's
// own state. id0 is needed up front because regenerate mode's
// key derivation depends on it.
func (w *Writer) setupEncryption(id0 []byte) (*encryptionPlan, error) {
	switch w.opts.Encryption {
	case config.EncryptionDisabled, "":
		return &encryptionPlan{}, nil

	case config.EncryptionPreserve:
		encOG, ok := refOG(w.in.Trailer, "Encrypt")
		if !ok || w.in.Decryptor == nil {
			return &encryptionPlan{}, nil
		}
		cw, ok := w.in.Decryptor.(cryptWriter)
		if !ok {
			return nil, pdferr.New(pdferr.CodeUnsupported, "source decryptor cannot be reused to encrypt output")
		}
		return &encryptionPlan{handler: cw, dictOG: encOG, hasDictOG: true}, nil

	case config.EncryptionRegenerate:
		perm := crypt.Permissions(w.encSpec.Perm)
		d := crypt.NewDict(w.encSpec.V, w.encSpec.R, w.encSpec.CFM, perm, w.encSpec.EncryptMetadata, id0)
		h, err := crypt.NewHandler(d)
		if err != nil {
			return nil, err
		}
		if _, err := h.GenerateParams([]byte(w.encSpec.OwnerPassword), []byte(w.encSpec.UserPassword)); err != nil {
			return nil, err
		}
		return &encryptionPlan{handler: h, extraDict: encryptDictHandle(d, w.encSpec.CFM)}, nil

	default:
		return nil, pdferr.New(pdferr.CodeLogic, "unknown encryption mode %q", w.opts.Encryption)
	}
}

// encryptDictHandle builds the /Encrypt dictionary object from a freshly
// generated crypt.Dict; there is no Dict-to-object.Handle serializer in
// package crypt, since that package never needs to write one.
func encryptDictHandle(d *crypt.Dict, cfm string) *object.Handle {
	h := object.NewDictionary()
	_ = h.Put("Filter", object.NewName("Standard"))
	_ = h.Put("V", object.NewInteger(int64(d.V)))
	_ = h.Put("R", object.NewInteger(int64(d.R)))
	_ = h.Put("Length", object.NewInteger(int64(d.Length)))
	_ = h.Put("O", object.NewString(d.O, object.EncodingRaw))
	_ = h.Put("U", object.NewString(d.U, object.EncodingRaw))
	_ = h.Put("P", object.NewInteger(int64(int32(d.P))))
	if d.R >= 5 {
		_ = h.Put("OE", object.NewString(d.OE, object.EncodingRaw))
		_ = h.Put("UE", object.NewString(d.UE, object.EncodingRaw))
		_ = h.Put("Perms", object.NewString(d.Perms, object.EncodingRaw))
	}
	if !d.EncryptMetadata {
		_ = h.Put("EncryptMetadata", object.NewBool(false))
	}
	if d.V >= 4 {
		stdcf := object.NewDictionary()
		_ = stdcf.Put("CFM", object.NewName(cfm))
		_ = stdcf.Put("AuthEvent", object.NewName("DocOpen"))
		_ = stdcf.Put("Length", object.NewInteger(int64(d.Length/8)))
		cf := object.NewDictionary()
		_ = cf.Put("StdCF", stdcf)
		_ = h.Put("CF", cf)
		_ = h.Put("StmF", object.NewName("StdCF"))
		_ = h.Put("StrF", object.NewName("StdCF"))
	}
	return h
}
