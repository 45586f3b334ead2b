// Package writer implements the output stage: it walks the object
// graph reachable from a resolved document's trailer, renumbers it,
// optionally packs objects into object streams, and serialises the result as
// a single self-contained PDF file — renumbering always starts clean (no
// incremental-update/append mode), matching qdf/full-rewrite operation
// rather than unidoc-unipdf's incremental PdfAppender path.
//
// Grounded on unidoc-unipdf/model/writer.go (PdfWriter.Write's traverse,
// renumber, object-stream-pack, xref-emit sequence) and
// unidoc-unipdf/core/security_handler.go for how an encryption handler is
// threaded through the per-object write loop.
package writer

import (
	"bytes"
	"crypto/md5"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/qpdf-go/qpdfcore/config"
	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/pdferr"
	"github.com/qpdf-go/qpdfcore/resolve"
	"github.com/qpdf-go/qpdfcore/stream"
	"github.com/qpdf-go/qpdfcore/warnings"
)

// Input bundles the already-open document state the writer reads from.
type Input struct {
	// Resolver materialises the indirect objects the traversal discovers.
	Resolver *resolve.Resolver
	// Trailer is the document's merged trailer dictionary (xref.Table.Trailer).
	Trailer *object.Handle
	// Decryptor decrypts the source document's existing stream/string bytes
	// as they are copied into the new file; nil if the source is unencrypted.
	Decryptor stream.Decryptor
	// Runtime supplies process-wide limits (filter chain length, ...).
	Runtime *config.Runtime
	// Warnings collects recoverable problems found while writing.
	Warnings *warnings.List
	// Context names the document in warning provenance.
	Context string
}

// EncryptSpec supplies the parameters a "regenerate" encryption disposition
// needs ("encryption: regenerate({user_pw, owner_pw, R, V, perms})").
// config.WriterOptions only names the disposition, not these parameters,
// since package config has no dependency on package crypt.
type EncryptSpec struct {
	UserPassword, OwnerPassword string
	V, R                        int
	// CFM selects the crypt filter method for V>=4: "AESV2" or "AESV3".
	CFM             string
	Perm            uint32
	EncryptMetadata bool
}

// Writer renders one document as a new PDF file.
type Writer struct {
	in      Input
	opts    config.WriterOptions
	encSpec EncryptSpec
}

// New creates a Writer. encSpec is only consulted when
// opts.Encryption == config.EncryptionRegenerate.
func New(in Input, opts config.WriterOptions, encSpec EncryptSpec) *Writer {
	return &Writer{in: in, opts: opts, encSpec: encSpec}
}

// Write renders the document to dst (steps 1-8). Per write-error
// policy, the entire output is built in memory first; dst only sees bytes
// once rendering has fully succeeded, so a caller writing to a temp file and
// renaming on success never observes a partial file from a failed Write.
func (w *Writer) Write(dst io.Writer) error {
	opts := w.opts
	if opts.ObjectStreamThreshold <= 0 {
		opts.ObjectStreamThreshold = 100
	}
	if opts.QDFMode {
		// QDF mode trades compactness for editability: no object is packed
		// into an object stream and streams are written decoded. No QDF
		// comment markers (such as a %QDF-1.0 header line) are written.
		opts.ObjectStreams = config.ObjectStreamsDisable
		opts.StreamData = config.StreamDataUncompress
	}
	w.opts = opts

	g, err := w.buildGraph()
	if err != nil {
		return pdferr.Wrap(pdferr.CodeLogic, err, "traversing object graph")
	}

	rootOG, hasRoot := refOG(w.in.Trailer, "Root")
	infoOG, hasInfo := refOG(w.in.Trailer, "Info")

	id0 := w.resolveID0()

	plan, err := w.setupEncryption(id0)
	if err != nil {
		return err
	}

	base := 0
	if opts.Linearize {
		base = 1
	}
	for k, v := range g.renumber {
		g.renumber[k] = v + base
	}

	var encOG object.ObjGen
	var hasEncOG bool
	encObjNum := 0
	if plan.hasDictOG {
		encOG, hasEncOG = plan.dictOG, true
		encObjNum = g.renumber[encOG]
	}

	containers := w.planObjectStreams(g, rootOG, encObjNum)
	memberOf := make(map[object.ObjGen]int)
	memberIdx := make(map[object.ObjGen]int)
	nextNum := len(g.order) + base + 1
	for ci := range containers {
		containers[ci].num = nextNum
		nextNum++
		for i, og := range containers[ci].members {
			memberOf[og] = ci
			memberIdx[og] = i
		}
	}

	extraObjNum := 0
	if plan.extraDict != nil {
		extraObjNum = nextNum
		nextNum++
		encObjNum = extraObjNum
	}

	useXrefStream := len(containers) > 0
	xrefObjNum := 0
	if useXrefStream {
		xrefObjNum = nextNum
		nextNum++
	}
	size := nextNum

	rootNum := 0
	if hasRoot {
		rootNum = g.renumber[rootOG]
	}
	infoNum := 0
	if hasInfo {
		infoNum = g.renumber[infoOG]
	}
	_ = hasEncOG

	var out bytes.Buffer
	version := w.headerVersion(g, rootOG, hasRoot, useXrefStream)
	fmt.Fprintf(&out, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", version)

	entries := map[int]xrefEntry{0: {typ: 0}}

	var linOff, linLOff, linTOff int
	if opts.Linearize {
		linOff = out.Len()
		var lOff, tOff int
		lOff, tOff = writeLinDictPlaceholder(&out, rootNum)
		linLOff = lOff
		linTOff = tOff
		entries[1] = xrefEntry{typ: 1, offset: int64(linOff)}
	}

	for _, og := range g.order {
		num := g.renumber[og]
		if ci, ok := memberOf[og]; ok {
			entries[num] = xrefEntry{typ: 2, containerNum: containers[ci].num, index: memberIdx[og]}
			continue
		}
		h := g.handles[og]
		offset := int64(out.Len())
		if err := w.writeObject(&out, num, og, h, g, plan, num == encObjNum); err != nil {
			return pdferr.Wrap(pdferr.CodeSystem, err, "writing object %s", og.String())
		}
		entries[num] = xrefEntry{typ: 1, offset: offset}
	}

	for _, c := range containers {
		offset := int64(out.Len())
		if err := w.writeObjectStreamContainer(&out, c, g, plan); err != nil {
			return pdferr.Wrap(pdferr.CodeSystem, err, "writing object stream %d", c.num)
		}
		entries[c.num] = xrefEntry{typ: 1, offset: offset}
	}

	if plan.extraDict != nil {
		offset := int64(out.Len())
		fmt.Fprintf(&out, "%d 0 obj\n", extraObjNum)
		ctx := &writeCtx{g: g, qdf: opts.QDFMode}
		if err := serializeDict(&out, plan.extraDict, ctx); err != nil {
			return err
		}
		out.WriteString("\nendobj\n")
		entries[extraObjNum] = xrefEntry{typ: 1, offset: offset}
	}

	id1 := w.computeID1(out.Bytes())

	var startxref int64
	if useXrefStream {
		startxref = int64(out.Len())
		if err := w.writeXrefStream(&out, xrefObjNum, entries, size, rootNum, infoNum, encObjNum, id0, id1); err != nil {
			return err
		}
	} else {
		startxref = int64(out.Len())
		writeClassicXref(&out, entries, size, rootNum, infoNum, encObjNum, id0, id1)
	}
	fmt.Fprintf(&out, "startxref\n%d\n%%%%EOF\n", startxref)

	final := out.Bytes()
	if opts.Linearize {
		copy(final[linLOff:linLOff+10], []byte(fmt.Sprintf("%010d", len(final))))
		copy(final[linTOff:linTOff+10], []byte(fmt.Sprintf("%010d", startxref)))
		_ = linOff
	}

	if _, err := dst.Write(final); err != nil {
		return pdferr.Wrap(pdferr.CodeSystem, err, "writing output")
	}
	return nil
}

// refOG returns the ObjGen an indirect-reference-valued key points at.
func refOG(dict *object.Handle, key string) (object.ObjGen, bool) {
	v, ok := dict.Get(key)
	if !ok {
		return object.ObjGen{}, false
	}
	return v.Value().ReferenceTarget()
}

func (w *Writer) headerVersion(g *graph, rootOG object.ObjGen, hasRoot bool, useXrefStream bool) string {
	maj, min := 1, 7
	if hasRoot {
		if h, ok := g.handles[rootOG]; ok {
			if v, ok := h.Get("Version"); ok {
				if name, ok := v.AsName(); ok {
					var m, n int
					if _, err := fmt.Sscanf(name, "%d.%d", &m, &n); err == nil && m > 0 {
						maj, min = m, n
					}
				}
			}
		}
	}
	if useXrefStream && maj == 1 && min < 5 {
		min = 5
	}
	return fmt.Sprintf("%d.%d", maj, min)
}

func (w *Writer) resolveID0() []byte {
	if arr, ok := w.in.Trailer.Get("ID"); ok {
		if n, ok := arr.ArrayLen(); ok && n >= 1 {
			if e, ok := arr.ArrayGet(0); ok {
				if raw, _, ok := e.Value().RawString(); ok && len(raw) > 0 {
					return append([]byte(nil), raw...)
				}
			}
		}
	}
	return randomBytes(16)
}

func (w *Writer) computeID1(writtenSoFar []byte) []byte {
	switch w.opts.IDMode {
	case config.IDStatic:
		return staticID()
	case config.IDRandom:
		return randomBytes(16)
	default: // deterministic
		sum := md5.Sum(writtenSoFar)
		return sum[:]
	}
}

func staticID() []byte {
	return []byte("qpdfcore-static-id")[:16]
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = io.ReadFull(rand.Reader, b)
	return b
}

func writeLinDictPlaceholder(out *bytes.Buffer, rootNum int) (lOff, tOff int) {
	out.WriteString("1 0 obj\n<< /Linearized 1 /L ")
	lOff = out.Len()
	out.WriteString("0000000000")
	fmt.Fprintf(out, " /H [ 0 0 ] /O %d /E 0 /N 1 /T ", rootNum)
	tOff = out.Len()
	out.WriteString("0000000000")
	out.WriteString(" >>\nendobj\n")
	return
}
