// Package qdffix re-normalises a PDF written in QDF mode (config.WriterOptions
// QDFMode, "QDF mode") after hand editing. QDF output lays each object on
// its own line specifically so a text editor can add, remove, or reorder
// bytes; doing so invalidates every stream length, object-stream member
// offset, and xref entry the file records. This package recomputes all of
// that from the edited line stream, without re-parsing the PDF as an object
// graph.
//
// Grounded on original_source/qpdf/fix-qdf.cc's QdfFixer: the same
// line-regex-driven state machine, reshaped as a Go io.Reader/io.Writer pass
// instead of an in-process std::list<std::string> buffer, with fatal() exits
// replaced by returned *pdferr.Error values.
package qdffix

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/qpdf-go/qpdfcore/pdferr"
)

type xrefEntryType int

const (
	xrefDirect     xrefEntryType = 1
	xrefCompressed xrefEntryType = 2
)

type xrefEntry struct {
	typ         xrefEntryType
	offset      int64 // xrefDirect: byte offset of "N 0 obj"
	streamNum   int   // xrefCompressed: containing object stream's number
	streamIndex int   // xrefCompressed: index within that stream
}

type state int

const (
	stTop state = iota
	stInObj
	stInStream
	stAfterStream
	stInOstreamDict
	stInOstreamOffsets
	stInOstreamOuter
	stInOstreamObj
	stInXrefStreamDict
	stInLength
	stAtXref
	stBeforeTrailer
	stInTrailer
	stDone
)

var (
	reNObj       = regexp.MustCompile(`^(\d+) 0 obj\n$`)
	reXref       = regexp.MustCompile(`^xref\n$`)
	reStream     = regexp.MustCompile(`^stream\n$`)
	reEndobj     = regexp.MustCompile(`^endobj\n$`)
	reTypeObjStm = regexp.MustCompile(`/Type /ObjStm`)
	reTypeXRef   = regexp.MustCompile(`/Type /XRef`)
	reExtends    = regexp.MustCompile(`/Extends (\d+ 0 R)`)
	reOstreamObj = regexp.MustCompile(`^%% Object stream: object (\d+)`)
	reEndstream  = regexp.MustCompile(`^endstream\n$`)
	reLengthOrW  = regexp.MustCompile(`/(Length|W) `)
	reSize       = regexp.MustCompile(`/Size `)
	reIgnoreNL   = regexp.MustCompile(`^%QDF: ignore_newline\n$`)
	reNum        = regexp.MustCompile(`^\d+\n$`)
	reTrailer    = regexp.MustCompile(`^trailer <<`)
	reSizeN      = regexp.MustCompile(`^  /Size \d+\n$`)
	reDictEnd    = regexp.MustCompile(`^>>\n$`)
)

// Fixer replays a QDF-mode PDF line by line through a fixed state machine.
// A Fixer is single-use: create a new one per file with NewFixer.
type Fixer struct {
	context string

	state      state
	lineno     int
	offset     int64
	lastOffset int64
	lastObj    int

	xref         []xrefEntry
	streamStart  int64
	streamLength int64

	xrefOffset  int64
	xrefF1Bytes int
	xrefF2Bytes int

	ostream        []string
	ostreamOffsets []int64
	ostreamDiscard []string
	ostreamIdx     int
	ostreamID      int
	ostreamExtends string
}

// NewFixer creates a Fixer that names context (typically the input
// filename) in any error it returns.
func NewFixer(context string) *Fixer {
	return &Fixer{context: context}
}

// Fix reads a QDF-mode PDF from r and writes its re-normalised form to w.
func (f *Fixer) Fix(r io.Reader, w io.Writer) error {
	out := bufio.NewWriter(w)
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			if procErr := f.processLine(out, line); procErr != nil {
				return procErr
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
	}
	return out.Flush()
}

func (f *Fixer) fatal(format string, args ...interface{}) error {
	return pdferr.New(pdferr.CodeDamagedPDF, "%s:%d: %s", f.context, f.lineno, fmt.Sprintf(format, args...))
}

func (f *Fixer) processLine(out *bufio.Writer, line string) error {
	f.lineno++
	f.lastOffset = f.offset
	f.offset += int64(len(line))

	switch f.state {
	case stTop:
		return f.handleTop(out, line)
	case stInObj:
		return f.handleInObj(out, line)
	case stInOstreamDict:
		return f.handleInOstreamDict(line)
	case stInOstreamOffsets:
		return f.handleInOstreamOffsets(line)
	case stInOstreamOuter:
		return f.handleInOstreamOuter(line)
	case stInOstreamObj:
		return f.handleInOstreamObj(out, line)
	case stInXrefStreamDict:
		return f.handleInXrefStreamDict(out, line)
	case stInStream:
		return f.handleInStream(out, line)
	case stAfterStream:
		return f.handleAfterStream(out, line)
	case stInLength:
		return f.handleInLength(out, line)
	case stAtXref:
		return f.handleAtXref(out)
	case stBeforeTrailer:
		return f.handleBeforeTrailer(out, line)
	case stInTrailer:
		return f.handleInTrailer(out, line)
	case stDone:
		return nil
	}
	return nil
}

func (f *Fixer) checkObjID(curObjStr string) error {
	cur, err := strconv.Atoi(curObjStr)
	if err != nil {
		return f.fatal("malformed object number %q", curObjStr)
	}
	if cur != f.lastObj+1 {
		return f.fatal("expected object %d", f.lastObj+1)
	}
	f.lastObj = cur
	f.xref = append(f.xref, xrefEntry{typ: xrefDirect, offset: f.lastOffset})
	return nil
}

func (f *Fixer) adjustOstreamXref() {
	f.xref = f.xref[:len(f.xref)-1]
	f.xref = append(f.xref, xrefEntry{typ: xrefCompressed, streamNum: f.ostreamID, streamIndex: f.ostreamIdx})
	f.ostreamIdx++
}

func (f *Fixer) handleTop(out *bufio.Writer, line string) error {
	if m := reNObj.FindStringSubmatch(line); m != nil {
		if err := f.checkObjID(m[1]); err != nil {
			return err
		}
		f.state = stInObj
	} else if reXref.MatchString(line) {
		f.xrefOffset = f.lastOffset
		f.state = stAtXref
	}
	out.WriteString(line)
	return nil
}

func (f *Fixer) handleInObj(out *bufio.Writer, line string) error {
	out.WriteString(line)
	switch {
	case reStream.MatchString(line):
		f.state = stInStream
		f.streamStart = f.offset
	case reEndobj.MatchString(line):
		f.state = stTop
	case reTypeObjStm.MatchString(line):
		f.state = stInOstreamDict
		f.ostreamID = f.lastObj
	case reTypeXRef.MatchString(line):
		f.xrefOffset = f.xref[len(f.xref)-1].offset
		f.xrefF1Bytes = byteWidth(f.xrefOffset)

		maxIndex := 1
		for _, e := range f.xref {
			if e.typ == xrefCompressed && e.streamIndex > maxIndex {
				maxIndex = e.streamIndex
			}
		}
		f.xrefF2Bytes = byteWidth(int64(maxIndex))

		esize := 1 + f.xrefF1Bytes + f.xrefF2Bytes
		size := 1 + len(f.xref)
		fmt.Fprintf(out, "  /Length %d\n  /W [ 1 %d %d ]\n", size*esize, f.xrefF1Bytes, f.xrefF2Bytes)
		f.state = stInXrefStreamDict
	}
	return nil
}

// byteWidth is fix-qdf.cc's inline "shift until zero, count bytes" idiom,
// with the same "at least one byte" floor any /W computation relies on.
func byteWidth(n int64) int {
	w := 0
	for n != 0 {
		n >>= 8
		w++
	}
	if w == 0 {
		w = 1
	}
	return w
}

func (f *Fixer) handleInXrefStreamDict(out *bufio.Writer, line string) error {
	switch {
	case reLengthOrW.MatchString(line):
		// already emitted when the dict was opened
	case reSize.MatchString(line):
		fmt.Fprintf(out, "  /Size %d\n", 1+len(f.xref))
	default:
		out.WriteString(line)
	}
	if reStream.MatchString(line) {
		writeUint(out, 0, 1)
		writeUint(out, 0, f.xrefF1Bytes)
		writeUint(out, 0, f.xrefF2Bytes)
		for _, e := range f.xref {
			var f1, f2 uint64
			if e.typ == xrefDirect {
				f1 = uint64(e.offset)
			} else {
				f1 = uint64(e.streamNum)
				f2 = uint64(e.streamIndex)
			}
			writeUint(out, uint64(e.typ), 1)
			writeUint(out, f1, f.xrefF1Bytes)
			writeUint(out, f2, f.xrefF2Bytes)
		}
		fmt.Fprintf(out, "\nendstream\nendobj\n\nstartxref\n%d\n%%%%EOF\n", f.xrefOffset)
		f.state = stDone
	}
	return nil
}

func writeUint(out *bufio.Writer, val uint64, width int) {
	for i := width - 1; i >= 0; i-- {
		out.WriteByte(byte(val >> (8 * uint(i))))
	}
}

func (f *Fixer) handleInStream(out *bufio.Writer, line string) error {
	if reEndstream.MatchString(line) {
		f.streamLength = f.lastOffset - f.streamStart
		f.state = stAfterStream
	}
	out.WriteString(line)
	return nil
}

func (f *Fixer) handleAfterStream(out *bufio.Writer, line string) error {
	switch {
	case reIgnoreNL.MatchString(line):
		if f.streamLength > 0 {
			f.streamLength--
		}
	case reNObj.MatchString(line):
		m := reNObj.FindStringSubmatch(line)
		if err := f.checkObjID(m[1]); err != nil {
			return err
		}
		f.state = stInLength
	}
	out.WriteString(line)
	return nil
}

func (f *Fixer) handleInLength(out *bufio.Writer, line string) error {
	if !reNum.MatchString(line) {
		return f.fatal("expected integer")
	}
	newLength := fmt.Sprintf("%d\n", f.streamLength)
	f.offset -= int64(len(line))
	f.offset += int64(len(newLength))
	out.WriteString(newLength)
	f.state = stTop
	return nil
}

func (f *Fixer) handleAtXref(out *bufio.Writer) error {
	n := len(f.xref)
	fmt.Fprintf(out, "0 %d\n0000000000 65535 f \n", 1+n)
	for _, e := range f.xref {
		fmt.Fprintf(out, "%010d 00000 n \n", e.offset)
	}
	f.state = stBeforeTrailer
	return nil
}

func (f *Fixer) handleBeforeTrailer(out *bufio.Writer, line string) error {
	if reTrailer.MatchString(line) {
		out.WriteString(line)
		f.state = stInTrailer
	}
	return nil
}

func (f *Fixer) handleInTrailer(out *bufio.Writer, line string) error {
	if reSizeN.MatchString(line) {
		fmt.Fprintf(out, "  /Size %d\n", 1+len(f.xref))
	} else {
		out.WriteString(line)
	}
	if reDictEnd.MatchString(line) {
		fmt.Fprintf(out, "startxref\n%d\n%%%%EOF\n", f.xrefOffset)
		f.state = stDone
	}
	return nil
}

func (f *Fixer) handleInOstreamDict(line string) error {
	if reStream.MatchString(line) {
		f.state = stInOstreamOffsets
		return nil
	}
	f.ostreamDiscard = append(f.ostreamDiscard, line)
	if m := reExtends.FindStringSubmatch(line); m != nil {
		f.ostreamExtends = m[1]
	}
	return nil
}

func (f *Fixer) handleInOstreamOffsets(line string) error {
	if m := reOstreamObj.FindStringSubmatch(line); m != nil {
		if err := f.checkObjID(m[1]); err != nil {
			return err
		}
		f.streamStart = f.lastOffset
		f.state = stInOstreamOuter
		f.ostream = append(f.ostream, line)
		return nil
	}
	f.ostreamDiscard = append(f.ostreamDiscard, line)
	return nil
}

func (f *Fixer) handleInOstreamOuter(line string) error {
	f.adjustOstreamXref()
	f.ostreamOffsets = append(f.ostreamOffsets, f.lastOffset-f.streamStart)
	f.state = stInOstreamObj
	f.ostream = append(f.ostream, line)
	return nil
}

func (f *Fixer) handleInOstreamObj(out *bufio.Writer, line string) error {
	f.ostream = append(f.ostream, line)
	switch {
	case reOstreamObj.MatchString(line):
		m := reOstreamObj.FindStringSubmatch(line)
		if err := f.checkObjID(m[1]); err != nil {
			return err
		}
		f.state = stInOstreamOuter
	case reEndstream.MatchString(line):
		f.streamLength = f.lastOffset - f.streamStart
		f.writeOstream(out)
		f.state = stInObj
	}
	return nil
}

// writeOstream emits the just-collected object stream's header and body
// with recomputed /N, /First, and per-member offsets (fix-qdf.cc's
// writeOstream): offsets are relative to the first member, and the offset
// table itself shifts /First forward by however many bytes it occupies.
func (f *Fixer) writeOstream(out *bufio.Writer) {
	first := f.ostreamOffsets[0]
	onum := f.ostreamID
	var offsets strings.Builder
	n := len(f.ostreamOffsets)
	for _, off := range f.ostreamOffsets {
		onum++
		fmt.Fprintf(&offsets, "%d %d\n", onum, off-first)
	}
	offsetAdjust := int64(offsets.Len())
	first += offsetAdjust
	f.streamLength += offsetAdjust

	var dict strings.Builder
	fmt.Fprintf(&dict, "  /Length %d\n", f.streamLength)
	fmt.Fprintf(&dict, "  /N %d\n", n)
	fmt.Fprintf(&dict, "  /First %d\n", first)
	if f.ostreamExtends != "" {
		fmt.Fprintf(&dict, "  /Extends %s\n", f.ostreamExtends)
	}
	dict.WriteString(">>\n")
	offsetAdjust += int64(dict.Len())

	out.WriteString(dict.String())
	out.WriteString("stream\n")
	out.WriteString(offsets.String())
	for _, o := range f.ostream {
		out.WriteString(o)
	}

	for _, o := range f.ostreamDiscard {
		f.offset -= int64(len(o))
	}
	f.offset += offsetAdjust

	f.ostreamIdx = 0
	f.ostreamID = 0
	f.ostream = nil
	f.ostreamOffsets = nil
	f.ostreamDiscard = nil
	f.ostreamExtends = ""
}
