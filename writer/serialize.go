package writer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/qpdf-go/qpdfcore/object"
	"github.com/qpdf-go/qpdfcore/pdferr"
)

// writeCtx carries the state one indirect object's serialization needs:
// the renumbering table for reference translation, whether QDF formatting
// applies, and (for a non-packed object under an active encryption plan)
// the per-object key and filter name for encrypting string leaves.
//
// Strings nested inside an object packed into an object stream are never
// separately encrypted (ISO 32000-1 7.5.7): the object stream's own bytes
// are encrypted as a whole, so ctx.cryptHandler is left nil while
// serialising a container's members.
type writeCtx struct {
	g            *graph
	qdf          bool
	cryptKey     []byte
	cryptName    string
	cryptHandler cryptWriter
}

// serializeValue writes h's PDF syntax to buf, translating any reference
// child through ctx.g.renumber (step 3: direct objects inline).
func serializeValue(buf *bytes.Buffer, h *object.Handle, ctx *writeCtx) error {
	if h == nil {
		buf.WriteString("null")
		return nil
	}
	if og, isRef := h.Value().ReferenceTarget(); isRef {
		if ctx.g == nil {
			buf.WriteString("null")
			return nil
		}
		num, ok := ctx.g.renumber[og]
		if !ok {
			buf.WriteString("null")
			return nil
		}
		fmt.Fprintf(buf, "%d 0 R", num)
		return nil
	}

	switch h.Kind() {
	case object.KindNull:
		buf.WriteString("null")
	case object.KindBool:
		b, _ := h.AsBool()
		if b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case object.KindInteger:
		n, _ := h.AsInteger()
		fmt.Fprintf(buf, "%d", n)
	case object.KindReal:
		text, _ := h.Value().Real()
		buf.WriteString(formatReal(text, ctx.qdf))
	case object.KindName:
		name, _ := h.AsName()
		writeName(buf, name)
	case object.KindString:
		raw, _, _ := h.Value().RawString()
		data := raw
		if ctx.cryptHandler != nil && ctx.cryptKey != nil {
			enc, err := ctx.cryptHandler.EncryptBytes(append([]byte(nil), raw...), ctx.cryptName, ctx.cryptKey)
			if err != nil {
				return err
			}
			data = enc
		}
		writeLiteralString(buf, data)
	case object.KindArray:
		buf.WriteByte('[')
		n, _ := h.ArrayLen()
		for i := 0; i < n; i++ {
			if i > 0 {
				buf.WriteByte(' ')
			}
			elem, _ := h.ArrayGet(i)
			if err := serializeValue(buf, elem, ctx); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case object.KindDictionary:
		if err := serializeDict(buf, h, ctx); err != nil {
			return err
		}
	default:
		return pdferr.New(pdferr.CodeLogic, "cannot serialise a %s value inline", h.Kind())
	}
	return nil
}

func serializeDict(buf *bytes.Buffer, h *object.Handle, ctx *writeCtx) error {
	buf.WriteString("<<")
	for _, k := range h.Keys() {
		buf.WriteByte(' ')
		writeName(buf, k)
		buf.WriteByte(' ')
		v, _ := h.Get(k)
		if err := serializeValue(buf, v, ctx); err != nil {
			return err
		}
	}
	buf.WriteString(" >>")
	return nil
}

// writeName hex-escapes any byte that is not a safe, regular name character
// (step 3 "names hex-escaping non-token bytes").
func writeName(buf *bytes.Buffer, name string) {
	buf.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isRegularNameByte(c) {
			buf.WriteByte(c)
		} else {
			fmt.Fprintf(buf, "#%02X", c)
		}
	}
}

func isRegularNameByte(c byte) bool {
	if c <= 0x20 || c == 0x7F || c >= 0x80 {
		return false
	}
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%', '#':
		return false
	}
	return true
}

// writeLiteralString escapes only what literal-string syntax requires:
// backslash, the two parens, and CR/LF (escaped rather than left raw, since
// an un-escaped end-of-line marker is normalised to LF on re-parse per ISO
// 32000-1 7.3.4.2 and would silently corrupt a string holding a real CR).
func writeLiteralString(buf *bytes.Buffer, data []byte) {
	buf.WriteByte('(')
	for _, c := range data {
		switch c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\r':
			buf.WriteString(`\r`)
		case '\n':
			buf.WriteString(`\n`)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(')')
}

// formatReal trims trailing fractional zeros (and a bare trailing point),
// the way qpdf normalises reals on output, unless QDF mode asks for the
// source text verbatim (step 3 "reals without trailing zeros unless
// QDF mode").
func formatReal(text string, qdf bool) string {
	if qdf || text == "" || !strings.ContainsRune(text, '.') {
		return text
	}
	t := strings.TrimRight(text, "0")
	t = strings.TrimSuffix(t, ".")
	if t == "" || t == "-" {
		return "0"
	}
	return t
}
