// Package warnings implements structured, non-fatal diagnostics with
// provenance. Parsing and repair routines append a Warning instead of
// aborting; callers decide afterwards whether "warnings present" should be
// treated as a soft failure (qpdf's exit code 3 convention, see Kind docs).
package warnings

import "fmt"

// Kind classifies a Warning the way the error taxonomy in does.
type Kind int

const (
	// KindDamagedPDF marks a parse or xref inconsistency that was repaired
	// or papered over with a safe fallback.
	KindDamagedPDF Kind = iota
	// KindUnsupported marks a recognised-but-unimplemented feature, e.g. an
	// unknown filter at a decode level that requires it.
	KindUnsupported
	// KindObject marks a type mismatch or out-of-range access on a handle.
	KindObject
	// KindPassword marks an encryption key/password problem that did not
	// abort the operation (e.g. empty-user-password fallback succeeded).
	KindPassword
)

func (k Kind) String() string {
	switch k {
	case KindDamagedPDF:
		return "damaged-pdf"
	case KindUnsupported:
		return "unsupported"
	case KindObject:
		return "object"
	case KindPassword:
		return "password"
	default:
		return "unknown"
	}
}

// Warning is a single diagnostic with enough provenance to point a user at
// the exact byte that triggered it.
type Warning struct {
	Kind Kind
	// File is the name or path of the input the warning was raised against.
	File string
	// Object describes the object in question, e.g. "12 0 obj", "trailer",
	// "object stream 4, index 2". Empty when no single object is at fault.
	Object string
	// Offset is the byte offset in File where the problem was detected, or
	// -1 if not applicable.
	Offset int64
	// Message is a short human-readable description.
	Message string
}

// Error implements the error interface so a Warning can be returned directly
// from helpers that want to describe what they recovered from.
func (w Warning) Error() string {
	return w.String()
}

// String renders the warning with the "file: object at offset: message"
// shape used throughout the library's diagnostic output.
func (w Warning) String() string {
	var b []byte
	b = append(b, w.File...)
	b = append(b, ':')
	if w.Object != "" {
		b = append(b, ' ')
		b = append(b, w.Object...)
	}
	if w.Offset >= 0 {
		b = append(b, []byte(fmt.Sprintf(" at offset %d", w.Offset))...)
	}
	b = append(b, ": "...)
	b = append(b, w.Message...)
	return string(b)
}

// List is an append-only, capped collection of Warnings attached to a
// document. Once the cap is reached, further warnings are silently dropped
// but counted, matching qpdf's max_warnings behaviour: processing is never
// stopped by the cap, only the recording of messages.
type List struct {
	items   []Warning
	total   int
	maxKept int
}

// DefaultMaxWarnings is the default cap on retained warning messages. It is
// generous enough that ordinary damaged files never hit it, but bounds
// memory use on pathological inputs that ping-pong between repair attempts.
const DefaultMaxWarnings = 1000

// NewList creates an empty warning list with the given retention cap. A cap
// of 0 means "use DefaultMaxWarnings".
func NewList(maxKept int) *List {
	if maxKept <= 0 {
		maxKept = DefaultMaxWarnings
	}
	return &List{maxKept: maxKept}
}

// Add appends a warning, subject to the retention cap. The total count (used
// for exit-code decisions) is always incremented.
func (l *List) Add(w Warning) {
	l.total++
	if len(l.items) >= l.maxKept {
		return
	}
	l.items = append(l.items, w)
}

// Addf is a convenience constructor for Add.
func (l *List) Addf(kind Kind, file, object string, offset int64, format string, args ...interface{}) {
	l.Add(Warning{
		Kind:    kind,
		File:    file,
		Object:  object,
		Offset:  offset,
		Message: fmt.Sprintf(format, args...),
	})
}

// Items returns the retained warnings, in the order they were recorded.
func (l *List) Items() []Warning {
	if l == nil {
		return nil
	}
	return l.items
}

// Total returns the number of warnings raised, including ones dropped once
// the retention cap was reached.
func (l *List) Total() int {
	if l == nil {
		return 0
	}
	return l.total
}

// Truncated reports whether any warnings were dropped due to the cap.
func (l *List) Truncated() bool {
	return l != nil && l.total > len(l.items)
}

// ExitCode maps the presence of warnings/errors onto the CLI exit-code
// convention described in : 0 clean, 2 hard error (handled by the caller,
// not here), 3 success-with-warnings.
func (l *List) ExitCode() int {
	if l.Total() > 0 {
		return 3
	}
	return 0
}
