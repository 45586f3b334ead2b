// Package object implements the PDF object value model: a tagged-variant
// Value type with shared-cell semantics for indirect objects, modeled as
// an arena of cells keyed by ObjGen rather than a reference-counted-
// handle-plus-weak-back-pointer scheme, to support shared mutable
// indirect objects with cycles.
package object

import "fmt"

// ObjGen identifies an indirect object by (object id, generation). The zero
// value, ObjGen{0, 0}, is reserved and denotes the null object.
type ObjGen struct {
	ID  uint32
	Gen uint16
}

// String renders an ObjGen the way it appears in PDF syntax, "N G R".
func (og ObjGen) String() string {
	return fmt.Sprintf("%d %d R", og.ID, og.Gen)
}

// IsNull reports whether og is the reserved null ObjGen.
func (og ObjGen) IsNull() bool {
	return og.ID == 0 && og.Gen == 0
}
