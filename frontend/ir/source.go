package ir

import (
	"fmt"
)

// Positioner allows finding the location of a node in the document it was loaded from.
// The easiest way to be a Positioner is to embed a Range
type Positioner interface {
	Pos() Range
}

// Range is the line and column a node starts at. The zero Range is unknown.
type Range struct {
	Line   int
	Column int
}

func (r Range) Pos() Range { return r }
func (r Range) String() string {
	if r.Line == 0 {
		return "?"
	}
	return fmt.Sprintf("%d:%d", r.Line, r.Column)
}

// RangeOf returns the Range of p, or the zero Range if p is nil
func RangeOf(p Positioner) Range {
	if p == nil {
		return Range{}
	}
	return p.Pos()
}
