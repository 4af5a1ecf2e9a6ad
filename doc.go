// Package spreadsheet is the cell graph and formula evaluation engine of a
// minimal spreadsheet: a sparse sheet of cells identified by (row, column)
// positions, each holding nothing, literal text, or a formula. Formula
// values are memoized on first read and invalidated when any transitively
// referenced cell is rewritten; circular references are rejected at
// assignment time.
//
// The package does not know formula grammar — that boundary lives in
// sibling package "formula" — and it does not persist or print anything
// beyond the plain-text PrintValues/PrintTexts dump; a richer textual
// surface, a command-line tool, and on-disk formats are all out of scope.
package spreadsheet

import "github.com/Ganfo-cmd/go-spreadsheet/position"

// Position, Size, and Limits are re-exported from package position so
// callers of this package rarely need to import it directly.
type (
	Position = position.Position
	Size     = position.Size
	Limits   = position.Limits
)

// NewPosition builds a Position from zero-based indices.
func NewPosition(row, col int) Position {
	return position.New(row, col)
}

// ParsePosition parses the canonical "A1" text form.
func ParsePosition(s string) (Position, error) {
	return position.Parse(s)
}

// DefaultLimits returns the recommended 16384x16384 grid bound.
func DefaultLimits() Limits {
	return position.DefaultLimits()
}
