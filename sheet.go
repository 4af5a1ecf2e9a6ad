package spreadsheet

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/Ganfo-cmd/go-spreadsheet/formula"
	"github.com/Ganfo-cmd/go-spreadsheet/position"
)

// Sheet is a sparse mapping from Position to owned Cell, plus the public
// mutation and query surface. It allocates cells on demand, propagates
// Set/Clear through to them, detects cycles before installing a formula,
// and doubles as the read-only view passed into formula evaluation.
type Sheet struct {
	cells  map[position.Position]*Cell
	limits position.Limits
	logger zerolog.Logger
}

// Option configures a Sheet at construction time.
type Option func(*Sheet)

// WithLimits narrows the sheet's valid position range below the default
// 16384x16384 grid. Useful for tests that want small, fast fixtures.
func WithLimits(rows, cols int) Option {
	return func(s *Sheet) {
		s.limits = position.Limits{Rows: rows, Cols: cols}
	}
}

// WithLogger attaches a structured logger. Mutations and cache-invalidation
// cascades emit Debug/Trace events through it; the default is a no-op
// logger, so logging is purely observational unless a caller opts in.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Sheet) {
		s.logger = logger
	}
}

// NewSheet creates an empty sheet with the default grid limits and a no-op
// logger, as modified by opts.
func NewSheet(opts ...Option) *Sheet {
	s := &Sheet{
		cells:  make(map[position.Position]*Cell),
		limits: position.DefaultLimits(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ensureCell returns the cell at pos, creating it as Empty if absent. It is
// used both for auto-materializing formula referents and by SetCell for the
// target position itself. Callers are responsible for validating pos first.
func (s *Sheet) ensureCell(pos position.Position) *Cell {
	if c, ok := s.cells[pos]; ok {
		return c
	}
	c := newCell(s, pos)
	s.cells[pos] = c
	return c
}

// reachesThroughCandidates runs a breadth-first search over the existing
// forward graph to determine whether installing candidate as this's new
// forward references would create a cycle. The first hop uses candidate
// (the prospective reference set of the formula being assigned to this)
// rather than this's current forward edges. A candidate position with no
// cell yet contributes no outgoing edges and so cannot close a cycle on
// its own.
func (s *Sheet) reachesThroughCandidates(this *Cell, candidate []position.Position) bool {
	visited := make(map[position.Position]bool)
	queue := append([]position.Position(nil), candidate...)

	for len(queue) > 0 {
		pos := queue[0]
		queue = queue[1:]

		if pos == this.pos {
			return true
		}
		if visited[pos] {
			continue
		}
		visited[pos] = true

		cell, ok := s.cells[pos]
		if !ok {
			continue
		}
		for fpos := range cell.forward {
			queue = append(queue, fpos)
		}
	}
	return false
}

// invalidateReverseCache clears the memoized result of every formula cell
// transitively reverse-reachable from c. Traversal always walks the full
// reverse graph, including past dependents whose cache is already empty.
func (s *Sheet) invalidateReverseCache(c *Cell) {
	visited := make(map[*Cell]bool)
	queue := make([]*Cell, 0, len(c.reverse))
	for _, r := range c.reverse {
		queue = append(queue, r)
	}

	cleared := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true

		if cur.cache != nil {
			cur.clearCache()
			cleared++
		}
		for _, r := range cur.reverse {
			queue = append(queue, r)
		}
	}

	if cleared > 0 {
		s.logger.Trace().Str("pos", c.pos.String()).Int("invalidated", cleared).Msg("cache invalidation cascade")
	}
}

// SetCell creates the cell at pos if absent, then delegates to its Set.
// Errors from Set propagate and the cell is left exactly as Set left it; a
// cell auto-created by this call is retained, as Empty, even when Set then
// fails.
func (s *Sheet) SetCell(pos position.Position, text string) error {
	if !pos.IsValid(s.limits) {
		return errInvalidPosition(pos)
	}
	c := s.ensureCell(pos)
	return c.Set(text)
}

// GetCell returns the cell at pos, or nil if there is no cell there (none
// was ever materialized, or ClearCell removed it).
func (s *Sheet) GetCell(pos position.Position) (*Cell, error) {
	if !pos.IsValid(s.limits) {
		return nil, errInvalidPosition(pos)
	}
	return s.cells[pos], nil
}

// ClearCell resets the cell at pos to Empty. When the cell still has
// reverse references, the mapping entry is retained (converted to Empty in
// place) so those edges never dangle; otherwise the entry is removed.
// Clearing a position with no cell is a no-op, which is what makes
// back-to-back ClearCell calls idempotent (property P4).
func (s *Sheet) ClearCell(pos position.Position) error {
	if !pos.IsValid(s.limits) {
		return errInvalidPosition(pos)
	}
	c, ok := s.cells[pos]
	if !ok {
		return nil
	}
	c.Clear()
	if !c.IsReferenced() {
		delete(s.cells, pos)
	}
	s.logger.Debug().Str("pos", pos.String()).Msg("cell cleared")
	return nil
}

// GetPrintableSize returns the smallest bounding box containing every
// non-Empty cell. Empty placeholder cells (materialized only to satisfy
// invariant I5) never extend the box.
func (s *Sheet) GetPrintableSize() position.Size {
	var size position.Size
	for pos, c := range s.cells {
		if c.kind == kindEmpty {
			continue
		}
		size.Grow(pos)
	}
	return size
}

// PrintValues writes the sheet's values row-major within GetPrintableSize,
// tab-separating fields and newline-terminating rows.
func (s *Sheet) PrintValues(w io.Writer) error {
	return s.print(w, func(c *Cell) string {
		if c == nil {
			return ""
		}
		return c.GetValue().String()
	})
}

// PrintTexts writes the sheet's stored texts in the same layout as
// PrintValues.
func (s *Sheet) PrintTexts(w io.Writer) error {
	return s.print(w, func(c *Cell) string {
		if c == nil {
			return ""
		}
		return c.GetText()
	})
}

func (s *Sheet) print(w io.Writer, render func(*Cell) string) error {
	size := s.GetPrintableSize()
	for row := 0; row < size.Rows; row++ {
		for col := 0; col < size.Cols; col++ {
			if col > 0 {
				if _, err := io.WriteString(w, "\t"); err != nil {
					return err
				}
			}
			pos := position.New(row, col)
			if _, err := io.WriteString(w, render(s.cells[pos])); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

// GetValue implements formula.View: it resolves pos through the owning
// cell's GetValue and applies the text-coercion rules at the boundary
// between the cell-level Value union and the formula package's narrower
// number-or-error Value. Invariant I5 guarantees every position a live
// formula references has a cell; the nil case below is a defensive
// fallback, never expected in practice.
func (s *Sheet) GetValue(pos position.Position) formula.Value {
	c, ok := s.cells[pos]
	if !ok {
		return formula.NumberValue(0)
	}
	return toFormulaValue(c.GetValue())
}
