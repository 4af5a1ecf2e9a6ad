package spreadsheet

import (
	"github.com/Ganfo-cmd/go-spreadsheet/formula"
	"github.com/Ganfo-cmd/go-spreadsheet/position"
)

// formulaMarker and escapeMarker are the two leading-character conventions
// the engine recognizes in stored text.
const (
	formulaMarker = '='
	escapeMarker  = '\''
)

// cellKind discriminates the three variants a Cell's payload can hold. It
// is a closed set — there is no open extension requirement.
type cellKind int

const (
	kindEmpty cellKind = iota
	kindText
	kindFormula
)

// Cell is a single grid node: a variant payload, its dependency edges, and
// (for formula cells) a memoized evaluation result. The sheet exclusively
// owns every Cell; forward and reverse edges are non-owning back-references
// keyed by position, so they stay valid across map rehashes.
type Cell struct {
	pos   position.Position
	sheet *Sheet

	kind    cellKind
	text    string           // stored text for kindText
	formula *formula.Formula // compiled formula for kindFormula
	cache   *formula.Value   // memoized result for kindFormula; nil = no cache

	forward map[position.Position]*Cell // cells this cell's formula reads
	reverse map[position.Position]*Cell // cells whose formula reads this cell
}

func newCell(sheet *Sheet, pos position.Position) *Cell {
	return &Cell{
		pos:     pos,
		sheet:   sheet,
		forward: make(map[position.Position]*Cell),
		reverse: make(map[position.Position]*Cell),
	}
}

// Set classifies text by its leading marker and installs the corresponding
// variant. On any error the cell is left exactly as it was.
func (c *Cell) Set(text string) error {
	if len(text) >= 2 && text[0] == formulaMarker {
		return c.setFormula(text[1:])
	}
	c.becomeLiteral(text)
	return nil
}

// setFormula compiles the expression, checks it for cycles, materializes
// any missing referents, rewires forward/reverse edges, invalidates
// downstream caches, and only then swaps the payload in.
func (c *Cell) setFormula(expr string) error {
	f, err := formula.New(expr, c.sheet.limits)
	if err != nil {
		return errInvalidFormula(err)
	}

	candidate := f.ReferencedPositions()
	if c.sheet.reachesThroughCandidates(c, candidate) {
		return errCircularDependency(c.pos)
	}

	targets := make([]*Cell, len(candidate))
	for i, pos := range candidate {
		targets[i] = c.sheet.ensureCell(pos)
	}

	c.rewireForward(targets)
	c.sheet.invalidateReverseCache(c)

	c.kind = kindFormula
	c.formula = f
	c.cache = nil
	c.text = ""

	c.sheet.logger.Debug().Str("pos", c.pos.String()).Str("formula", f.ExpressionText()).Msg("cell set to formula")
	return nil
}

// becomeLiteral handles both the Empty and Text variants: text == "" yields
// Empty, anything else yields Text. Both clear forward edges (neither
// variant has any) and invalidate downstream caches.
func (c *Cell) becomeLiteral(text string) {
	c.rewireForward(nil)
	c.sheet.invalidateReverseCache(c)

	if text == "" {
		c.kind = kindEmpty
		c.text = ""
	} else {
		c.kind = kindText
		c.text = text
	}
	c.formula = nil
	c.cache = nil

	c.sheet.logger.Debug().Str("pos", c.pos.String()).Int("kind", int(c.kind)).Msg("cell set to literal")
}

// Clear resets the cell to Empty, clearing forward edges and invalidating
// downstream caches exactly as becomeLiteral("") does.
func (c *Cell) Clear() {
	c.becomeLiteral("")
}

// rewireForward replaces c's forward edge set with targets, removing c from
// the reverse set of every previously-forward-referenced cell and adding it
// to the reverse set of every newly-referenced one.
func (c *Cell) rewireForward(targets []*Cell) {
	for pos, old := range c.forward {
		delete(old.reverse, c.pos)
		delete(c.forward, pos)
	}
	for _, t := range targets {
		c.forward[t.pos] = t
		t.reverse[c.pos] = c
	}
}

// clearCache drops this cell's memoized formula result, if any. It is a
// no-op for non-formula cells, which never carry a cache (invariant I4).
func (c *Cell) clearCache() {
	c.cache = nil
}

// GetValue returns the cell's current value, evaluating and memoizing a
// formula's result on first read.
func (c *Cell) GetValue() Value {
	switch c.kind {
	case kindEmpty:
		return emptyValue()
	case kindText:
		if len(c.text) > 0 && c.text[0] == escapeMarker {
			return textValue(c.text[1:])
		}
		return textValue(c.text)
	case kindFormula:
		if c.cache == nil {
			result := c.formula.Execute(c.sheet)
			c.cache = &result
		}
		return fromFormulaValue(*c.cache)
	default:
		return emptyValue()
	}
}

// GetText returns the cell's stored text: empty for Empty, the raw stored
// string (including any leading escape marker) for Text, and the formula
// marker followed by the canonical expression text for Formula.
func (c *Cell) GetText() string {
	switch c.kind {
	case kindEmpty:
		return ""
	case kindText:
		return c.text
	case kindFormula:
		return string(formulaMarker) + c.formula.ExpressionText()
	default:
		return ""
	}
}

// GetReferencedCells returns this cell's forward references in no
// particular order (callers compare as a set).
func (c *Cell) GetReferencedCells() []position.Position {
	out := make([]position.Position, 0, len(c.forward))
	for pos := range c.forward {
		out = append(out, pos)
	}
	return out
}

// IsReferenced reports whether any other cell's formula names this one.
func (c *Cell) IsReferenced() bool {
	return len(c.reverse) > 0
}
