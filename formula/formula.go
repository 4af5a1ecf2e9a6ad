// Package formula is the concrete formula adaptor consumed by the cell
// graph: it compiles a raw "=..."-less arithmetic expression into an object
// exposing the three capabilities the core needs — list referenced
// positions, render canonical expression text, and execute against a
// read-only sheet view. The core never sees the grammar; this package owns
// it entirely.
//
// Grammar: infix + - * / , unary + -, parentheses, decimal numeric
// literals, and "A1"-style cell references. Whitespace is ignored. Ranges
// ("A1:B2") and spreadsheet functions are not supported — out of scope per
// the engine's non-goals.
package formula

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/Ganfo-cmd/go-spreadsheet/position"
)

// cellRefPattern matches "A1"-style references: one or more uppercase
// letters followed by one or more digits. Expressions are uppercased
// before scanning so "a1+b2" and "A1+B2" are equivalent.
var cellRefPattern = regexp.MustCompile(`[A-Z]+[0-9]+`)

// programCache memoizes compiled programs by rewritten expression text
// (references already replaced by their identifiers). A program is reused
// only when that text is identical: the same formula entered in several
// cells, or a cell set to the same formula again. Formulas that differ only
// in which cells they name rewrite to different text and compile
// separately.
var programCache sync.Map // rewritten text -> *vm.Program

// Value is the result of executing a Formula: either a finite number or an
// arithmetic failure. It never carries a Go error — arithmetic failure is
// data, not control flow, per the engine's error model.
type Value struct {
	Number float64
	IsErr  bool
}

// NumberValue wraps a finite number as a Value.
func NumberValue(n float64) Value { return Value{Number: n} }

// ErrorValue returns the arithmetic-error Value.
func ErrorValue() Value { return Value{IsErr: true} }

// View is the read-only sheet surface a Formula executes against. The
// engine's Sheet satisfies this; formula never imports the sheet package to
// avoid a cycle, it only needs this narrow capability.
type View interface {
	// GetValue resolves pos to a Value, following the text-coercion
	// rules described in CoerceText's doc comment. The view materializes
	// nothing; by the time Execute runs, the cell graph has already
	// guaranteed every referenced position names a cell (invariant I5).
	GetValue(pos position.Position) Value
}

// Formula is an immutable, compiled arithmetic expression over cell
// references. Construct with New; the zero value is not usable.
type Formula struct {
	program   *vm.Program
	refs      []position.Position // deduplicated, order of first appearance
	canonical string              // whitespace-stripped, uppercased-refs text
	identFor  map[position.Position]string
}

// New compiles raw (the text after the leading '=') into a Formula. limits
// bounds which cell references are acceptable; a reference resolving
// outside limits fails construction just as a syntax error does, since both
// are forms of "this is not a valid formula".
func New(raw string, limits position.Limits) (*Formula, error) {
	upper := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	if upper == "" {
		return nil, fmt.Errorf("empty expression")
	}

	refs, identFor, rewritten, err := scanReferences(upper, limits)
	if err != nil {
		return nil, err
	}

	program, err := compile(rewritten)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", rewritten, err)
	}

	return &Formula{
		program:   program,
		refs:      refs,
		canonical: upper,
		identFor:  identFor,
	}, nil
}

// scanReferences finds every A1-style reference in upper, validates it
// against limits, and returns the deduplicated reference list (in order of
// first appearance), a position->identifier map, and upper with every
// reference rewritten to its safe identifier form.
func scanReferences(upper string, limits position.Limits) ([]position.Position, map[position.Position]string, string, error) {
	var refs []position.Position
	seen := make(map[position.Position]bool)
	identFor := make(map[position.Position]string)

	var scanErr error
	rewritten := cellRefPattern.ReplaceAllStringFunc(upper, func(match string) string {
		if scanErr != nil {
			return match
		}
		pos, err := position.Parse(match)
		if err != nil {
			scanErr = fmt.Errorf("invalid reference %q", match)
			return match
		}
		if !pos.IsValid(limits) {
			scanErr = fmt.Errorf("reference %q out of range", match)
			return match
		}
		if !seen[pos] {
			seen[pos] = true
			refs = append(refs, pos)
		}
		ident := identifier(pos)
		identFor[pos] = ident
		return ident
	})
	if scanErr != nil {
		return nil, nil, "", scanErr
	}
	return refs, identFor, rewritten, nil
}

// identifier builds a safe expr-lang identifier for pos; expr identifiers
// cannot start with a digit or contain spreadsheet-style column letters
// unambiguously, so every reference is rewritten to "r<row>c<col>".
func identifier(pos position.Position) string {
	return fmt.Sprintf("r%dc%d", pos.Row, pos.Col)
}

// compile compiles text, reusing a cached program when the same rewritten
// text has been compiled before.
func compile(text string) (*vm.Program, error) {
	if cached, ok := programCache.Load(text); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(text, expr.Env(map[string]float64{}), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	programCache.Store(text, program)
	return program, nil
}

// ReferencedPositions returns the positions this formula reads, in order
// of first appearance, with consecutive (and, here, all) duplicates
// removed.
func (f *Formula) ReferencedPositions() []position.Position {
	out := make([]position.Position, len(f.refs))
	copy(out, f.refs)
	return out
}

// ExpressionText returns the canonical, whitespace-normalized rendering of
// the formula (references uppercased, no internal whitespace).
func (f *Formula) ExpressionText() string {
	return f.canonical
}

// Execute runs the formula against view. Referenced cells are resolved
// through view.GetValue; a referenced cell already holding an arithmetic
// error short-circuits the whole execution to that error. A finite numeric
// result is returned as-is; division by zero, overflow to infinity, and NaN
// all collapse to the arithmetic error.
func (f *Formula) Execute(view View) Value {
	env := make(map[string]float64, len(f.refs))
	for _, pos := range f.refs {
		v := view.GetValue(pos)
		if v.IsErr {
			return ErrorValue()
		}
		env[f.identFor[pos]] = v.Number
	}

	result, err := expr.Run(f.program, env)
	if err != nil {
		return ErrorValue()
	}

	n, ok := asFloat(result)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return ErrorValue()
	}
	return NumberValue(n)
}

// asFloat coerces an expr-lang result to float64. expr yields an int for
// integer literals and integer-only arithmetic (e.g. "1+2") and a float64
// for env lookups, fractional literals and division; any other result type
// is rejected.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// CoerceText applies the text-operand coercion rules of the engine's
// external contract: empty string is 0, a string parseable as a finite
// number is that number, anything else is an arithmetic error. It is
// exported so the owning sheet can apply identical rules when resolving a
// text cell's Value for a formula that references it.
func CoerceText(s string) Value {
	if s == "" {
		return NumberValue(0)
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return ErrorValue()
	}
	return NumberValue(n)
}
