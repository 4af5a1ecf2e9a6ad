package spreadsheet

import (
	"strconv"

	"github.com/Ganfo-cmd/go-spreadsheet/formula"
)

// ValueKind discriminates the four variants a cell's Value can hold.
type ValueKind int

const (
	ValueEmpty ValueKind = iota
	ValueText
	ValueNumber
	ValueArithmeticError
)

// Value is the discriminated union a cell's GetValue returns: empty
// string, literal text, a finite number, or the arithmetic error.
type Value struct {
	Kind   ValueKind
	Text   string
	Number float64
}

func emptyValue() Value            { return Value{Kind: ValueEmpty} }
func textValue(s string) Value     { return Value{Kind: ValueText, Text: s} }
func numberValue(n float64) Value  { return Value{Kind: ValueNumber, Number: n} }
func arithmeticErrorValue() Value  { return Value{Kind: ValueArithmeticError} }

// String renders the value the way PrintValues does: empty string for
// ValueEmpty, the bare text for ValueText, the default float formatting for
// ValueNumber, and the fixed "#ARITHM!" token for the arithmetic error.
func (v Value) String() string {
	switch v.Kind {
	case ValueEmpty:
		return ""
	case ValueText:
		return v.Text
	case ValueNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case ValueArithmeticError:
		return ArithmeticError{}.String()
	default:
		return ""
	}
}

// fromFormulaValue converts the formula package's narrower Value (number or
// arithmetic error only) into the cell-level Value union.
func fromFormulaValue(v formula.Value) Value {
	if v.IsErr {
		return arithmeticErrorValue()
	}
	return numberValue(v.Number)
}

// toFormulaValue converts a cell-level Value into the formula package's
// View-facing Value, applying the text-coercion rules of the external
// contract: empty string and text coerce through formula.CoerceText
// (empty -> 0, numeric text -> that number, anything else -> error), a
// number passes through, and an arithmetic error propagates as-is.
func toFormulaValue(v Value) formula.Value {
	switch v.Kind {
	case ValueEmpty:
		return formula.NumberValue(0)
	case ValueText:
		return formula.CoerceText(v.Text)
	case ValueNumber:
		return formula.NumberValue(v.Number)
	case ValueArithmeticError:
		return formula.ErrorValue()
	default:
		return formula.ErrorValue()
	}
}
