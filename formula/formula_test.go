package formula_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ganfo-cmd/go-spreadsheet/formula"
	"github.com/Ganfo-cmd/go-spreadsheet/position"
)

// fakeView is a minimal formula.View backed by a plain map, for testing the
// formula package in isolation from the sheet.
type fakeView map[position.Position]formula.Value

func (v fakeView) GetValue(pos position.Position) formula.Value {
	if val, ok := v[pos]; ok {
		return val
	}
	return formula.NumberValue(0)
}

func limits() position.Limits {
	return position.DefaultLimits()
}

func TestNewReferencedPositionsDeduplicated(t *testing.T) {
	f, err := formula.New("A1+A1+B2", limits())
	require.NoError(t, err)

	refs := f.ReferencedPositions()
	assert.ElementsMatch(t, []position.Position{position.New(0, 0), position.New(1, 1)}, refs)
}

func TestExpressionTextIsCanonical(t *testing.T) {
	f, err := formula.New(" a1 + b2 * ( 3 - 1 ) ", limits())
	require.NoError(t, err)

	assert.Equal(t, "A1+B2*(3-1)", f.ExpressionText())
}

func TestExecuteArithmetic(t *testing.T) {
	f, err := formula.New("A1+3", limits())
	require.NoError(t, err)

	view := fakeView{position.New(0, 0): formula.NumberValue(2)}
	got := f.Execute(view)

	require.False(t, got.IsErr)
	assert.Equal(t, 5.0, got.Number)
}

func TestExecuteDivisionByZeroIsArithmeticError(t *testing.T) {
	f, err := formula.New("1/0", limits())
	require.NoError(t, err)

	got := f.Execute(fakeView{})
	assert.True(t, got.IsErr)
}

func TestExecutePropagatesUpstreamError(t *testing.T) {
	f, err := formula.New("A1+1", limits())
	require.NoError(t, err)

	view := fakeView{position.New(0, 0): formula.ErrorValue()}
	got := f.Execute(view)
	assert.True(t, got.IsErr)
}

func TestNewRejectsOutOfRangeReference(t *testing.T) {
	_, err := formula.New("A99999+1", position.Limits{Rows: 100, Cols: 100})
	require.Error(t, err)
}

func TestNewRejectsMalformedExpression(t *testing.T) {
	_, err := formula.New("A1+*3", limits())
	require.Error(t, err)
}

func TestCoerceTextRules(t *testing.T) {
	empty := formula.CoerceText("")
	require.False(t, empty.IsErr)
	assert.Equal(t, 0.0, empty.Number)

	numeric := formula.CoerceText("3.5")
	require.False(t, numeric.IsErr)
	assert.Equal(t, 3.5, numeric.Number)

	nonNumeric := formula.CoerceText("hello")
	assert.True(t, nonNumeric.IsErr)
}

func TestExecuteUnaryMinus(t *testing.T) {
	f, err := formula.New("-A1+10", limits())
	require.NoError(t, err)

	view := fakeView{position.New(0, 0): formula.NumberValue(4)}
	got := f.Execute(view)
	require.False(t, got.IsErr)
	assert.Equal(t, 6.0, got.Number)
}

func TestExecuteOverflowIsArithmeticError(t *testing.T) {
	f, err := formula.New("A1*A1", limits())
	require.NoError(t, err)

	view := fakeView{position.New(0, 0): formula.NumberValue(math.MaxFloat64)}
	got := f.Execute(view)
	assert.True(t, got.IsErr)
}
