package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalText(t *testing.T, ctx *Context, text string) (Value, error) {
	t.Helper()
	e, err := Parse(text)
	if err != nil {
		return Value{}, err
	}
	return e.Eval(ctx)
}

func TestAssignThenRead(t *testing.T) {
	ctx := NewContext()
	v, err := evalText(t, ctx, "1+2*3")
	require.NoError(t, err)
	n, ok := v.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(7), n)
}

func TestIntegerOverflowIsSignalled(t *testing.T) {
	ctx := NewContext()
	ctx.Set("max", Int(9223372036854775807))
	_, err := evalText(t, ctx, "$max + 1")
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrArithmeticOverflow))
}

func TestDivideByZero(t *testing.T) {
	ctx := NewContext()
	_, err := evalText(t, ctx, "1 / 0")
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrDivideByZero))
}

func TestAlmostEqual(t *testing.T) {
	ctx := NewContext()
	v, err := evalText(t, ctx, "(0.1+0.2) == 0.3")
	require.NoError(t, err)
	assert.True(t, v.AsBool())

	v2, err := evalText(t, ctx, "1.0 == 1")
	require.NoError(t, err)
	assert.True(t, v2.AsBool())
}

func TestStringConcatenationAndRejection(t *testing.T) {
	ctx := NewContext()
	v, err := evalText(t, ctx, `"a" + "b"`)
	require.NoError(t, err)
	assert.Equal(t, "ab", v.AsString())

	_, err = evalText(t, ctx, `"a" + 1`)
	require.Error(t, err)
}

func TestShortCircuitAndOr(t *testing.T) {
	ctx := NewContext()
	v, err := evalText(t, ctx, "false && ($missing + 1 > 0)")
	require.NoError(t, err)
	assert.False(t, v.AsBool())

	v2, err := evalText(t, ctx, "true || ($missing + 1 > 0)")
	require.NoError(t, err)
	assert.True(t, v2.AsBool())
}

func TestXorDoesNotShortCircuit(t *testing.T) {
	ctx := NewContext()
	_, err := evalText(t, ctx, "true xor ($missing)")
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrNullVariable))
}

func TestCrossTypeRelationalRejected(t *testing.T) {
	ctx := NewContext()
	_, err := evalText(t, ctx, `1 < "a"`)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrTypeMismatch))
}

func TestAsBoolStringFixed(t *testing.T) {
	assert.True(t, String("hello").AsBool())
	assert.False(t, String("").AsBool())
}

func TestMissingVariable(t *testing.T) {
	ctx := NewContext()
	_, err := evalText(t, ctx, "$nope")
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrNullVariable))
}

func TestParseFailurePropagates(t *testing.T) {
	_, err := Parse("$a +")
	require.Error(t, err)
}

func TestEvalIsPureInContext(t *testing.T) {
	ctx := NewContext()
	ctx.Set("x", Int(10))
	e, err := Parse("$x * 2 + 1")
	require.NoError(t, err)

	v1, err := e.Eval(ctx)
	require.NoError(t, err)
	v2, err := e.Eval(ctx)
	require.NoError(t, err)
	assert.True(t, v1.Equal(v2))
}

func TestModulo(t *testing.T) {
	ctx := NewContext()
	v, err := evalText(t, ctx, "7 % 3")
	require.NoError(t, err)
	n, _ := v.AsInt()
	assert.Equal(t, int64(1), n)
}
