package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNewPriceRejectsNegative(t *testing.T) {
	_, err := NewPrice(dec("-1"))
	assert.ErrorIs(t, err, ErrNegative)
}

func TestNewPriceAllowsZero(t *testing.T) {
	p, err := NewPrice(dec("0"))
	require.NoError(t, err)
	assert.True(t, p.IsZero())
}

func TestMustPositivePriceRejectsZero(t *testing.T) {
	_, err := MustPositivePrice(dec("0"))
	assert.ErrorIs(t, err, ErrNotPos)
}

func TestMustPositiveQuantityRejectsNegative(t *testing.T) {
	_, err := MustPositiveQuantity(dec("-5"))
	assert.ErrorIs(t, err, ErrNotPos)
}

func TestMinQuantity(t *testing.T) {
	a, _ := NewQuantity(dec("3"))
	b, _ := NewQuantity(dec("5"))
	assert.True(t, MinQuantity(a, b).Equal(a))
	assert.True(t, MinQuantity(b, a).Equal(a))
}

func TestQuantityEqual(t *testing.T) {
	a, _ := NewQuantity(dec("10.50"))
	b, _ := NewQuantity(dec("10.5"))
	assert.True(t, a.Equal(b))
}

func TestQuantityAddSub(t *testing.T) {
	a, _ := NewQuantity(dec("10"))
	b, _ := NewQuantity(dec("4"))
	assert.True(t, a.Add(b).Equal(mustQty(t, "14")))
	assert.True(t, a.Sub(b).Equal(mustQty(t, "6")))
}

func TestNotional(t *testing.T) {
	p, _ := NewPrice(dec("100.25"))
	q, _ := NewQuantity(dec("2"))
	assert.True(t, Notional(p, q).Equal(dec("200.50")))
}

func TestBoundsUnboundedAlwaysPasses(t *testing.T) {
	p, _ := NewPrice(dec("1000000"))
	assert.NoError(t, Unbounded.CheckPrice(p))
}

func TestBoundsRejectsOutOfRange(t *testing.T) {
	b := Bounds{Min: dec("1"), Max: dec("100")}
	lowP, _ := NewPrice(dec("0.5"))
	highP, _ := NewPrice(dec("200"))
	okP, _ := NewPrice(dec("50"))

	assert.ErrorIs(t, b.CheckPrice(lowP), ErrOutOfBounds)
	assert.ErrorIs(t, b.CheckPrice(highP), ErrOutOfBounds)
	assert.NoError(t, b.CheckPrice(okP))
}

func TestPriceComparisons(t *testing.T) {
	low, _ := NewPrice(dec("10"))
	high, _ := NewPrice(dec("20"))

	assert.True(t, low.LessThan(high))
	assert.True(t, high.GreaterThan(low))
	assert.True(t, low.LessOrEqual(low))
	assert.True(t, high.GreaterOrEqual(high))
}

func mustQty(t *testing.T, s string) Quantity {
	t.Helper()
	q, err := NewQuantity(dec(s))
	require.NoError(t, err)
	return q
}
