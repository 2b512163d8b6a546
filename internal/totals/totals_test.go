package totals

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestComputeEmpty(t *testing.T) {
	res := Compute(nil)
	assert.Zero(t, res.TotalHT)
	assert.Zero(t, res.TotalTVA)
	assert.Zero(t, res.TotalTTC)
	assert.Empty(t, res.ByRate)

	res = Compute([]Section{})
	assert.Zero(t, res.TotalTTC)
}

func TestComputeTwoLines(t *testing.T) {
	res := Compute([]Section{{
		Lines: []Line{
			{Quantity: 2, UnitPrice: 100, TaxRate: 20},
			{Quantity: 1, UnitPrice: 50, TaxRate: 10},
		},
	}})

	assert.InDelta(t, 250, res.TotalHT, 1e-9)
	assert.InDelta(t, 45, res.TotalTVA, 1e-9)
	assert.InDelta(t, 295, res.TotalTTC, 1e-9)
}

func TestComputeIncludesMaterials(t *testing.T) {
	res := Compute([]Section{{
		Lines: []Line{
			{
				Quantity:  1,
				UnitPrice: 200,
				TaxRate:   20,
				Materials: []Line{
					{Quantity: 4, UnitPrice: 25, TaxRate: 20},
					{Quantity: 2, UnitPrice: 10, TaxRate: 5.5},
				},
			},
		},
	}})

	assert.InDelta(t, 320, res.TotalHT, 1e-9)
	assert.InDelta(t, 200*0.2+100*0.2+20*0.055, res.TotalTVA, 1e-9)
}

func TestComputeSkipsNonBillable(t *testing.T) {
	res := Compute([]Section{{
		Lines: []Line{
			{Quantity: 1, UnitPrice: 100, TaxRate: 20, Billable: boolPtr(true)},
			{Quantity: 1, UnitPrice: 999, TaxRate: 20, Billable: boolPtr(false)},
			{
				Quantity:  1,
				UnitPrice: 50,
				TaxRate:   20,
				Materials: []Line{
					{Quantity: 1, UnitPrice: 500, TaxRate: 20, Billable: boolPtr(false)},
					{Quantity: 1, UnitPrice: 30, TaxRate: 20},
				},
			},
		},
	}})

	assert.InDelta(t, 180, res.TotalHT, 1e-9)
	assert.InDelta(t, 36, res.TotalTVA, 1e-9)
	assert.InDelta(t, 216, res.TotalTTC, 1e-9)
}

func TestComputeAbsentFlagIsBillable(t *testing.T) {
	res := Compute([]Section{{Lines: []Line{{Quantity: 3, UnitPrice: 10, TaxRate: 0}}}})
	assert.InDelta(t, 30, res.TotalHT, 1e-9)
	assert.Zero(t, res.TotalTVA)
}

func TestComputeByRateBreakdown(t *testing.T) {
	res := Compute([]Section{{
		Lines: []Line{
			{Quantity: 1, UnitPrice: 100, TaxRate: 20},
			{Quantity: 1, UnitPrice: 200, TaxRate: 20},
			{Quantity: 1, UnitPrice: 100, TaxRate: 5.5},
		},
	}})

	require.Len(t, res.ByRate, 2)
	assert.InDelta(t, 300, res.ByRate[20].Base, 1e-9)
	assert.InDelta(t, 60, res.ByRate[20].Tax, 1e-9)
	assert.InDelta(t, 100, res.ByRate[5.5].Base, 1e-9)
	assert.InDelta(t, 5.5, res.ByRate[5.5].Tax, 1e-9)
}

func TestComputeOrderIndependent(t *testing.T) {
	lines := []Line{
		{Quantity: 2, UnitPrice: 19.99, TaxRate: 20},
		{Quantity: 0.5, UnitPrice: 120, TaxRate: 10},
		{Quantity: 7, UnitPrice: 3.2, TaxRate: 5.5},
		{Quantity: 1, UnitPrice: -50, TaxRate: 20},
	}

	base := Compute([]Section{{Lines: lines}})

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := make([]Line, len(lines))
		copy(shuffled, lines)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		res := Compute([]Section{{Lines: shuffled}})
		assert.InDelta(t, base.TotalHT, res.TotalHT, 1e-9)
		assert.InDelta(t, base.TotalTVA, res.TotalTVA, 1e-9)
		assert.InDelta(t, base.TotalTTC, res.TotalTTC, 1e-9)
	}
}

func TestComputeMalformedValuesCountAsZero(t *testing.T) {
	res := Compute([]Section{{
		Lines: []Line{
			{Quantity: math.NaN(), UnitPrice: 100, TaxRate: 20},
			{Quantity: 1, UnitPrice: math.Inf(1), TaxRate: 20},
			{Quantity: 1, UnitPrice: 100, TaxRate: math.NaN()},
		},
	}})

	assert.InDelta(t, 100, res.TotalHT, 1e-9)
	assert.Zero(t, res.TotalTVA)
	assert.False(t, math.IsNaN(res.TotalTTC))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 10.56, Round2(10.555))
	assert.Equal(t, 0.0, Round2(0))
	assert.Equal(t, -3.33, Round2(-3.333))
}
