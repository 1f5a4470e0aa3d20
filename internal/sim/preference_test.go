package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/agora/internal/catalog"
	"github.com/talgya/agora/internal/dist"
)

func TestContractAroundPrice(t *testing.T) {
	p := NewPreference(50, 0.3)
	p.CurrentRange = Range{Lower: 10, Upper: 90}

	p.contractAroundPrice(50)

	// Width 80 contracts to 72, centered on 50.
	assert.InDelta(t, 50.0, p.CurrentPrice, 1e-9)
	assert.InDelta(t, 14.0, p.CurrentRange.Lower, 1e-9)
	assert.InDelta(t, 86.0, p.CurrentRange.Upper, 1e-9)
}

func TestContractAroundPriceFloorsWidth(t *testing.T) {
	p := NewPreference(100, 0.3)
	p.CurrentRange = Range{Lower: 99.95, Upper: 100.05}

	p.contractAroundPrice(100)

	// Width cannot fall below 5% of the price.
	assert.InDelta(t, 5.0, p.CurrentRange.Width(), 1e-9)
	assert.InDelta(t, 97.5, p.CurrentRange.Lower, 1e-9)
}

func TestContractAroundLowPriceClampsAtZero(t *testing.T) {
	p := NewPreference(5, 0.3)
	p.CurrentRange = Range{Lower: 0, Upper: 10}

	p.contractAroundPrice(0.1)

	assert.Equal(t, 0.0, p.CurrentRange.Lower)
	assert.Greater(t, p.CurrentRange.Upper, p.CurrentRange.Lower)
}

func TestFailureAdjustmentStraddling(t *testing.T) {
	p := NewPreference(50, 0.3)
	p.CurrentPrice = 50
	p.CurrentRange = Range{Lower: 40, Upper: 60}

	// Offers on both sides: reshape hard around the cheapest offer.
	newRange, minPrice := p.failureAdjustment([]float64{30, 70})

	assert.InDelta(t, 30.0, minPrice, 1e-9)
	// Width 20 * 0.2 = 4, centered on 30.
	assert.InDelta(t, 28.0, newRange.Lower, 1e-9)
	assert.InDelta(t, 32.0, newRange.Upper, 1e-9)
}

func TestFailureAdjustmentOnlyBelow(t *testing.T) {
	p := NewPreference(50, 0.3)
	p.CurrentPrice = 50
	p.CurrentRange = Range{Lower: 40, Upper: 60}

	newRange, minPrice := p.failureAdjustment([]float64{30})

	assert.InDelta(t, 30.0, minPrice, 1e-9)
	// Shift down 10% to (36, 54), then reshape: width 18 * 0.1 = 1.8
	// centered on 30.
	assert.InDelta(t, 29.1, newRange.Lower, 1e-9)
	assert.InDelta(t, 30.9, newRange.Upper, 1e-9)
}

func TestFailureAdjustmentOnlyAbove(t *testing.T) {
	p := NewPreference(50, 0.3)
	p.CurrentPrice = 50
	p.CurrentRange = Range{Lower: 40, Upper: 60}

	newRange, minPrice := p.failureAdjustment([]float64{70})

	// min observed price includes the current belief price.
	assert.InDelta(t, 50.0, minPrice, 1e-9)
	// Shift up 10% to (44, 66), then reshape: width 22 * 0.1 = 2.2
	// centered on 50.
	assert.InDelta(t, 48.9, newRange.Lower, 1e-9)
	assert.InDelta(t, 51.1, newRange.Upper, 1e-9)
}

func TestFailureAdjustmentNoOffendingOffers(t *testing.T) {
	p := NewPreference(50, 0.3)
	p.CurrentPrice = 50
	p.CurrentRange = Range{Lower: 40, Upper: 60}

	newRange, _ := p.failureAdjustment([]float64{45, 55})

	assert.Equal(t, Range{Lower: 40, Upper: 60}, newRange)
}

func TestPreferenceFromProductInvariants(t *testing.T) {
	src := dist.NewSource(11)
	product := catalog.NewProduct(1, "Bread", catalog.CategoryFood, 0.5,
		dist.NewNormal(1, "price", 10, 2),
		dist.NewNormal(1, "elastic", 0.4, 0.1),
		dist.NewNormal(1, "cost", 5, 1),
	)

	for i := 0; i < 200; i++ {
		p := PreferenceFromProduct(product, src)
		require.GreaterOrEqual(t, p.CurrentRange.Lower, 0.0)
		require.Greater(t, p.CurrentRange.Upper, p.CurrentRange.Lower)
		require.GreaterOrEqual(t, p.OriginalElastic, 0.01)
		require.LessOrEqual(t, p.OriginalElastic, 1.0)
		require.Greater(t, p.OriginalPrice, 0.0)
	}
}
