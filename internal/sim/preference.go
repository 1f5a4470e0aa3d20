package sim

import (
	"math"

	"github.com/talgya/agora/internal/catalog"
	"github.com/talgya/agora/internal/dist"
)

// Preference is one agent's price belief for one product: the immutable
// seed values sampled at construction and the mutable acceptable interval
// that adapts to trade outcomes. Only the owning agent mutates it, during
// settlement.
type Preference struct {
	OriginalPrice   float64 `json:"original_price"`
	OriginalElastic float64 `json:"original_elastic"` // 0–1; high elasticity gives up on demand easily
	CurrentPrice    float64 `json:"current_price"`    // Last realized belief center
	CurrentRange    Range   `json:"current_range"`
}

// NewPreference creates a preference with empty belief state, used by tests
// that set the range explicitly.
func NewPreference(originalPrice, originalElastic float64) *Preference {
	return &Preference{
		OriginalPrice:   originalPrice,
		OriginalElastic: originalElastic,
	}
}

// PreferenceFromProduct samples a fresh belief from the product's
// distributions: a price from the price distribution, an elasticity in
// (0, 1], and a random starting interval scaled to the price.
func PreferenceFromProduct(p catalog.Product, src *dist.Source) *Preference {
	originalPrice := p.PriceDist.SampleIn(src, 0.01, 1_000_000)
	originalElastic := p.ElasticDist.SampleIn(src, 0.01, 1.0)

	// Starting interval: lower anywhere below 75% of the price, upper
	// anywhere between lower and 150% of the price.
	baseMax := originalPrice * 1.5
	lower := src.Uniform(0, baseMax*0.5)
	upper := src.Uniform(lower, baseMax)
	if upper < lower+minRangeWidth {
		upper = lower + minRangeWidth
	}

	return &Preference{
		OriginalPrice:   originalPrice,
		OriginalElastic: originalElastic,
		CurrentPrice:    originalPrice,
		CurrentRange:    Range{Lower: lower, Upper: upper},
	}
}

// contractAroundPrice is the success update: the interval narrows to 90% of
// its width (never below 5% of the price or the global minimum) and
// recenters on the clearing price.
func (p *Preference) contractAroundPrice(price float64) {
	oldWidth := p.CurrentRange.Width()
	minWidth := math.Max(price*0.05, minRangeWidth)
	newWidth := math.Max(oldWidth*0.9, minWidth)
	lower := math.Max(price-newWidth/2, 0)
	upper := math.Max(math.Max(price+newWidth/2, 0), lower+minRangeWidth)
	p.CurrentPrice = price
	p.CurrentRange = Range{Lower: lower, Upper: upper}
}

// failureAdjustment computes the post-failure interval from the full list
// of prices offered this round. Offers on both sides of the range reshape
// it hard around the cheapest offer; one-sided misses nudge the range 10%
// toward the offers before a gentler reshape; offers all inside the range
// leave it alone.
func (p *Preference) failureAdjustment(offeredPrices []float64) (Range, float64) {
	aboveCount, belowCount := 0, 0
	minPrice := p.CurrentPrice
	for _, price := range offeredPrices {
		if price > p.CurrentRange.Upper {
			aboveCount++
		}
		if price < p.CurrentRange.Lower {
			belowCount++
		}
		minPrice = math.Min(minPrice, price)
	}

	switch {
	case aboveCount > 0 && belowCount > 0:
		return reshapeAroundPrice(minPrice, p.CurrentRange, 0.2), minPrice
	case belowCount > 0:
		shifted := shiftByRatio(p.CurrentRange, -0.1)
		return reshapeAroundPrice(minPrice, shifted, 0.1), minPrice
	case aboveCount > 0:
		shifted := shiftByRatio(p.CurrentRange, 0.1)
		return reshapeAroundPrice(minPrice, shifted, 0.1), minPrice
	default:
		return p.CurrentRange, minPrice
	}
}
