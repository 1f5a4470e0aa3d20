// Package sim implements the round-based trading engine: agents with
// adaptive price beliefs, competing factories per product, and the market
// loop that drives them.
package sim

import "math"

// minRangeWidth is the floor on any price interval's width. Every formula
// that computes a new range re-clamps to it so a degenerate (zero-width or
// inverted) interval is never observable.
const minRangeWidth = 0.1

// Range is a price interval [Lower, Upper].
type Range struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Width returns the interval length.
func (r Range) Width() float64 {
	return r.Upper - r.Lower
}

// Contains reports whether price falls inside the interval, inclusive.
func (r Range) Contains(price float64) bool {
	return price >= r.Lower && price <= r.Upper
}

// shiftByRatio moves both bounds by the signed ratio, e.g. 0.01 lifts the
// interval 1%. The lower bound never drops below zero.
func shiftByRatio(r Range, ratio float64) Range {
	lower := math.Max(r.Lower*(1+ratio), 0)
	upper := r.Upper * (1 + ratio)
	if upper < lower+minRangeWidth {
		upper = lower + minRangeWidth
	}
	return Range{Lower: lower, Upper: upper}
}

// reshapeAroundPrice recenters the interval on price with the width scaled
// by factor, keeping the minimum width and a non-negative lower bound.
func reshapeAroundPrice(price float64, r Range, factor float64) Range {
	width := math.Max(r.Width()*factor, minRangeWidth)
	lower := math.Max(price-width/2, 0)
	upper := math.Max(price+width/2, lower+minRangeWidth)
	return Range{Lower: lower, Upper: upper}
}

// shiftWithCostFloor moves the interval by ratio but never lets the lower
// bound fall below minCost; when it would, the interval slides up to sit on
// the floor with its length preserved.
func shiftWithCostFloor(r Range, minCost, ratio float64) Range {
	lower := r.Lower * (1 + ratio)
	upper := r.Upper * (1 + ratio)
	if lower < minCost {
		width := upper - lower
		return Range{Lower: minCost, Upper: minCost + width}
	}
	return Range{Lower: lower, Upper: upper}
}

// rangeDelta summarizes how an interval moved, for the structured logs.
type rangeDelta struct {
	lowerChange      float64
	upperChange      float64
	totalChange      float64
	lowerChangeRatio float64
	upperChangeRatio float64
}

func deltaBetween(old, new Range) rangeDelta {
	d := rangeDelta{
		lowerChange: new.Lower - old.Lower,
		upperChange: new.Upper - old.Upper,
	}
	d.totalChange = d.lowerChange + d.upperChange
	if w := old.Width(); w > 0 {
		d.lowerChangeRatio = d.lowerChange / w
		d.upperChangeRatio = d.upperChange / w
	}
	return d
}
