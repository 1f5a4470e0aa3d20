package sim

import (
	"fmt"
	"math"

	"github.com/talgya/agora/internal/catalog"
	"github.com/talgya/agora/internal/dist"
	"github.com/talgya/agora/internal/tradelog"
)

// FactoryStatus reports whether a factory can still participate in trading.
type FactoryStatus uint8

const (
	// StatusActive — the factory holds stock or can still fund production.
	StatusActive FactoryStatus = iota
	// StatusIdle — no stock and not enough cash to produce a single unit.
	StatusIdle
)

func (s FactoryStatus) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusIdle:
		return "Idle"
	}
	return fmt.Sprintf("FactoryStatus(%d)", uint8(s))
}

// stockWindow bounds how many rounds of stock entries a factory keeps.
const stockWindow = 3

// Factory produces and sells one product. Its supply price range adapts to
// trade outcomes but its lower bound never drops below the per-unit
// production cost. A factory is exclusively owned by its product's worker
// during a round, so it carries no lock.
type Factory struct {
	id              uint64
	name            string
	productID       uint64
	productName     string
	productCategory catalog.Category

	supplyRange  Range
	productCost  float64
	durability   float64
	riskAppetite float64
	cash         float64

	initialStock int
	stock        map[uint64]int // Remaining units per round, most recent stockWindow rounds
	stockRounds  []uint64       // Round keys in insertion order, oldest first

	accountant *Accountant
	recorder   tradelog.Recorder
	src        *dist.Source
}

// NewFactory builds a factory for the product with a randomly seeded supply
// range anchored on the product's price distribution, a sampled per-unit
// cost, starting cash, and a random risk appetite.
func NewFactory(id uint64, name string, product catalog.Product, src *dist.Source, recorder tradelog.Recorder) *Factory {
	referencePrice := math.Max(product.PriceDist.Sample(src), 1.0)
	lower := src.Uniform(0, referencePrice)
	upper := src.Uniform(lower, referencePrice*1.5)
	if upper < lower+minRangeWidth {
		upper = lower + minRangeWidth
	}

	productCost := math.Max(product.CostDist.Sample(src), 0.1)
	cash := math.Max(product.PriceDist.Sample(src), 10.0) * 10.0

	f := &Factory{
		id:              id,
		name:            name,
		productID:       product.ID,
		productName:     product.Name,
		productCategory: product.Category,
		supplyRange:     Range{Lower: lower, Upper: upper},
		productCost:     productCost,
		durability:      product.Durability,
		riskAppetite:    src.Uniform(0.1, 0.9),
		cash:            cash,
		stock:           make(map[uint64]int),
		accountant:      NewAccountant(cash),
		recorder:        recorder,
		src:             src,
	}
	// Supply ranges are cost-floored from the first offer onward.
	if f.supplyRange.Lower < productCost {
		f.supplyRange = shiftWithCostFloor(f.supplyRange, productCost, 0)
	}
	return f
}

func (f *Factory) ID() uint64                        { return f.id }
func (f *Factory) Name() string                      { return f.name }
func (f *Factory) ProductID() uint64                 { return f.productID }
func (f *Factory) ProductCategory() catalog.Category { return f.productCategory }
func (f *Factory) Cash() float64                     { return f.cash }
func (f *Factory) ProductCost() float64              { return f.productCost }
func (f *Factory) SupplyRange() Range                { return f.supplyRange }

// Stock returns the remaining units for round, zero when the round is
// outside the retained window.
func (f *Factory) Stock(round uint64) int {
	return f.stock[round]
}

// Status reports Idle once the factory holds no stock for the round and
// cannot fund even one unit of production.
func (f *Factory) Status(round uint64) FactoryStatus {
	if f.stock[round] > 0 || f.cash*f.riskAppetite >= f.productCost {
		return StatusActive
	}
	return StatusIdle
}

// OfferPrice quotes one ask, drawn uniformly from the supply range.
func (f *Factory) OfferPrice() float64 {
	return f.src.Uniform(f.supplyRange.Lower, f.supplyRange.Upper)
}

// StartRound plans production from last round's bill, debits the cost, and
// opens this round's bill and stock entry.
//
// Planning: cold start produces 1 unit; a sell-out scales last round's
// initial stock by 1.1 + 0.4*risk_appetite; anything else holds last
// round's production steady. The plan is capped by what the factory can
// afford at its risk appetite.
func (f *Factory) StartRound(round uint64) {
	lastBill := f.accountant.BillOrDefault(round - 1)

	var prediction int
	switch {
	case lastBill.InitialStock == 0:
		prediction = 1
	case lastBill.RemainingStock == 0:
		rate := 1.1 + 0.4*f.riskAppetite
		prediction = int(float64(lastBill.InitialStock) * rate)
	default:
		prediction = max(lastBill.TotalProduction, 1)
	}

	budgetCap := int(f.cash * f.riskAppetite / f.productCost)
	production := min(prediction, budgetCap)
	if production < 0 {
		production = 0
	}

	f.initialStock = lastBill.RemainingStock + production
	cost := float64(production) * f.productCost
	f.cash -= cost

	bill := f.accountant.BillOrDefault(round)
	bill.Cash = f.cash
	bill.InitialStock = f.initialStock
	bill.TotalProduction = production
	bill.ProductionCost = cost

	f.stock[round] = f.initialStock
	f.stockRounds = append(f.stockRounds, round)
	if len(f.stockRounds) > stockWindow {
		oldest := f.stockRounds[0]
		f.stockRounds = f.stockRounds[1:]
		delete(f.stock, oldest)
	}
}

// rangeShiftRatio maps the agent-side relation to the signed shift applied
// to the supply range after a failed trade. Offers inside or above the
// agent's range mean the factory priced too high; only an underpriced ask
// pushes the range up.
func rangeShiftRatio(relation *IntervalRelation) float64 {
	if relation == nil {
		return -0.01
	}
	if relation.Kind == RelationAgentAboveFactory {
		return 0.01
	}
	return -0.01
}

// Deal applies one negotiation outcome to the factory. NotMatched and
// NotYet never mutate anything. Failed shifts the supply range by a ratio
// derived from the relation; Success shifts it up 1%, moves one unit of
// stock, and credits the price. Shifts keep the lower bound at or above
// product cost.
func (f *Factory) Deal(result TradeResult, round uint64, relation *IntervalRelation) {
	if remaining, ok := f.stock[round]; ok && remaining <= 0 {
		return
	}

	switch result.Outcome {
	case OutcomeNotMatched, OutcomeNotYet:
		return
	case OutcomeFailed:
		oldRange := f.supplyRange
		newRange := shiftWithCostFloor(oldRange, f.productCost, rangeShiftRatio(relation))
		f.logRangeShift(round, oldRange, newRange, "Failed")
		f.supplyRange = newRange
	case OutcomeSuccess:
		oldRange := f.supplyRange
		newRange := shiftWithCostFloor(oldRange, f.productCost, 0.01)
		f.logRangeShift(round, oldRange, newRange, "Success")
		f.supplyRange = newRange
		if _, ok := f.stock[round]; ok {
			f.stock[round]--
		}
		f.cash += result.Price
	}
}

func (f *Factory) logRangeShift(round uint64, oldRange, newRange Range, outcome string) {
	d := deltaBetween(oldRange, newRange)
	f.recorder.RecordFactoryRange(tradelog.FactoryRangeEvent{
		Round:            round,
		FactoryID:        f.id,
		FactoryName:      f.name,
		ProductID:        f.productID,
		ProductCategory:  f.productCategory.String(),
		OldLower:         oldRange.Lower,
		OldUpper:         oldRange.Upper,
		NewLower:         newRange.Lower,
		NewUpper:         newRange.Upper,
		LowerChange:      d.lowerChange,
		UpperChange:      d.upperChange,
		TotalChange:      d.totalChange,
		LowerChangeRatio: d.lowerChangeRatio,
		UpperChangeRatio: d.upperChangeRatio,
		TradeResult:      outcome,
	})
}

// SettleRound closes this round's bill: rot the unsold stock, derive units
// sold and revenue from the cash movement since the round opened, and book
// the profit net of goods gone (sold plus rotted).
func (f *Factory) SettleRound(round uint64) {
	bill := f.accountant.BillOrDefault(round)
	remaining := f.stock[round]

	rot := int(float64(remaining) * (1.0 - f.durability))
	bill.RotStock = rot
	bill.UnitsSold = max(bill.InitialStock-remaining, 0)

	revenue := bill.Cash - f.cash
	bill.Revenue = revenue
	bill.Cash = f.cash
	bill.RemainingStock = remaining - rot

	goodsGone := bill.UnitsSold + bill.RotStock
	bill.Profit = revenue - float64(goodsGone)*f.productCost
}

// Snapshot captures the factory state for a log record at round.
func (f *Factory) Snapshot(round uint64) tradelog.FactorySnapshot {
	return tradelog.FactorySnapshot{
		FactoryID:       f.id,
		FactoryName:     f.name,
		Cash:            f.cash,
		SupplyLower:     f.supplyRange.Lower,
		SupplyUpper:     f.supplyRange.Upper,
		Stock:           f.stock[round],
		ProductID:       f.productID,
		ProductName:     f.productName,
		ProductCategory: f.productCategory.String(),
	}
}

// RoundEvent builds the end-of-round log record from the closed bill.
func (f *Factory) RoundEvent(round uint64, timestamp int64) tradelog.FactoryRoundEvent {
	bill := f.accountant.BillOrDefault(round)
	return tradelog.FactoryRoundEvent{
		Timestamp:       timestamp,
		Round:           round,
		FactoryID:       f.id,
		FactoryName:     f.name,
		ProductID:       f.productID,
		ProductCategory: f.productCategory.String(),
		Cash:            f.cash,
		InitialStock:    bill.InitialStock,
		RemainingStock:  bill.RemainingStock,
		SupplyLower:     f.supplyRange.Lower,
		SupplyUpper:     f.supplyRange.Upper,
		UnitsSold:       bill.UnitsSold,
		Revenue:         bill.Revenue,
		TotalProduction: bill.TotalProduction,
		RotStock:        bill.RotStock,
		ProductionCost:  bill.ProductionCost,
		Profit:          bill.Profit,
		Status:          f.Status(round).String(),
	}
}
