package sim

import (
	"context"
	"sync"
	"time"

	"github.com/talgya/agora/internal/catalog"
	"github.com/talgya/agora/internal/dist"
	"github.com/talgya/agora/internal/tradelog"
)

// Agent is one consumer: cash, a demand set fed by a background desire
// loop, and a price belief per product. Agents are shared across product
// workers, so every access goes through the agent's own lock.
type Agent struct {
	id   uint64
	name string

	// tradeMu serializes one full negotiate-then-settle pass per agent.
	// Product workers hold it for the whole pass so the affordability
	// check in Negotiate and the debit in Settling see the same cash.
	tradeMu sync.Mutex

	mu          sync.RWMutex
	cash        float64
	preferences map[catalog.Category]map[uint64]*Preference
	demand      map[uint64]bool

	recorder tradelog.Recorder
	src      *dist.Source
}

// NewAgent builds an agent holding one sampled preference per product.
func NewAgent(id uint64, name string, cash float64, products []catalog.Product, src *dist.Source, recorder tradelog.Recorder) *Agent {
	preferences := make(map[catalog.Category]map[uint64]*Preference)
	for _, p := range products {
		byProduct, ok := preferences[p.Category]
		if !ok {
			byProduct = make(map[uint64]*Preference)
			preferences[p.Category] = byProduct
		}
		byProduct[p.ID] = PreferenceFromProduct(p, src)
	}
	return &Agent{
		id:          id,
		name:        name,
		cash:        cash,
		preferences: preferences,
		demand:      make(map[uint64]bool),
		recorder:    recorder,
		src:         src,
	}
}

func (a *Agent) ID() uint64   { return a.id }
func (a *Agent) Name() string { return a.name }

func (a *Agent) Cash() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cash
}

// Income credits the agent a uniform draw from [lower, upper).
func (a *Agent) Income(lower, upper float64) {
	amount := a.src.Uniform(lower, upper)
	a.mu.Lock()
	a.cash += amount
	a.mu.Unlock()
}

// HasDemand reports whether the agent currently wants to buy the product.
func (a *Agent) HasDemand(productID uint64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.demand[productID]
}

// AddDemand marks the product as wanted. The desire loop is the normal
// producer; direct calls seed specific demand states.
func (a *Agent) AddDemand(productID uint64) {
	a.mu.Lock()
	a.demand[productID] = true
	a.mu.Unlock()
}

// StartDesireLoop runs the background demand generator until ctx is
// cancelled. It wakes every 100-500ms and, per category, walks a shuffled
// candidate list adding the first not-yet-demanded product whose draw beats
// its elasticity. The round loop only ever reads the demand set.
func (a *Agent) StartDesireLoop(ctx context.Context) {
	go func() {
		for {
			wait := time.Duration(100+a.src.IntN(400)) * time.Millisecond
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}

			for _, category := range catalog.Categories {
				if id, ok := a.pickDesire(category); ok {
					a.AddDemand(id)
				}
			}
		}
	}()
}

// pickDesire samples one new demand candidate from a category, or none.
func (a *Agent) pickDesire(category catalog.Category) (uint64, bool) {
	a.mu.RLock()
	byProduct := a.preferences[category]
	ids := make([]uint64, 0, len(byProduct))
	for id := range byProduct {
		ids = append(ids, id)
	}
	a.mu.RUnlock()

	for _, i := range a.src.Perm(len(ids)) {
		id := ids[i]
		if a.HasDemand(id) {
			continue
		}
		a.mu.RLock()
		elastic := byProduct[id].OriginalElastic
		a.mu.RUnlock()
		if a.src.Uniform(0.01, 0.99) > elastic {
			return id, true
		}
	}
	return 0, false
}

// Negotiate evaluates one offer without mutating anything. No demand is
// NotMatched; unaffordable offers burn out on cash; otherwise the offer is
// classified against the belief range and only an in-range price clears.
func (a *Agent) Negotiate(round uint64, productID uint64, category catalog.Category, price float64) (TradeResult, IntervalRelation) {
	if !a.HasDemand(productID) {
		return NotMatched, IntervalRelation{Kind: RelationAgentBelowFactory}
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.cash < price {
		return Failed, IntervalRelation{Kind: RelationCashBurnedOut}
	}

	r := a.preferences[category][productID].CurrentRange
	switch {
	case price < r.Lower:
		return Failed, IntervalRelation{Kind: RelationAgentAboveFactory}
	case price > r.Upper:
		return Failed, IntervalRelation{Kind: RelationAgentBelowFactory}
	default:
		return Success(price), Overlapping(price)
	}
}

// Settling applies the round's final outcome for one product: exactly one
// of the success or failure handlers runs, fed with every price offered
// this round so the range updates see the whole price signal.
func (a *Agent) Settling(round uint64, productID uint64, category catalog.Category, result TradeResult, relation IntervalRelation, offeredPrices []float64) {
	switch result.Outcome {
	case OutcomeSuccess:
		a.handleTradeSuccess(round, productID, category, result.Price)
	case OutcomeFailed:
		a.handleTradeFailure(round, productID, category, relation, offeredPrices)
	}
}

// handleTradeSuccess pays for the unit, clears the demand, and contracts
// the belief range around the clearing price.
func (a *Agent) handleTradeSuccess(round uint64, productID uint64, category catalog.Category, price float64) {
	a.mu.Lock()
	pref := a.preferences[category][productID]
	oldRange := pref.CurrentRange
	a.cash -= price
	pref.contractAroundPrice(price)
	newRange := pref.CurrentRange
	delete(a.demand, productID)
	a.mu.Unlock()

	a.logRangeAdjustment(round, productID, category, oldRange, newRange, "trade_success", &price)
}

// handleTradeFailure first rolls against the preference's elasticity: a
// winning roll means the consumer gives up and the demand entry is dropped.
// Otherwise the belief range reacts to the offered prices, except after a
// cash burn-out which leaves the range alone.
func (a *Agent) handleTradeFailure(round uint64, productID uint64, category catalog.Category, relation IntervalRelation, offeredPrices []float64) {
	a.mu.RLock()
	pref := a.preferences[category][productID]
	elastic := pref.OriginalElastic
	a.mu.RUnlock()

	if a.src.Float64() < elastic {
		a.removeDemand(round, productID, category, "remove_by_elasticity")
		return
	}
	if relation.Kind == RelationCashBurnedOut {
		return
	}

	a.mu.Lock()
	oldRange := pref.CurrentRange
	newRange, minPrice := pref.failureAdjustment(offeredPrices)
	pref.CurrentPrice = minPrice
	pref.CurrentRange = newRange
	a.mu.Unlock()

	a.logRangeAdjustment(round, productID, category, oldRange, newRange, "trade_failed", nil)
}

func (a *Agent) removeDemand(round uint64, productID uint64, category catalog.Category, reason string) {
	a.mu.Lock()
	delete(a.demand, productID)
	a.mu.Unlock()

	a.recorder.RecordDemandRemoval(tradelog.DemandRemovalEvent{
		Round:     round,
		Agent:     a.Snapshot(productID, category),
		ProductID: productID,
		Reason:    reason,
	})
}

func (a *Agent) logRangeAdjustment(round uint64, productID uint64, category catalog.Category, oldRange, newRange Range, adjustment string, price *float64) {
	d := deltaBetween(oldRange, newRange)
	center := (newRange.Lower + newRange.Upper) / 2
	a.recorder.RecordAgentRange(tradelog.AgentRangeEvent{
		Round:            round,
		AgentID:          a.id,
		AgentName:        a.name,
		ProductID:        productID,
		ProductCategory:  category.String(),
		OldLower:         oldRange.Lower,
		OldUpper:         oldRange.Upper,
		NewLower:         newRange.Lower,
		NewUpper:         newRange.Upper,
		LowerChange:      d.lowerChange,
		UpperChange:      d.upperChange,
		LowerChangeRatio: d.lowerChangeRatio,
		UpperChangeRatio: d.upperChangeRatio,
		Center:           center,
		AdjustmentType:   adjustment,
		Price:            price,
	})
}

// Preference returns the agent's belief for one product.
func (a *Agent) Preference(productID uint64, category catalog.Category) *Preference {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.preferences[category][productID]
}

// Snapshot captures the agent state for a log record, including the belief
// for the product in play.
func (a *Agent) Snapshot(productID uint64, category catalog.Category) tradelog.AgentSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap := tradelog.AgentSnapshot{
		AgentID:   a.id,
		AgentName: a.name,
		Cash:      a.cash,
	}
	if pref, ok := a.preferences[category][productID]; ok {
		snap.OriginalPrice = pref.OriginalPrice
		snap.OriginalElastic = pref.OriginalElastic
		snap.CurrentPrice = pref.CurrentPrice
		snap.RangeLower = pref.CurrentRange.Lower
		snap.RangeUpper = pref.CurrentRange.Upper
	}
	return snap
}
