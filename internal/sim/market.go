package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/talgya/agora/internal/catalog"
	"github.com/talgya/agora/internal/dist"
	"github.com/talgya/agora/internal/tradelog"
)

const (
	// maxRound is the hard cap on simulation length.
	maxRound = 8000
	// zeroTradeLimit ends the run after this many consecutive rounds
	// without a single trade.
	zeroTradeLimit = 20
	// roundPause is the fixed delay between rounds.
	roundPause = 100 * time.Millisecond

	agentCount        = 100
	agentStartingCash = 10000.0

	// UBI bounds: every agent gets a uniform draw from this interval at
	// the end of each round.
	ubiLower = 800.0
	ubiUpper = 1200.0

	// maxSampledFactories bounds how many factories an agent shops at per
	// product per round.
	maxSampledFactories = 3
)

// Market owns the whole economy and drives the round loop. Factories are
// partitioned by product and exclusively owned by that product's worker
// during a round; agents are shared across workers behind per-agent locks.
type Market struct {
	factories map[uint64][]*Factory
	products  []catalog.Product

	agentsMu sync.RWMutex
	agents   []*Agent

	consecutiveZeroTrades uint32

	src      *dist.Source
	recorder tradelog.Recorder
	logger   *slog.Logger
}

// NewMarket builds the economy from the product catalog: three or four
// factories per product (coin flip) and a fixed population of agents with
// equal starting cash.
func NewMarket(products []catalog.Product, src *dist.Source, recorder tradelog.Recorder, logger *slog.Logger) *Market {
	factories := make(map[uint64][]*Factory, len(products))
	factoryID := uint64(1)
	for _, product := range products {
		count := 3
		if src.Bool(0.5) {
			count = 4
		}
		list := make([]*Factory, 0, count)
		for i := 0; i < count; i++ {
			list = append(list, NewFactory(factoryID, fmt.Sprintf("%s_%d", product.Name, i), product, src, recorder))
			factoryID++
		}
		factories[product.ID] = list
	}

	agents := make([]*Agent, 0, agentCount)
	for id := uint64(1); id <= agentCount; id++ {
		agents = append(agents, NewAgent(id, fmt.Sprintf("Consumer_%d", id), agentStartingCash, products, src, recorder))
	}

	return &Market{
		factories: factories,
		products:  products,
		agents:    agents,
		src:       src,
		recorder:  recorder,
		logger:    logger,
	}
}

// Agents returns the agent list. Callers must treat it as read-only.
func (m *Market) Agents() []*Agent {
	m.agentsMu.RLock()
	defer m.agentsMu.RUnlock()
	return m.agents
}

// Factories returns the factory list for a product.
func (m *Market) Factories(productID uint64) []*Factory {
	return m.factories[productID]
}

// StartDesireLoops launches every agent's background demand generator.
// The loops run until ctx is cancelled and never participate in the round
// barrier.
func (m *Market) StartDesireLoops(ctx context.Context) {
	m.agentsMu.RLock()
	defer m.agentsMu.RUnlock()
	for _, agent := range m.agents {
		agent.StartDesireLoop(ctx)
	}
}

// Run drives rounds until a termination predicate fires or ctx is
// cancelled. Returns the number of completed rounds.
func (m *Market) Run(ctx context.Context) uint64 {
	round := uint64(1)
	var totalTrades uint64

	for {
		timestamp := time.Now().UnixMilli()
		m.shuffleBeforeRound()

		roundTrades := m.runTradeWorkers(timestamp, round)
		totalTrades += roundTrades

		if roundTrades == 0 {
			m.consecutiveZeroTrades++
		} else {
			m.consecutiveZeroTrades = 0
		}

		// Settlement, logging, and UBI are strictly single-threaded.
		for _, list := range m.factories {
			for _, factory := range list {
				factory.SettleRound(round)
			}
		}
		m.logAgentsAfterRound(round, timestamp, totalTrades)
		m.logFactoriesAfterRound(round, timestamp)
		m.ubi()

		m.logger.Info("round complete",
			"round", round,
			"trades", roundTrades,
			"total_trades", totalTrades,
			"zero_trade_streak", m.consecutiveZeroTrades,
		)

		if reason, done := m.shouldStop(round); done {
			m.logger.Info("simulation finished", "round", round, "reason", reason)
			return round
		}

		round++
		select {
		case <-ctx.Done():
			m.logger.Info("simulation cancelled", "round", round)
			return round
		case <-time.After(roundPause):
		}
	}
}

// shuffleBeforeRound randomizes every factory list and the agent list so
// processing order carries no systematic bias.
func (m *Market) shuffleBeforeRound() {
	for _, list := range m.factories {
		perm := m.src.Perm(len(list))
		shuffled := make([]*Factory, len(list))
		for i, j := range perm {
			shuffled[i] = list[j]
		}
		copy(list, shuffled)
	}

	m.agentsMu.Lock()
	perm := m.src.Perm(len(m.agents))
	shuffled := make([]*Agent, len(m.agents))
	for i, j := range perm {
		shuffled[i] = m.agents[j]
	}
	copy(m.agents, shuffled)
	m.agentsMu.Unlock()
}

// runTradeWorkers spawns one worker per product, joins them all, and
// returns the round's trade count. Each worker owns its product's factory
// list for the round.
func (m *Market) runTradeWorkers(timestamp int64, round uint64) uint64 {
	var wg sync.WaitGroup
	var countMu sync.Mutex
	var roundTrades uint64

	for _, product := range m.products {
		list, ok := m.factories[product.ID]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(product catalog.Product, list []*Factory) {
			defer wg.Done()
			count := m.processProductTrades(timestamp, round, product, list)
			countMu.Lock()
			roundTrades += count
			countMu.Unlock()
		}(product, list)
	}
	wg.Wait()
	return roundTrades
}

// offer is one sampled factory with the price it quoted this pass.
type offer struct {
	price   float64
	factory *Factory
}

// processProductTrades advances one product through a round: every factory
// starts its production tick, then every demanding agent shops a sampled
// subset of factories, negotiating cheapest-first until the first success.
func (m *Market) processProductTrades(timestamp int64, round uint64, product catalog.Product, factories []*Factory) uint64 {
	var tradesCount uint64

	for _, factory := range factories {
		factory.StartRound(round)
	}

	m.agentsMu.RLock()
	agents := m.agents
	m.agentsMu.RUnlock()

	for _, agent := range agents {
		if !agent.HasDemand(product.ID) {
			continue
		}

		offers := m.sampleOffers(factories, round)

		type attempt struct {
			result   TradeResult
			relation IntervalRelation
		}
		attempts := make([]attempt, 0, len(offers))
		offeredPrices := make([]float64, 0, len(offers))
		winIndex := -1

		// The trade lock spans the whole negotiate-then-settle pass, so a
		// worker for another product cannot spend this agent's cash between
		// the affordability check and the debit.
		agent.tradeMu.Lock()
		for i, o := range offers {
			result, relation := agent.Negotiate(round, product.ID, product.Category, o.price)
			offeredPrices = append(offeredPrices, o.price)
			attempts = append(attempts, attempt{result: result, relation: relation})
			m.logTrade(timestamp, round, agent, o.factory, product, result, relation, o.price)
			if result.Outcome == OutcomeSuccess {
				tradesCount++
				winIndex = i
				break
			}
		}

		// One settling call per agent per product, fed with every price
		// quoted this pass. A round with no quotable factory still settles
		// as a failure so the give-up roll can fire.
		switch {
		case winIndex >= 0:
			win := attempts[winIndex]
			agent.Settling(round, product.ID, product.Category, win.result, win.relation, offeredPrices)
		case len(attempts) > 0:
			last := attempts[len(attempts)-1]
			agent.Settling(round, product.ID, product.Category, Failed, last.relation, offeredPrices)
		default:
			agent.Settling(round, product.ID, product.Category, Failed, IntervalRelation{Kind: RelationAgentBelowFactory}, nil)
		}
		agent.tradeMu.Unlock()

		// Every sampled factory hears about the outcome. Factories past a
		// winning index were skipped because a cheaper ask already cleared
		// the demand, so they learn they were outpriced.
		for i, o := range offers {
			var result TradeResult
			var relation *IntervalRelation
			if i < len(attempts) {
				result = attempts[i].result
				rel := attempts[i].relation
				relation = &rel
			} else {
				result = Failed
			}

			if result.Outcome == OutcomeFailed && winIndex >= 0 && i > winIndex {
				relation = &IntervalRelation{Kind: RelationAgentBelowFactory}
			}
			o.factory.Deal(result, round, relation)
		}
	}
	return tradesCount
}

// sampleOffers picks up to maxSampledFactories active, in-stock factories
// uniformly at random and returns their quotes sorted cheapest first.
func (m *Market) sampleOffers(factories []*Factory, round uint64) []offer {
	available := make([]*Factory, 0, len(factories))
	for _, f := range factories {
		if f.Status(round) == StatusActive && f.Stock(round) > 0 {
			available = append(available, f)
		}
	}

	n := min(len(available), maxSampledFactories)
	offers := make([]offer, 0, n)
	for _, i := range m.src.Perm(len(available))[:n] {
		f := available[i]
		offers = append(offers, offer{price: f.OfferPrice(), factory: f})
	}
	sort.Slice(offers, func(i, j int) bool { return offers[i].price < offers[j].price })
	return offers
}

func (m *Market) logTrade(timestamp int64, round uint64, agent *Agent, factory *Factory, product catalog.Product, result TradeResult, relation IntervalRelation, price float64) {
	clearing := -1.0
	if result.Outcome == OutcomeSuccess {
		clearing = result.Price
	}
	m.recorder.RecordTrade(tradelog.TradeEvent{
		Timestamp:        timestamp,
		Round:            round,
		Agent:            agent.Snapshot(product.ID, product.Category),
		Factory:          factory.Snapshot(round),
		TradeResult:      result.Outcome.String(),
		IntervalRelation: relation.Kind.String(),
		Price:            clearing,
	})
}

func (m *Market) logAgentsAfterRound(round uint64, timestamp int64, totalTrades uint64) {
	m.agentsMu.RLock()
	defer m.agentsMu.RUnlock()
	for _, agent := range m.agents {
		m.recorder.RecordAgentCash(tradelog.AgentCashEvent{
			Timestamp:   timestamp,
			Round:       round,
			AgentID:     agent.ID(),
			AgentName:   agent.Name(),
			Cash:        agent.Cash(),
			TotalTrades: totalTrades,
		})
	}
}

func (m *Market) logFactoriesAfterRound(round uint64, timestamp int64) {
	for _, list := range m.factories {
		for _, factory := range list {
			m.recorder.RecordFactoryRound(factory.RoundEvent(round, timestamp))
		}
	}
}

// ubi hands every agent its unconditional per-round income.
func (m *Market) ubi() {
	m.agentsMu.RLock()
	defer m.agentsMu.RUnlock()
	for _, agent := range m.agents {
		agent.Income(ubiLower, ubiUpper)
	}
}

// shouldStop evaluates the termination predicates in priority order.
func (m *Market) shouldStop(round uint64) (string, bool) {
	m.agentsMu.RLock()
	allBroke := true
	for _, agent := range m.agents {
		if agent.Cash() >= 0.01 {
			allBroke = false
			break
		}
	}
	m.agentsMu.RUnlock()

	switch {
	case allBroke:
		return "all agents out of cash", true
	case round > maxRound:
		return fmt.Sprintf("reached maximum rounds (%d)", maxRound), true
	case m.consecutiveZeroTrades >= zeroTradeLimit:
		return fmt.Sprintf("no trades for %d consecutive rounds", m.consecutiveZeroTrades), true
	}
	return "", false
}
