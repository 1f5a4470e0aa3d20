package sim

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/agora/internal/catalog"
	"github.com/talgya/agora/internal/dist"
	"github.com/talgya/agora/internal/tradelog"
)

func testMarket(t *testing.T, products ...catalog.Product) *Market {
	t.Helper()
	return NewMarket(products, dist.NewSource(17), tradelog.Nop{}, slog.Default())
}

func TestNewMarketPopulation(t *testing.T) {
	m := testMarket(t, testProduct(1), testProduct(2))

	assert.Len(t, m.Agents(), agentCount)
	for _, agent := range m.Agents() {
		assert.Equal(t, agentStartingCash, agent.Cash())
	}

	for _, id := range []uint64{1, 2} {
		count := len(m.Factories(id))
		assert.GreaterOrEqual(t, count, 3)
		assert.LessOrEqual(t, count, 4)
	}
}

func TestShuffleKeepsMembership(t *testing.T) {
	m := testMarket(t, testProduct(1))

	before := make(map[uint64]bool)
	for _, f := range m.Factories(1) {
		before[f.ID()] = true
	}
	agentIDs := make(map[uint64]bool)
	for _, a := range m.Agents() {
		agentIDs[a.ID()] = true
	}

	for i := 0; i < 5; i++ {
		m.shuffleBeforeRound()
	}

	after := make(map[uint64]bool)
	for _, f := range m.Factories(1) {
		after[f.ID()] = true
	}
	assert.Equal(t, before, after)

	agentIDsAfter := make(map[uint64]bool)
	for _, a := range m.Agents() {
		agentIDsAfter[a.ID()] = true
	}
	assert.Equal(t, agentIDs, agentIDsAfter)
}

func TestSampleOffersSortedAndBounded(t *testing.T) {
	m := testMarket(t, testProduct(1))
	factories := m.Factories(1)
	for _, f := range factories {
		f.stock[1] = 5
	}

	for i := 0; i < 20; i++ {
		offers := m.sampleOffers(factories, 1)
		require.LessOrEqual(t, len(offers), maxSampledFactories)
		for j := 1; j < len(offers); j++ {
			require.LessOrEqual(t, offers[j-1].price, offers[j].price)
		}
	}
}

func TestSampleOffersSkipsEmptyFactories(t *testing.T) {
	m := testMarket(t, testProduct(1))
	factories := m.Factories(1)
	for _, f := range factories {
		f.stock[1] = 0
		f.cash = 0
	}

	assert.Empty(t, m.sampleOffers(factories, 1))
}

func TestProcessProductTradesNoDemand(t *testing.T) {
	m := testMarket(t, testProduct(1))
	product := m.products[0]

	count := m.processProductTrades(0, 1, product, m.Factories(1))

	assert.Zero(t, count)
	// Factories still ran their production tick.
	for _, f := range m.Factories(1) {
		_, ok := f.accountant.Bill(1)
		assert.True(t, ok)
	}
}

func TestProcessProductTradesGuaranteedMatch(t *testing.T) {
	m := testMarket(t, testProduct(1))
	product := m.products[0]

	// Give every agent demand and a belief range no offer can miss.
	for _, agent := range m.Agents() {
		agent.AddDemand(product.ID)
		pref := agent.Preference(product.ID, product.Category)
		pref.CurrentRange = Range{Lower: 0, Upper: 1e9}
	}

	count := m.processProductTrades(0, 1, product, m.Factories(1))
	assert.Greater(t, count, uint64(0))
}

func pinnedFactory(productID uint64, supplyRange Range) *Factory {
	f := testFactory(1000, 1, 0.5, supplyRange)
	f.id = productID
	f.productID = productID
	return f
}

func TestConcurrentWorkersNeverOverdrawAgent(t *testing.T) {
	p1 := testProduct(1)
	p2 := testProduct(2)

	// One agent with demand for both products but only enough cash for
	// one unit. Both product workers negotiate against the same agent in
	// the same round; exactly one trade may clear.
	for i := 0; i < 25; i++ {
		agent := NewAgent(1, "Consumer_1", 50, []catalog.Product{p1, p2}, dist.NewSource(uint64(i+1)), tradelog.Nop{})
		for _, p := range []catalog.Product{p1, p2} {
			agent.AddDemand(p.ID)
			agent.Preference(p.ID, p.Category).CurrentRange = Range{Lower: 10, Upper: 90}
		}

		m := &Market{
			factories: map[uint64][]*Factory{
				p1.ID: {pinnedFactory(p1.ID, Range{Lower: 40, Upper: 40.1})},
				p2.ID: {pinnedFactory(p2.ID, Range{Lower: 40, Upper: 40.1})},
			},
			products: []catalog.Product{p1, p2},
			agents:   []*Agent{agent},
			src:      dist.NewSource(uint64(1000 + i)),
			recorder: tradelog.Nop{},
			logger:   slog.Default(),
		}

		count := m.runTradeWorkers(0, 1)

		require.Equal(t, uint64(1), count)
		require.GreaterOrEqual(t, agent.Cash(), 0.0)
	}
}

func TestStarvedRoundStillSettles(t *testing.T) {
	product := testProduct(1)
	agent := NewAgent(1, "Consumer_1", 1000, []catalog.Product{product}, dist.NewSource(3), tradelog.Nop{})
	agent.AddDemand(product.ID)
	// Elasticity 1 makes the give-up roll certain, so a settling call is
	// observable even with no factory able to quote.
	agent.Preference(product.ID, product.Category).OriginalElastic = 1

	idle := testFactory(0, 1, 0.5, Range{Lower: 10, Upper: 20})
	m := &Market{
		factories: map[uint64][]*Factory{product.ID: {idle}},
		products:  []catalog.Product{product},
		agents:    []*Agent{agent},
		src:       dist.NewSource(5),
		recorder:  tradelog.Nop{},
		logger:    slog.Default(),
	}

	count := m.processProductTrades(0, 1, product, m.Factories(product.ID))

	assert.Zero(t, count)
	assert.False(t, agent.HasDemand(product.ID))
	assert.Equal(t, 1000.0, agent.Cash())
}

func TestRunTradeWorkersJoinsCleanly(t *testing.T) {
	m := testMarket(t, testProduct(1), testProduct(2))
	count := m.runTradeWorkers(0, 1)
	assert.Zero(t, count)
}

func TestShouldStopAllAgentsBroke(t *testing.T) {
	m := testMarket(t, testProduct(1))
	for _, agent := range m.Agents() {
		agent.mu.Lock()
		agent.cash = 0
		agent.mu.Unlock()
	}

	reason, done := m.shouldStop(1)
	assert.True(t, done)
	assert.Contains(t, reason, "out of cash")
}

func TestShouldStopMaxRound(t *testing.T) {
	m := testMarket(t, testProduct(1))

	_, done := m.shouldStop(maxRound)
	assert.False(t, done)

	reason, done := m.shouldStop(maxRound + 1)
	assert.True(t, done)
	assert.Contains(t, reason, "maximum rounds")
}

func TestShouldStopZeroTradeStreak(t *testing.T) {
	m := testMarket(t, testProduct(1))
	m.consecutiveZeroTrades = zeroTradeLimit

	reason, done := m.shouldStop(5)
	assert.True(t, done)
	assert.Contains(t, reason, "consecutive rounds")
}

func TestUBICreditsEveryAgent(t *testing.T) {
	m := testMarket(t, testProduct(1))
	m.ubi()
	for _, agent := range m.Agents() {
		cash := agent.Cash()
		assert.GreaterOrEqual(t, cash, agentStartingCash+ubiLower)
		assert.Less(t, cash, agentStartingCash+ubiUpper)
	}
}
