// Package tradelog provides the structured event sink for the simulation.
// The core fires events at a Recorder and never waits on, or fails
// because of, persistence: sink errors are reported and swallowed.
package tradelog

// AgentSnapshot captures the agent-side state attached to an event.
type AgentSnapshot struct {
	AgentID         uint64  `db:"agent_id"`
	AgentName       string  `db:"agent_name"`
	Cash            float64 `db:"agent_cash"`
	OriginalPrice   float64 `db:"pref_original_price"`
	OriginalElastic float64 `db:"pref_original_elastic"`
	CurrentPrice    float64 `db:"pref_current_price"`
	RangeLower      float64 `db:"pref_range_lower"`
	RangeUpper      float64 `db:"pref_range_upper"`
}

// FactorySnapshot captures the factory-side state attached to an event.
type FactorySnapshot struct {
	FactoryID       uint64  `db:"factory_id"`
	FactoryName     string  `db:"factory_name"`
	Cash            float64 `db:"factory_cash"`
	SupplyLower     float64 `db:"supply_range_lower"`
	SupplyUpper     float64 `db:"supply_range_upper"`
	Stock           int     `db:"factory_stock"`
	ProductID       uint64  `db:"product_id"`
	ProductName     string  `db:"product_name"`
	ProductCategory string  `db:"product_category"`
}

// TradeEvent records one negotiation attempt between an agent and a factory.
type TradeEvent struct {
	Timestamp        int64
	Round            uint64
	TradeID          uint64
	Agent            AgentSnapshot
	Factory          FactorySnapshot
	TradeResult      string
	IntervalRelation string
	Price            float64 // Clearing price, -1 when the trade did not clear
}

// FactoryRangeEvent records a supply-price-range adjustment.
type FactoryRangeEvent struct {
	Round            uint64
	FactoryID        uint64
	FactoryName      string
	ProductID        uint64
	ProductCategory  string
	OldLower         float64
	OldUpper         float64
	NewLower         float64
	NewUpper         float64
	LowerChange      float64
	UpperChange      float64
	TotalChange      float64
	LowerChangeRatio float64
	UpperChangeRatio float64
	TradeResult      string
}

// AgentRangeEvent records a belief-range adjustment.
type AgentRangeEvent struct {
	Round            uint64
	AgentID          uint64
	AgentName        string
	ProductID        uint64
	ProductCategory  string
	OldLower         float64
	OldUpper         float64
	NewLower         float64
	NewUpper         float64
	LowerChange      float64
	UpperChange      float64
	LowerChangeRatio float64
	UpperChangeRatio float64
	Center           float64
	AdjustmentType   string
	Price            *float64 // Clearing price when the adjustment followed a success
}

// DemandRemovalEvent records an agent dropping a product from its demand set.
type DemandRemovalEvent struct {
	Round     uint64
	Agent     AgentSnapshot
	ProductID uint64
	Reason    string
}

// AgentCashEvent records an agent's cash position at round end.
type AgentCashEvent struct {
	Timestamp   int64
	Round       uint64
	AgentID     uint64
	AgentName   string
	Cash        float64
	TotalTrades uint64
}

// FactoryRoundEvent records a factory's end-of-round position: stock,
// supply range, and the closed financial bill.
type FactoryRoundEvent struct {
	Timestamp       int64
	Round           uint64
	FactoryID       uint64
	FactoryName     string
	ProductID       uint64
	ProductCategory string
	Cash            float64
	InitialStock    int
	RemainingStock  int
	SupplyLower     float64
	SupplyUpper     float64
	UnitsSold       int
	Revenue         float64
	TotalProduction int
	RotStock        int
	ProductionCost  float64
	Profit          float64
	Status          string
}

// Recorder accepts structured simulation events. Implementations must be
// safe for concurrent use and must never block the caller for long.
type Recorder interface {
	RecordTrade(e TradeEvent)
	RecordFactoryRange(e FactoryRangeEvent)
	RecordAgentRange(e AgentRangeEvent)
	RecordDemandRemoval(e DemandRemovalEvent)
	RecordAgentCash(e AgentCashEvent)
	RecordFactoryRound(e FactoryRoundEvent)
	Close() error
}

// Nop is a Recorder that discards every event.
type Nop struct{}

func (Nop) RecordTrade(TradeEvent)                 {}
func (Nop) RecordFactoryRange(FactoryRangeEvent)   {}
func (Nop) RecordAgentRange(AgentRangeEvent)       {}
func (Nop) RecordDemandRemoval(DemandRemovalEvent) {}
func (Nop) RecordAgentCash(AgentCashEvent)         {}
func (Nop) RecordFactoryRound(FactoryRoundEvent)   {}
func (Nop) Close() error                           { return nil }
