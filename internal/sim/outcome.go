package sim

import "fmt"

// TradeOutcome is the result class of one negotiation attempt.
type TradeOutcome uint8

const (
	// OutcomeNotYet marks a factory that was sampled but never queried
	// because a cheaper factory already closed the deal.
	OutcomeNotYet TradeOutcome = iota
	// OutcomeNotMatched means the agent held no demand for the product.
	OutcomeNotMatched
	// OutcomeSuccess means the trade cleared at TradeResult.Price.
	OutcomeSuccess
	// OutcomeFailed means negotiation happened and broke down.
	OutcomeFailed
)

func (o TradeOutcome) String() string {
	switch o {
	case OutcomeNotYet:
		return "NotYet"
	case OutcomeNotMatched:
		return "NotMatched"
	case OutcomeSuccess:
		return "Success"
	case OutcomeFailed:
		return "Failed"
	}
	return fmt.Sprintf("TradeOutcome(%d)", uint8(o))
}

// TradeResult pairs an outcome with the clearing price when there is one.
type TradeResult struct {
	Outcome TradeOutcome
	Price   float64 // Clearing price, only meaningful for OutcomeSuccess
}

// Success builds a successful result at the given price.
func Success(price float64) TradeResult {
	return TradeResult{Outcome: OutcomeSuccess, Price: price}
}

// Failed is the negotiation-broke-down result.
var Failed = TradeResult{Outcome: OutcomeFailed}

// NotMatched is the no-demand result.
var NotMatched = TradeResult{Outcome: OutcomeNotMatched}

// RelationKind classifies how an offered price sits against an agent's
// belief range.
type RelationKind uint8

const (
	// RelationOverlapping — the offer fell inside the belief range.
	RelationOverlapping RelationKind = iota
	// RelationAgentBelowFactory — the offer was above the range; the
	// agent's ceiling sits below the factory's ask.
	RelationAgentBelowFactory
	// RelationAgentAboveFactory — the offer was below the range; the
	// agent's floor sits above the factory's ask.
	RelationAgentAboveFactory
	// RelationCashBurnedOut — the agent could not afford the offer at all.
	RelationCashBurnedOut
)

func (k RelationKind) String() string {
	switch k {
	case RelationOverlapping:
		return "Overlapping"
	case RelationAgentBelowFactory:
		return "AgentBelowFactory"
	case RelationAgentAboveFactory:
		return "AgentAboveFactory"
	case RelationCashBurnedOut:
		return "CashBurnedOut"
	}
	return fmt.Sprintf("RelationKind(%d)", uint8(k))
}

// IntervalRelation carries the relation kind plus the overlapping price
// when the offer landed inside the range.
type IntervalRelation struct {
	Kind  RelationKind
	Price float64 // Set for RelationOverlapping only
}

// Overlapping builds an in-range relation at price.
func Overlapping(price float64) IntervalRelation {
	return IntervalRelation{Kind: RelationOverlapping, Price: price}
}
