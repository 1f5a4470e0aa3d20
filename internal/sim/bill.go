package sim

// FinancialBill is one factory's books for one round. It is created lazily
// on first access and closed out exactly once during round settlement.
type FinancialBill struct {
	Cash            float64 `json:"cash"`             // Factory cash when the bill was opened, overwritten at close
	InitialStock    int     `json:"initial_stock"`    // Carried stock + fresh production
	RemainingStock  int     `json:"remaining_stock"`  // Unsold units surviving rot
	RotStock        int     `json:"rot_stock"`        // Unsold units lost to imperfect durability
	UnitsSold       int     `json:"units_sold"`
	Revenue         float64 `json:"revenue"`
	TotalProduction int     `json:"total_production"` // Fresh units produced this round
	ProductionCost  float64 `json:"production_cost"`
	Profit          float64 `json:"profit"` // Revenue minus cost of goods gone (sold + rotted)
}

// NewFinancialBill opens a bill with the factory's cash at that moment.
func NewFinancialBill(cash float64) *FinancialBill {
	return &FinancialBill{Cash: cash}
}

// billRetention bounds how many rounds of bills an accountant keeps.
const billRetention = 20

// Accountant keeps a factory's financial bills with bounded retention:
// the oldest round is evicted once more than billRetention are held.
type Accountant struct {
	bills map[uint64]*FinancialBill
	order []uint64 // Rounds in creation order, oldest first
}

// NewAccountant opens the books with a round-0 bill holding the factory's
// starting cash, so the first real round has a predecessor to plan from.
func NewAccountant(cash float64) *Accountant {
	a := &Accountant{bills: make(map[uint64]*FinancialBill)}
	a.bills[0] = NewFinancialBill(cash)
	a.order = append(a.order, 0)
	return a
}

// BillOrDefault returns the bill for round, creating an empty one on first
// access. Creation counts against retention.
func (a *Accountant) BillOrDefault(round uint64) *FinancialBill {
	if bill, ok := a.bills[round]; ok {
		return bill
	}
	bill := NewFinancialBill(0)
	a.bills[round] = bill
	a.order = append(a.order, round)
	if len(a.order) > billRetention {
		oldest := a.order[0]
		a.order = a.order[1:]
		delete(a.bills, oldest)
	}
	return bill
}

// Bill returns the bill for round if one exists.
func (a *Accountant) Bill(round uint64) (*FinancialBill, bool) {
	bill, ok := a.bills[round]
	return bill, ok
}

// Len returns how many bills are currently retained.
func (a *Accountant) Len() int {
	return len(a.bills)
}
