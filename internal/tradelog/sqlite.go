package tradelog

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLite is a Recorder that persists events to a SQLite database. Writes
// flow through a buffered channel to a single writer goroutine, so record
// calls cost one channel send; when the buffer is full the event is
// dropped rather than stalling a trading worker.
type SQLite struct {
	conn  *sqlx.DB
	runID string

	ch   chan func(*sqlx.DB)
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

const sinkBuffer = 1024

// OpenSQLite opens (or creates) the event database at path and starts the
// writer. runID is stamped on every record so multiple runs can share one
// database.
func OpenSQLite(path, runID string) (*SQLite, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLite{
		conn:  conn,
		runID: runID,
		ch:    make(chan func(*sqlx.DB), sinkBuffer),
		done:  make(chan struct{}),
	}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	go s.writeLoop()
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trade_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		round INTEGER NOT NULL,
		trade_id INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		agent_name TEXT NOT NULL,
		agent_cash REAL NOT NULL,
		pref_original_price REAL NOT NULL,
		pref_original_elastic REAL NOT NULL,
		pref_current_price REAL NOT NULL,
		pref_range_lower REAL NOT NULL,
		pref_range_upper REAL NOT NULL,
		factory_id INTEGER NOT NULL,
		factory_name TEXT NOT NULL,
		product_id INTEGER NOT NULL,
		product_name TEXT NOT NULL,
		trade_result TEXT NOT NULL,
		interval_relation TEXT NOT NULL,
		price REAL NOT NULL,
		supply_range_lower REAL NOT NULL,
		supply_range_upper REAL NOT NULL,
		factory_stock INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS factory_range_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		round INTEGER NOT NULL,
		factory_id INTEGER NOT NULL,
		factory_name TEXT NOT NULL,
		product_id INTEGER NOT NULL,
		product_category TEXT NOT NULL,
		old_lower REAL NOT NULL,
		old_upper REAL NOT NULL,
		new_lower REAL NOT NULL,
		new_upper REAL NOT NULL,
		lower_change REAL NOT NULL,
		upper_change REAL NOT NULL,
		total_change REAL NOT NULL,
		lower_change_ratio REAL NOT NULL,
		upper_change_ratio REAL NOT NULL,
		trade_result TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_range_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		round INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		agent_name TEXT NOT NULL,
		product_id INTEGER NOT NULL,
		product_category TEXT NOT NULL,
		old_lower REAL NOT NULL,
		old_upper REAL NOT NULL,
		new_lower REAL NOT NULL,
		new_upper REAL NOT NULL,
		lower_change REAL NOT NULL,
		upper_change REAL NOT NULL,
		lower_change_ratio REAL NOT NULL,
		upper_change_ratio REAL NOT NULL,
		center REAL NOT NULL,
		adjustment_type TEXT NOT NULL,
		price REAL
	);

	CREATE TABLE IF NOT EXISTS demand_removal_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		round INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		agent_name TEXT NOT NULL,
		product_id INTEGER NOT NULL,
		agent_cash REAL NOT NULL,
		pref_original_price REAL,
		pref_original_elastic REAL,
		pref_current_price REAL,
		pref_range_lower REAL,
		pref_range_upper REAL,
		removal_reason TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_cash_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		round INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		agent_name TEXT NOT NULL,
		cash REAL NOT NULL,
		total_trades INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS factory_round_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		round INTEGER NOT NULL,
		factory_id INTEGER NOT NULL,
		factory_name TEXT NOT NULL,
		product_id INTEGER NOT NULL,
		product_category TEXT NOT NULL,
		cash REAL NOT NULL,
		initial_stock INTEGER NOT NULL,
		remaining_stock INTEGER NOT NULL,
		supply_range_lower REAL NOT NULL,
		supply_range_upper REAL NOT NULL,
		units_sold INTEGER NOT NULL,
		revenue REAL NOT NULL,
		total_production INTEGER NOT NULL,
		rot_stock INTEGER NOT NULL,
		production_cost REAL NOT NULL,
		profit REAL NOT NULL,
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trade_logs_round ON trade_logs(round);
	CREATE INDEX IF NOT EXISTS idx_agent_cash_round ON agent_cash_logs(round);
	CREATE INDEX IF NOT EXISTS idx_factory_round_round ON factory_round_logs(round);
	`
	_, err := s.conn.Exec(schema)
	return err
}

func (s *SQLite) writeLoop() {
	defer close(s.done)
	for write := range s.ch {
		write(s.conn)
	}
}

// submit queues one write. Drops the event when the sink is closed or the
// buffer is full.
func (s *SQLite) submit(write func(*sqlx.DB)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	select {
	case s.ch <- write:
	default:
		slog.Warn("tradelog buffer full, dropping event")
	}
	s.mu.Unlock()
}

// Close drains pending writes and closes the database.
func (s *SQLite) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	<-s.done
	return s.conn.Close()
}

func (s *SQLite) RecordTrade(e TradeEvent) {
	runID := s.runID
	s.submit(func(db *sqlx.DB) {
		_, err := db.Exec(`INSERT INTO trade_logs
			(run_id, timestamp, round, trade_id, agent_id, agent_name, agent_cash,
			 pref_original_price, pref_original_elastic, pref_current_price,
			 pref_range_lower, pref_range_upper,
			 factory_id, factory_name, product_id, product_name,
			 trade_result, interval_relation, price,
			 supply_range_lower, supply_range_upper, factory_stock)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, e.Timestamp, e.Round, e.TradeID,
			e.Agent.AgentID, e.Agent.AgentName, e.Agent.Cash,
			e.Agent.OriginalPrice, e.Agent.OriginalElastic, e.Agent.CurrentPrice,
			e.Agent.RangeLower, e.Agent.RangeUpper,
			e.Factory.FactoryID, e.Factory.FactoryName,
			e.Factory.ProductID, e.Factory.ProductName,
			e.TradeResult, e.IntervalRelation, e.Price,
			e.Factory.SupplyLower, e.Factory.SupplyUpper, e.Factory.Stock,
		)
		if err != nil {
			slog.Error("record trade", "error", err)
		}
	})
}

func (s *SQLite) RecordFactoryRange(e FactoryRangeEvent) {
	runID := s.runID
	s.submit(func(db *sqlx.DB) {
		_, err := db.Exec(`INSERT INTO factory_range_logs
			(run_id, round, factory_id, factory_name, product_id, product_category,
			 old_lower, old_upper, new_lower, new_upper,
			 lower_change, upper_change, total_change,
			 lower_change_ratio, upper_change_ratio, trade_result)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, e.Round, e.FactoryID, e.FactoryName, e.ProductID, e.ProductCategory,
			e.OldLower, e.OldUpper, e.NewLower, e.NewUpper,
			e.LowerChange, e.UpperChange, e.TotalChange,
			e.LowerChangeRatio, e.UpperChangeRatio, e.TradeResult,
		)
		if err != nil {
			slog.Error("record factory range", "error", err)
		}
	})
}

func (s *SQLite) RecordAgentRange(e AgentRangeEvent) {
	runID := s.runID
	s.submit(func(db *sqlx.DB) {
		_, err := db.Exec(`INSERT INTO agent_range_logs
			(run_id, round, agent_id, agent_name, product_id, product_category,
			 old_lower, old_upper, new_lower, new_upper,
			 lower_change, upper_change, lower_change_ratio, upper_change_ratio,
			 center, adjustment_type, price)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, e.Round, e.AgentID, e.AgentName, e.ProductID, e.ProductCategory,
			e.OldLower, e.OldUpper, e.NewLower, e.NewUpper,
			e.LowerChange, e.UpperChange, e.LowerChangeRatio, e.UpperChangeRatio,
			e.Center, e.AdjustmentType, e.Price,
		)
		if err != nil {
			slog.Error("record agent range", "error", err)
		}
	})
}

func (s *SQLite) RecordDemandRemoval(e DemandRemovalEvent) {
	runID := s.runID
	s.submit(func(db *sqlx.DB) {
		_, err := db.Exec(`INSERT INTO demand_removal_logs
			(run_id, round, agent_id, agent_name, product_id, agent_cash,
			 pref_original_price, pref_original_elastic, pref_current_price,
			 pref_range_lower, pref_range_upper, removal_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, e.Round, e.Agent.AgentID, e.Agent.AgentName, e.ProductID, e.Agent.Cash,
			e.Agent.OriginalPrice, e.Agent.OriginalElastic, e.Agent.CurrentPrice,
			e.Agent.RangeLower, e.Agent.RangeUpper, e.Reason,
		)
		if err != nil {
			slog.Error("record demand removal", "error", err)
		}
	})
}

func (s *SQLite) RecordAgentCash(e AgentCashEvent) {
	runID := s.runID
	s.submit(func(db *sqlx.DB) {
		_, err := db.Exec(`INSERT INTO agent_cash_logs
			(run_id, timestamp, round, agent_id, agent_name, cash, total_trades)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, e.Timestamp, e.Round, e.AgentID, e.AgentName, e.Cash, e.TotalTrades,
		)
		if err != nil {
			slog.Error("record agent cash", "error", err)
		}
	})
}

func (s *SQLite) RecordFactoryRound(e FactoryRoundEvent) {
	runID := s.runID
	s.submit(func(db *sqlx.DB) {
		_, err := db.Exec(`INSERT INTO factory_round_logs
			(run_id, timestamp, round, factory_id, factory_name, product_id,
			 product_category, cash, initial_stock, remaining_stock,
			 supply_range_lower, supply_range_upper, units_sold, revenue,
			 total_production, rot_stock, production_cost, profit, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, e.Timestamp, e.Round, e.FactoryID, e.FactoryName, e.ProductID,
			e.ProductCategory, e.Cash, e.InitialStock, e.RemainingStock,
			e.SupplyLower, e.SupplyUpper, e.UnitsSold, e.Revenue,
			e.TotalProduction, e.RotStock, e.ProductionCost, e.Profit, e.Status,
		)
		if err != nil {
			slog.Error("record factory round", "error", err)
		}
	})
}
