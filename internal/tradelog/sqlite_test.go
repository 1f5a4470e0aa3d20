package tradelog

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestSQLiteRecordsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	rec, err := OpenSQLite(path, "run-1")
	require.NoError(t, err)

	price := 42.5
	rec.RecordTrade(TradeEvent{
		Timestamp:        1000,
		Round:            1,
		Agent:            AgentSnapshot{AgentID: 1, AgentName: "Consumer_1", Cash: 100},
		Factory:          FactorySnapshot{FactoryID: 2, FactoryName: "Bread_0", ProductID: 3, ProductName: "Bread"},
		TradeResult:      "Success",
		IntervalRelation: "Overlapping",
		Price:            42.5,
	})
	rec.RecordFactoryRange(FactoryRangeEvent{Round: 1, FactoryID: 2, FactoryName: "Bread_0", TradeResult: "Success"})
	rec.RecordAgentRange(AgentRangeEvent{Round: 1, AgentID: 1, AgentName: "Consumer_1", AdjustmentType: "trade_success", Price: &price})
	rec.RecordDemandRemoval(DemandRemovalEvent{Round: 1, Agent: AgentSnapshot{AgentID: 1}, ProductID: 3, Reason: "remove_by_elasticity"})
	rec.RecordAgentCash(AgentCashEvent{Round: 1, AgentID: 1, AgentName: "Consumer_1", Cash: 57.5})
	rec.RecordFactoryRound(FactoryRoundEvent{Round: 1, FactoryID: 2, FactoryName: "Bread_0", Status: "Active"})

	// Close drains the writer before the connection goes away.
	require.NoError(t, rec.Close())

	db, err := sqlx.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{
		"trade_logs", "factory_range_logs", "agent_range_logs",
		"demand_removal_logs", "agent_cash_logs", "factory_round_logs",
	} {
		var count int
		require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM "+table))
		assert.Equal(t, 1, count, table)
	}

	var runID string
	require.NoError(t, db.Get(&runID, "SELECT run_id FROM trade_logs"))
	assert.Equal(t, "run-1", runID)
}

func TestSQLiteCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	rec, err := OpenSQLite(path, "run-2")
	require.NoError(t, err)

	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())

	// Recording after close is a silent drop, not a panic.
	rec.RecordAgentCash(AgentCashEvent{Round: 1})
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordTrade(TradeEvent{})
	r.RecordAgentCash(AgentCashEvent{})
	assert.NoError(t, r.Close())
}
