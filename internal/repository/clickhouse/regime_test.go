package clickhouse

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketregime/internal/domain/regime"
	"marketregime/internal/services/regime_classifier"
	"marketregime/internal/testsupport"
	"marketregime/pkg/logger"
)

func TestRegimeRepository_StoreRows(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cfg := testsupport.LoadDatabaseConfigsFromEnv(t)
	helper := testsupport.NewClickHouseTestHelper(t, cfg.ClickHouse)
	repo := NewRegimeRepository(helper.Client().Conn())
	ctx := context.Background()

	classifier, err := regime_classifier.New(regime.DefaultParams(), logger.Nop())
	require.NoError(t, err)
	table, err := classifier.Classify(testsupport.NewBarSeriesFixture().Build())
	require.NoError(t, err)

	symbol := testsupport.UniqueSymbol("BTC")
	helper.RegisterTableCleanup(t, "market_regime_bars", "symbol = '"+symbol+"'")

	run := regime.NewRun(symbol, "1h", table, regime_classifier.Summarize(table), table.Rows[0].Timestamp)
	require.NoError(t, repo.StoreRows(ctx, run, table))

	count, err := helper.Count(ctx, "market_regime_bars", "run_id = ?", run.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(table.Len()), count)

	rows, err := repo.GetRunRows(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, rows, table.Len())

	assert.True(t, math.IsNaN(rows[0].SMALong), "undefined features round-trip as NaN")
	assert.Equal(t, regime.Sideways, rows[0].Regime)
	last := rows[len(rows)-1]
	assert.Equal(t, regime.Bull, last.Regime)
	assert.Equal(t, 1, last.RegimeCode)
	assert.Equal(t, table.ATRHighThr, last.ATRHighThr)

	require.NoError(t, repo.StoreRows(ctx, run, &regime.Table{}), "empty table is a no-op")
}
