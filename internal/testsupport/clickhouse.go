package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"marketregime/internal/adapters/clickhouse"
	"marketregime/internal/adapters/config"
	"marketregime/migrations"
)

// ClickHouseTestHelper manages schema and cleanup for ClickHouse integration tests.
type ClickHouseTestHelper struct {
	client *clickhouse.Client
}

// NewClickHouseTestHelper connects, applies the migrations and closes the
// client when the test ends.
func NewClickHouseTestHelper(t *testing.T, cfg config.ClickHouseConfig) *ClickHouseTestHelper {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := clickhouse.NewClient(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to connect to clickhouse: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	exec := func(ctx context.Context, stmt string) error { return client.Exec(ctx, stmt) }
	if err := migrations.Apply(ctx, migrations.ClickHouse, exec); err != nil {
		t.Fatalf("failed to apply clickhouse migrations: %v", err)
	}

	return &ClickHouseTestHelper{client: client}
}

// Client returns the underlying client
func (h *ClickHouseTestHelper) Client() *clickhouse.Client {
	return h.client
}

// CreateTempTable creates a temporary table and registers cleanup.
func (h *ClickHouseTestHelper) CreateTempTable(t *testing.T, schema string) string {
	t.Helper()

	table := UniqueName("tmp_test")
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s) ENGINE = MergeTree() ORDER BY tuple()", table, schema)

	if err := h.client.Exec(context.Background(), query); err != nil {
		t.Fatalf("failed to create clickhouse table: %v", err)
	}

	t.Cleanup(func() {
		_ = h.client.Exec(context.Background(), fmt.Sprintf("DROP TABLE IF EXISTS %s", table))
	})

	return table
}

// Count returns the number of rows matching condition
func (h *ClickHouseTestHelper) Count(ctx context.Context, table, condition string, args ...interface{}) (uint64, error) {
	var count uint64
	query := fmt.Sprintf("SELECT count() FROM %s WHERE %s", table, condition)
	if err := h.client.Conn().QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// RegisterTableCleanup schedules deletion of the rows matching condition
// after the test completes. Use it for shared tables that must not be dropped.
// Example: RegisterTableCleanup(t, "ohlcv", "symbol = 'BTC_123'")
func (h *ClickHouseTestHelper) RegisterTableCleanup(t *testing.T, table, condition string) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = h.client.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", table, condition))
	})
}
