package regime

import (
	"context"
)

// Repository stores classified rows (ClickHouse)
type Repository interface {
	StoreRows(ctx context.Context, run *Run, table *Table) error
}

// RunRepository stores one record per classification call (PostgreSQL)
type RunRepository interface {
	StoreRun(ctx context.Context, run *Run) error
	GetLatestRun(ctx context.Context, symbol, timeframe string) (*Run, error)
}

// Cache keeps the latest snapshot per instrument (Redis)
type Cache interface {
	SetLatest(ctx context.Context, snapshot *Snapshot) error
	GetLatest(ctx context.Context, symbol, timeframe string) (*Snapshot, error)
}

// Publisher emits regime transitions (Kafka)
type Publisher interface {
	PublishChanges(ctx context.Context, events []ChangeEvent) error
}
