package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"marketregime/internal/domain/regime"
	"marketregime/pkg/errors"
)

// Compile-time check
var _ regime.RunRepository = (*RunRepository)(nil)

// RunRepository implements regime.RunRepository using sqlx
type RunRepository struct {
	db DBTX
}

// NewRunRepository creates a new run repository
func NewRunRepository(db DBTX) *RunRepository {
	return &RunRepository{db: db}
}

// runRecord mirrors regime_runs; params is stored as jsonb
type runRecord struct {
	regime.Run
	ParamsJSON []byte `db:"params"`
}

// StoreRun inserts one classification run
func (r *RunRepository) StoreRun(ctx context.Context, run *regime.Run) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return errors.Wrap(err, "failed to encode run params")
	}

	query := `
		INSERT INTO regime_runs (
			id, symbol, timeframe, bars, first_bar, last_bar, params,
			slope_epsilon, atr_low_thr, atr_high_thr,
			bull_bars, bear_bars, sideways_bars, transitions, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)`

	_, err = r.db.ExecContext(ctx, query,
		run.ID, run.Symbol, run.Timeframe, run.Bars, run.FirstBar, run.LastBar, params,
		run.SlopeEpsilon, run.ATRLowThr, run.ATRHighThr,
		run.BullBars, run.BearBars, run.SidewaysBars, run.Transitions, run.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to store regime run")
	}

	return nil
}

// GetLatestRun returns the most recent run for an instrument
func (r *RunRepository) GetLatestRun(ctx context.Context, symbol, timeframe string) (*regime.Run, error) {
	var rec runRecord

	query := `
		SELECT
			id, symbol, timeframe, bars, first_bar, last_bar, params,
			slope_epsilon, atr_low_thr, atr_high_thr,
			bull_bars, bear_bars, sideways_bars, transitions, created_at
		FROM regime_runs
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY created_at DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, &rec, query, symbol, timeframe)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "regime run %s %s", symbol, timeframe)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest regime run")
	}

	if err := json.Unmarshal(rec.ParamsJSON, &rec.Run.Params); err != nil {
		return nil, errors.Wrap(err, "failed to decode run params")
	}

	run := rec.Run
	return &run, nil
}
