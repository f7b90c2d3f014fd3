package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rangevault/internal/model"
)

// Store provides Postgres persistence for the report journal and the
// durable strategy state.
type Store struct {
	pool *pgxpool.Pool
	name string
}

func NewStore(ctx context.Context, dsn, strategyName string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if strategyName == "" {
		return nil, fmt.Errorf("strategy name is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, name: strategyName}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutReports appends report-cycle records.
func (s *Store) PutReports(ctx context.Context, reports []model.ReportRecord) error {
	if len(reports) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range reports {
		batch.Queue(`
			INSERT INTO reports (
				strategy, chain_id, pool_address, action, report_ts,
				lower_tick, upper_tick, liquidity, amount0, amount1, total_assets, recorded_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
			ON CONFLICT (strategy, report_ts, action) DO NOTHING
		`,
			s.name,
			int64(r.ChainID),
			r.Pool,
			r.Action,
			int64(r.Timestamp),
			r.Range.LowerTick,
			r.Range.UpperTick,
			r.Liquidity,
			r.Amount0,
			r.Amount1,
			r.TotalAssets,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range reports {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the persisted strategy state.
func (s *Store) Load(ctx context.Context) (model.StrategyState, bool, error) {
	var state model.StrategyState
	row := s.pool.QueryRow(ctx, `
		SELECT lower_tick, upper_tick, epoch_started_at
		FROM strategy_state WHERE strategy=$1
	`, s.name)
	var startedAt int64
	if err := row.Scan(&state.Range.LowerTick, &state.Range.UpperTick, &startedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.StrategyState{}, false, nil
		}
		return model.StrategyState{}, false, err
	}
	state.EpochStartedAt = uint64(startedAt)
	return state, true, nil
}

// Save upserts the strategy state.
func (s *Store) Save(ctx context.Context, state model.StrategyState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO strategy_state (strategy, lower_tick, upper_tick, epoch_started_at, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (strategy) DO UPDATE
		SET lower_tick = EXCLUDED.lower_tick,
			upper_tick = EXCLUDED.upper_tick,
			epoch_started_at = EXCLUDED.epoch_started_at,
			updated_at = now()
	`, s.name, state.Range.LowerTick, state.Range.UpperTick, int64(state.EpochStartedAt))
	return err
}
