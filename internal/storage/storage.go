package storage

import (
	"context"

	"rangevault/internal/model"
)

// Storage defines a sink for report-cycle records.
type Storage interface {
	PutReports(ctx context.Context, reports []model.ReportRecord) error
}

// StateStore persists the durable strategy state across restarts.
type StateStore interface {
	Load(ctx context.Context) (model.StrategyState, bool, error)
	Save(ctx context.Context, state model.StrategyState) error
}
