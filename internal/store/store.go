package store

import (
	"context"
	"time"

	"sentinel/internal/domain"
)

// Store provides append-only record persistence and history queries.
// Params: append operations per record kind plus threshold history counting.
// Returns: backend persistence behavior; callers never mutate stored records.
type Store interface {
	AppendEvent(ctx context.Context, event domain.Event) error
	AppendAction(ctx context.Context, record domain.ActionRecord) error
	AppendAnomaly(ctx context.Context, anomaly domain.AnomalyRecord) error
	AppendMetric(ctx context.Context, sample domain.MetricSample) error
	CountEventsSince(ctx context.Context, eventType string, since time.Time) (int, error)
	ListEvents(ctx context.Context, eventType string, since time.Time, limit int) ([]domain.Event, error)
	ListActions(ctx context.Context, limit int) ([]domain.ActionRecord, error)
	ListAnomalies(ctx context.Context, limit int) ([]domain.AnomalyRecord, error)
	ListMetrics(ctx context.Context, limit int) ([]domain.MetricSample, error)
	Close() error
}
