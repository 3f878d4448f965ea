package store

import (
	"context"
	"sync"
	"time"

	"sentinel/internal/domain"
)

const defaultMemoryCapacity = 10000

// MemoryStore keeps records in bounded in-process buffers.
// Params: per-kind record slices guarded by one RWMutex.
// Returns: store implementation without external dependencies.
type MemoryStore struct {
	mu        sync.RWMutex
	capacity  int
	events    []domain.Event
	actions   []domain.ActionRecord
	anomalies []domain.AnomalyRecord
	metrics   []domain.MetricSample
}

// NewMemoryStore creates an in-memory record store.
// Params: per-kind capacity (defaults to 10000 when <= 0).
// Returns: initialized in-memory store.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity}
}

// AppendEvent appends one event, evicting the oldest at capacity.
// Params: context (unused) and event.
// Returns: nil.
func (s *MemoryStore) AppendEvent(_ context.Context, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = appendBounded(s.events, event, s.capacity)
	return nil
}

// AppendAction appends one action record.
// Params: context (unused) and record.
// Returns: nil.
func (s *MemoryStore) AppendAction(_ context.Context, record domain.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = appendBounded(s.actions, record, s.capacity)
	return nil
}

// AppendAnomaly appends one anomaly record.
// Params: context (unused) and anomaly.
// Returns: nil.
func (s *MemoryStore) AppendAnomaly(_ context.Context, anomaly domain.AnomalyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anomalies = appendBounded(s.anomalies, anomaly, s.capacity)
	return nil
}

// AppendMetric appends one metric sample.
// Params: context (unused) and sample.
// Returns: nil.
func (s *MemoryStore) AppendMetric(_ context.Context, sample domain.MetricSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = appendBounded(s.metrics, sample, s.capacity)
	return nil
}

// CountEventsSince counts stored events of one type at/after the bound.
// Params: event type and inclusive time lower bound.
// Returns: matching event count.
func (s *MemoryStore) CountEventsSince(_ context.Context, eventType string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, event := range s.events {
		if event.Type != eventType {
			continue
		}
		if event.Timestamp.Before(since) {
			continue
		}
		count++
	}
	return count, nil
}

// ListEvents returns stored events by type and time bound, newest first.
// Params: optional event type filter, time lower bound, and result limit (0 disables).
// Returns: matching events ordered by recency.
func (s *MemoryStore) ListEvents(_ context.Context, eventType string, since time.Time, limit int) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Event, 0)
	for i := len(s.events) - 1; i >= 0; i-- {
		event := s.events[i]
		if eventType != "" && event.Type != eventType {
			continue
		}
		if !since.IsZero() && event.Timestamp.Before(since) {
			continue
		}
		out = append(out, event)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ListActions returns stored action records, newest first.
// Params: result limit (0 disables).
// Returns: audit trail slice.
func (s *MemoryStore) ListActions(_ context.Context, limit int) ([]domain.ActionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ActionRecord, 0)
	for i := len(s.actions) - 1; i >= 0; i-- {
		out = append(out, s.actions[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ListAnomalies returns stored anomaly records, newest first.
// Params: result limit (0 disables).
// Returns: anomaly slice.
func (s *MemoryStore) ListAnomalies(_ context.Context, limit int) ([]domain.AnomalyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AnomalyRecord, 0)
	for i := len(s.anomalies) - 1; i >= 0; i-- {
		out = append(out, s.anomalies[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ListMetrics returns stored metric samples, newest first.
// Params: result limit (0 disables).
// Returns: sample slice.
func (s *MemoryStore) ListMetrics(_ context.Context, limit int) ([]domain.MetricSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.MetricSample, 0)
	for i := len(s.metrics) - 1; i >= 0; i-- {
		out = append(out, s.metrics[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Close releases memory store resources.
// Params: none.
// Returns: nil.
func (s *MemoryStore) Close() error {
	return nil
}

// appendBounded appends one value and evicts from the front at capacity.
// Params: buffer, value, and maximum length.
// Returns: updated buffer.
func appendBounded[T any](buffer []T, value T, capacity int) []T {
	buffer = append(buffer, value)
	if len(buffer) > capacity {
		buffer = buffer[len(buffer)-capacity:]
	}
	return buffer
}
