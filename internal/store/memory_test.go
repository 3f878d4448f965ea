package store

import (
	"context"
	"strconv"
	"testing"
	"time"

	"sentinel/internal/domain"
)

func TestMemoryStoreEvictsOldestAtCapacity(t *testing.T) {
	t.Parallel()

	memory := NewMemoryStore(3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		event := domain.Event{ID: "e" + strconv.Itoa(i), Type: "probe", Timestamp: time.Now()}
		if err := memory.AppendEvent(ctx, event); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	events, err := memory.ListEvents(ctx, "", time.Time{}, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 retained events, got %d", len(events))
	}
	if events[0].ID != "e4" || events[2].ID != "e2" {
		t.Fatalf("unexpected retention order %v", events)
	}
}

func TestMemoryStoreCountEventsSince(t *testing.T) {
	t.Parallel()

	memory := NewMemoryStore(0)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	stamps := []time.Time{base.Add(-90 * time.Second), base.Add(-30 * time.Second), base.Add(-10 * time.Second)}
	for i, stamp := range stamps {
		event := domain.Event{ID: "e" + strconv.Itoa(i), Type: "failed_login", Timestamp: stamp}
		if err := memory.AppendEvent(ctx, event); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := memory.AppendEvent(ctx, domain.Event{ID: "other", Type: "port_scan", Timestamp: base}); err != nil {
		t.Fatalf("append: %v", err)
	}

	count, err := memory.CountEventsSince(ctx, "failed_login", base.Add(-60*time.Second))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 events inside window, got %d", count)
	}
}

func TestMemoryStoreCountIncludesWindowBoundary(t *testing.T) {
	t.Parallel()

	memory := NewMemoryStore(0)
	ctx := context.Background()
	bound := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := memory.AppendEvent(ctx, domain.Event{ID: "edge", Type: "probe", Timestamp: bound}); err != nil {
		t.Fatalf("append: %v", err)
	}
	count, err := memory.CountEventsSince(ctx, "probe", bound)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("boundary timestamp must be counted, got %d", count)
	}
}

func TestMemoryStoreListEventsFiltersAndLimits(t *testing.T) {
	t.Parallel()

	memory := NewMemoryStore(0)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		event := domain.Event{ID: "e" + strconv.Itoa(i), Type: "probe", Timestamp: base.Add(time.Duration(i) * time.Second)}
		if err := memory.AppendEvent(ctx, event); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	events, err := memory.ListEvents(ctx, "probe", time.Time{}, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 || events[0].ID != "e3" || events[1].ID != "e2" {
		t.Fatalf("expected newest-first limited list, got %v", events)
	}

	none, err := memory.ListEvents(ctx, "other", time.Time{}, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected empty list for unmatched type")
	}
}

func TestMemoryStoreListAnomaliesAndMetricsNewestFirst(t *testing.T) {
	t.Parallel()

	memory := NewMemoryStore(0)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		anomaly := domain.AnomalyRecord{ID: "an" + strconv.Itoa(i), Status: domain.AnomalyStatusNormal, Timestamp: time.Now()}
		if err := memory.AppendAnomaly(ctx, anomaly); err != nil {
			t.Fatalf("append anomaly: %v", err)
		}
		sample := domain.MetricSample{ID: "m" + strconv.Itoa(i), Timestamp: time.Now()}
		if err := memory.AppendMetric(ctx, sample); err != nil {
			t.Fatalf("append metric: %v", err)
		}
	}

	anomalies, err := memory.ListAnomalies(ctx, 2)
	if err != nil {
		t.Fatalf("list anomalies: %v", err)
	}
	if len(anomalies) != 2 || anomalies[0].ID != "an2" || anomalies[1].ID != "an1" {
		t.Fatalf("expected newest-first anomalies, got %v", anomalies)
	}

	metrics, err := memory.ListMetrics(ctx, 0)
	if err != nil {
		t.Fatalf("list metrics: %v", err)
	}
	if len(metrics) != 3 || metrics[0].ID != "m2" {
		t.Fatalf("expected newest-first metrics, got %v", metrics)
	}
}

func TestMemoryStoreListActionsNewestFirst(t *testing.T) {
	t.Parallel()

	memory := NewMemoryStore(0)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		record := domain.ActionRecord{ID: "a" + strconv.Itoa(i), Status: domain.ActionStatusSuccess, Timestamp: time.Now()}
		if err := memory.AppendAction(ctx, record); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	actions, err := memory.ListActions(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(actions) != 2 || actions[0].ID != "a2" || actions[1].ID != "a1" {
		t.Fatalf("expected newest-first actions, got %v", actions)
	}
}
