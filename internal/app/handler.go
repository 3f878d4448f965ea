package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sentinel/internal/clock"
	"sentinel/internal/dispatch"
	"sentinel/internal/domain"
	"sentinel/internal/engine"
	"sentinel/internal/rules"
	"sentinel/internal/store"
	"sentinel/internal/templatefmt"
)

// Handler orchestrates persist, evaluate, and dispatch for incoming records.
// Params: rule catalog, evaluator, dispatcher, record store, and paging gate.
// Returns: engine facade invoked by the ingestion boundary.
type Handler struct {
	catalog        *rules.Catalog
	evaluator      *engine.Evaluator
	dispatcher     *dispatch.Dispatcher
	records        store.Store
	notifier       dispatch.Notifier
	messages       *templatefmt.MessageSet
	scoreThreshold float64
	clock          clock.Clock
	logger         *slog.Logger
}

// NewHandler creates the engine facade.
// Params: catalog, evaluator, dispatcher, store, notifier, messages, anomaly threshold, clock, and optional logger.
// Returns: initialized handler safe for concurrent invocations.
func NewHandler(
	catalog *rules.Catalog,
	evaluator *engine.Evaluator,
	dispatcher *dispatch.Dispatcher,
	records store.Store,
	notifier dispatch.Notifier,
	messages *templatefmt.MessageSet,
	scoreThreshold float64,
	clk clock.Clock,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		catalog:        catalog,
		evaluator:      evaluator,
		dispatcher:     dispatcher,
		records:        records,
		notifier:       notifier,
		messages:       messages,
		scoreThreshold: scoreThreshold,
		clock:          clk,
		logger:         logger,
	}
}

// HandleEvent persists one event, evaluates rules, and dispatches actions.
// Params: context and incoming event.
// Returns: normalized event, matched rules in catalog order, and persist error.
// Matches are returned even when persistence or some actions failed.
func (h *Handler) HandleEvent(ctx context.Context, event domain.Event) (domain.Event, []rules.Definition, error) {
	event = event.Normalize(h.clock.Now())

	var persistErr error
	if err := h.records.AppendEvent(ctx, event); err != nil {
		persistErr = fmt.Errorf("persist event %q: %w", event.ID, err)
		if h.logger != nil {
			h.logger.Error("event persist failed", "event_id", event.ID, "error", err.Error())
		}
	}

	matched := h.evaluator.Evaluate(ctx, event, h.catalog.List())
	if len(matched) > 0 {
		h.dispatcher.Dispatch(ctx, matched, event)
	}
	return event, matched, persistErr
}

// Simulate evaluates one event without persistence or dispatch.
// Params: context and candidate event.
// Returns: matched rules; provably side-effect free for dry-run rule testing.
func (h *Handler) Simulate(ctx context.Context, event domain.Event) []rules.Definition {
	event = event.Normalize(h.clock.Now())
	return h.evaluator.Evaluate(ctx, event, h.catalog.List())
}

// HandleAnomaly persists one scored anomaly and pages above the threshold.
// Params: context and anomaly record.
// Returns: normalized anomaly and persist error.
func (h *Handler) HandleAnomaly(ctx context.Context, anomaly domain.AnomalyRecord) (domain.AnomalyRecord, error) {
	anomaly = anomaly.Normalize(h.clock.Now())

	var persistErr error
	if err := h.records.AppendAnomaly(ctx, anomaly); err != nil {
		persistErr = fmt.Errorf("persist anomaly %q: %w", anomaly.ID, err)
		if h.logger != nil {
			h.logger.Error("anomaly persist failed", "anomaly_id", anomaly.ID, "error", err.Error())
		}
	}

	if anomaly.Status == domain.AnomalyStatusAnomaly && anomaly.Score >= h.scoreThreshold {
		h.pageAnomaly(ctx, anomaly)
	}
	return anomaly, persistErr
}

// HandleMetric persists one metric sample.
// Params: context and metric sample.
// Returns: normalized sample and persist error.
func (h *Handler) HandleMetric(ctx context.Context, sample domain.MetricSample) (domain.MetricSample, error) {
	sample = sample.Normalize(h.clock.Now())
	if err := h.records.AppendMetric(ctx, sample); err != nil {
		return sample, fmt.Errorf("persist metric %q: %w", sample.ID, err)
	}
	return sample, nil
}

// Rules returns the current catalog snapshot.
// Params: none.
// Returns: active rules in catalog order.
func (h *Handler) Rules() []rules.Definition {
	return h.catalog.List()
}

// ReloadRules re-reads the rule source into a fresh snapshot.
// Params: context for source reads.
// Returns: rules.LoadError on total source failure.
func (h *Handler) ReloadRules(ctx context.Context) error {
	return h.catalog.Reload(ctx)
}

// Actions lists recent action records.
// Params: context and result limit.
// Returns: audit trail slice or store error.
func (h *Handler) Actions(ctx context.Context, limit int) ([]domain.ActionRecord, error) {
	return h.records.ListActions(ctx, limit)
}

// Anomalies lists recent anomaly records.
// Params: context and result limit.
// Returns: anomaly slice or store error.
func (h *Handler) Anomalies(ctx context.Context, limit int) ([]domain.AnomalyRecord, error) {
	return h.records.ListAnomalies(ctx, limit)
}

// Metrics lists recent metric samples.
// Params: context and result limit.
// Returns: sample slice or store error.
func (h *Handler) Metrics(ctx context.Context, limit int) ([]domain.MetricSample, error) {
	return h.records.ListMetrics(ctx, limit)
}

// PerformAction runs one operator-requested remediation and audits it.
// Params: context, remediation name, and opaque payload.
// Returns: audit record carrying the call outcome.
func (h *Handler) PerformAction(ctx context.Context, name string, payload map[string]any) domain.ActionRecord {
	return h.dispatcher.Manual(ctx, name, payload)
}

// Events lists recent events.
// Params: context, optional type filter, time lower bound, and result limit.
// Returns: event slice or store error.
func (h *Handler) Events(ctx context.Context, eventType string, since time.Time, limit int) ([]domain.Event, error) {
	return h.records.ListEvents(ctx, eventType, since, limit)
}

// pageAnomaly sends the best-effort anomaly page.
// Params: context and out-of-range anomaly.
// Returns: none; notify failures are logged and swallowed.
func (h *Handler) pageAnomaly(ctx context.Context, anomaly domain.AnomalyRecord) {
	message, err := h.messages.Anomaly(anomaly)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("anomaly page render failed", "anomaly_id", anomaly.ID, "error", err.Error())
		}
		return
	}
	if err := h.notifier.Send(ctx, message); err != nil && h.logger != nil {
		h.logger.Warn("anomaly page send failed", "anomaly_id", anomaly.ID, "error", err.Error())
	}
}
