package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"sentinel/internal/clock"
	"sentinel/internal/domain"
	"sentinel/internal/rules"
)

// HistoryQuery counts stored events for threshold evaluation.
// Params: event type and inclusive time lower bound.
// Returns: matching event count or query error.
type HistoryQuery interface {
	CountEventsSince(ctx context.Context, eventType string, since time.Time) (int, error)
}

// Evaluator computes the ordered set of rules matching one event.
// Params: history port for threshold checks, clock, and logger.
// Returns: pure decision stage; side effects belong to the dispatcher.
type Evaluator struct {
	history HistoryQuery
	clock   clock.Clock
	logger  *slog.Logger
}

// NewEvaluator creates a rule evaluator.
// Params: history query port, clock, and optional logger.
// Returns: initialized evaluator.
func NewEvaluator(history HistoryQuery, clk clock.Clock, logger *slog.Logger) *Evaluator {
	return &Evaluator{history: history, clock: clk, logger: logger}
}

// Evaluate tests every enabled rule in the snapshot against one event.
// Params: context, incoming event, and catalog snapshot.
// Returns: matched rules in catalog order; no cross-rule short-circuit.
func (e *Evaluator) Evaluate(ctx context.Context, event domain.Event, snapshot []rules.Definition) []rules.Definition {
	matched := make([]rules.Definition, 0)
	for _, rule := range snapshot {
		if !rule.Enabled {
			continue
		}
		if !MatchEvent(rule, event) {
			continue
		}
		if rule.Threshold != nil && !e.thresholdSatisfied(ctx, rule) {
			continue
		}
		matched = append(matched, rule)
	}
	return matched
}

// thresholdSatisfied applies the trailing-window repetition gate for one rule.
// Params: context and rule carrying a threshold clause.
// Returns: true when recent history reaches the required count; fail-closed otherwise.
func (e *Evaluator) thresholdSatisfied(ctx context.Context, rule rules.Definition) bool {
	threshold := rule.Threshold
	if strings.TrimSpace(threshold.EventType) == "" || threshold.Count <= 0 || threshold.WindowSec <= 0 {
		// Malformed threshold clause must not fire or crash sibling rules.
		if e.logger != nil {
			e.logger.Warn("malformed threshold treated as never-matching", "rule", rule.ID)
		}
		return false
	}

	// Window is anchored at evaluation time, not at the triggering event.
	since := e.clock.Now().Add(-time.Duration(threshold.WindowSec) * time.Second)
	count, err := e.history.CountEventsSince(ctx, threshold.EventType, since)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("threshold history query failed", "rule", rule.ID, "error", err.Error())
		}
		return false
	}
	return count >= threshold.Count
}
