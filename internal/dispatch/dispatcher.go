package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"sentinel/internal/clock"
	"sentinel/internal/domain"
	"sentinel/internal/rules"
	"sentinel/internal/templatefmt"

	"github.com/google/uuid"
)

// Remediator performs one remote remediation call.
// Params: remediation name and opaque payload forwarded verbatim.
// Returns: nil on success; bounded-time failure otherwise.
type Remediator interface {
	Perform(ctx context.Context, name string, payload map[string]any) error
}

// Notifier delivers one best-effort notification message.
// Params: context and rendered message body.
// Returns: transport error; callers swallow it.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// ActionLog appends one action record to the audit trail.
// Params: context and record.
// Returns: append error.
type ActionLog interface {
	AppendAction(ctx context.Context, record domain.ActionRecord) error
}

// Dispatcher executes matched rules' action lists with independent outcomes.
// Params: remediation, notification, and audit ports plus clock.
// Returns: at-least-one-attempt, best-effort, no-rollback action execution.
type Dispatcher struct {
	remediator Remediator
	notifier   Notifier
	actions    ActionLog
	messages   *templatefmt.MessageSet
	clock      clock.Clock
	logger     *slog.Logger
}

// NewDispatcher creates an action dispatcher.
// Params: remediator, notifier, audit log, compiled messages, clock, and optional logger.
// Returns: initialized dispatcher.
func NewDispatcher(
	remediator Remediator,
	notifier Notifier,
	actions ActionLog,
	messages *templatefmt.MessageSet,
	clk clock.Clock,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		remediator: remediator,
		notifier:   notifier,
		actions:    actions,
		messages:   messages,
		clock:      clk,
		logger:     logger,
	}
}

// Dispatch runs every action of every matched rule in declared order.
// Params: context, matched rules in catalog order, and the triggering event.
// Returns: action records in deterministic per-rule, per-action order.
func (d *Dispatcher) Dispatch(ctx context.Context, matched []rules.Definition, event domain.Event) []domain.ActionRecord {
	records := make([]domain.ActionRecord, 0)
	for _, rule := range matched {
		for _, action := range rule.Actions {
			record, recorded := d.runAction(ctx, rule, action, event)
			if !recorded {
				continue
			}
			records = append(records, record)
			if err := d.actions.AppendAction(ctx, record); err != nil && d.logger != nil {
				d.logger.Error("action record append failed", "rule", rule.ID, "action", action.Name, "error", err.Error())
			}
		}
	}
	return records
}

// Manual performs one operator-requested remediation outside any rule.
// Params: context, remediation name, and opaque payload.
// Returns: audit record with the call outcome; append failures are logged.
func (d *Dispatcher) Manual(ctx context.Context, name string, payload map[string]any) domain.ActionRecord {
	details := domain.Details{"trigger": "manual"}
	status := domain.ActionStatusSuccess
	if err := d.remediator.Perform(ctx, name, payload); err != nil {
		status = domain.ActionStatusFailed
		details["error"] = err.Error()
		if d.logger != nil {
			d.logger.Warn("manual action failed", "action", name, "error", err.Error())
		}
	}
	record := domain.ActionRecord{
		ID:         uuid.NewString(),
		ActionType: name,
		Status:     status,
		Target:     payloadTarget(rules.Action{Payload: payload}),
		Details:    details,
		Timestamp:  d.clock.Now(),
	}
	if err := d.actions.AppendAction(ctx, record); err != nil && d.logger != nil {
		d.logger.Error("action record append failed", "action", name, "error", err.Error())
	}
	return record
}

// runAction executes one action and builds its audit record.
// Params: context, firing rule, action, and triggering event.
// Returns: record and whether the action kind produces one.
func (d *Dispatcher) runAction(ctx context.Context, rule rules.Definition, action rules.Action, event domain.Event) (domain.ActionRecord, bool) {
	switch action.Kind {
	case rules.ActionKindLog:
		return d.newRecord(rule, action, event, domain.ActionStatusSuccess, nil), true
	case rules.ActionKindAgent:
		err := d.remediator.Perform(ctx, action.Name, action.Payload)
		if err == nil {
			return d.newRecord(rule, action, event, domain.ActionStatusSuccess, nil), true
		}
		if d.logger != nil {
			d.logger.Warn("agent action failed", "rule", rule.ID, "action", action.Name, "error", err.Error())
		}
		if rule.Escalates() {
			d.escalate(ctx, rule, err)
		}
		return d.newRecord(rule, action, event, domain.ActionStatusFailed, err), true
	case rules.ActionKindTelegram:
		d.notifyRule(ctx, rule)
		return domain.ActionRecord{}, false
	default:
		// Unknown kinds are audited as failures instead of silently skipped.
		err := fmt.Errorf("unsupported action kind %q", action.Kind)
		if d.logger != nil {
			d.logger.Warn("unsupported action kind", "rule", rule.ID, "kind", string(action.Kind))
		}
		return d.newRecord(rule, action, event, domain.ActionStatusFailed, err), true
	}
}

// newRecord builds one action record with outcome details.
// Params: firing rule, action, triggering event, status, and optional failure.
// Returns: populated record with current timestamp.
func (d *Dispatcher) newRecord(rule rules.Definition, action rules.Action, event domain.Event, status domain.ActionStatus, failure error) domain.ActionRecord {
	details := domain.Details{
		"ruleId":  rule.ID,
		"eventId": event.ID,
	}
	if failure != nil {
		details["error"] = failure.Error()
	}
	return domain.ActionRecord{
		ID:         uuid.NewString(),
		ActionType: action.Name,
		Status:     status,
		Target:     payloadTarget(action),
		Details:    details,
		Timestamp:  d.clock.Now(),
	}
}

// notifyRule sends the fire-and-forget notification for one matched rule.
// Params: context and firing rule.
// Returns: none; delivery failures are logged and swallowed.
func (d *Dispatcher) notifyRule(ctx context.Context, rule rules.Definition) {
	message, err := d.messages.RuleFired(rule)
	if err != nil {
		if d.logger != nil {
			d.logger.Error("rule notification render failed", "rule", rule.ID, "error", err.Error())
		}
		return
	}
	if err := d.notifier.Send(ctx, message); err != nil && d.logger != nil {
		d.logger.Warn("rule notification send failed", "rule", rule.ID, "error", err.Error())
	}
}

// escalate pages a human about one failed high/critical action.
// Params: context, firing rule, and action failure.
// Returns: none; notify failures are not escalated further.
func (d *Dispatcher) escalate(ctx context.Context, rule rules.Definition, failure error) {
	message, err := d.messages.Escalation(rule, failure)
	if err != nil {
		if d.logger != nil {
			d.logger.Error("escalation render failed", "rule", rule.ID, "error", err.Error())
		}
		return
	}
	if err := d.notifier.Send(ctx, message); err != nil && d.logger != nil {
		d.logger.Warn("escalation send failed", "rule", rule.ID, "error", err.Error())
	}
}

// payloadTarget extracts the audit target from one action payload.
// Params: action with opaque payload.
// Returns: "service" payload field or empty string.
func payloadTarget(action rules.Action) string {
	if action.Payload == nil {
		return ""
	}
	if value, ok := action.Payload["service"].(string); ok {
		return value
	}
	return ""
}
