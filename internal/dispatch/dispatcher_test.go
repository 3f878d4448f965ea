package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"sentinel/internal/domain"
	"sentinel/internal/rules"
	"sentinel/internal/templatefmt"
)

type stubClock struct {
	now time.Time
}

func (c stubClock) Now() time.Time {
	return c.now
}

type stubRemediator struct {
	errs  map[string]error
	calls []string
}

func (r *stubRemediator) Perform(_ context.Context, name string, _ map[string]any) error {
	r.calls = append(r.calls, name)
	return r.errs[name]
}

type stubNotifier struct {
	messages []string
	err      error
}

func (n *stubNotifier) Send(_ context.Context, message string) error {
	n.messages = append(n.messages, message)
	return n.err
}

type stubActionLog struct {
	appended []domain.ActionRecord
	err      error
}

func (l *stubActionLog) AppendAction(_ context.Context, record domain.ActionRecord) error {
	l.appended = append(l.appended, record)
	return l.err
}

func newTestDispatcher(t *testing.T, remediator *stubRemediator, notifier *stubNotifier, actions *stubActionLog) *Dispatcher {
	t.Helper()
	messages, err := templatefmt.NewMessageSet("", "", "")
	if err != nil {
		t.Fatalf("compile messages: %v", err)
	}
	return NewDispatcher(remediator, notifier, actions, messages, stubClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}, nil)
}

func TestDispatchContinuesAfterAgentFailure(t *testing.T) {
	t.Parallel()

	remediator := &stubRemediator{errs: map[string]error{"lockdown": errors.New("agent unreachable")}}
	notifier := &stubNotifier{}
	actions := &stubActionLog{}
	dispatcher := newTestDispatcher(t, remediator, notifier, actions)

	rule := rules.Definition{
		ID:       "burst",
		Enabled:  true,
		Severity: domain.SeverityMedium,
		Actions: []rules.Action{
			{Kind: rules.ActionKindAgent, Name: "lockdown", Payload: map[string]any{"service": "sshd"}},
			{Kind: rules.ActionKindAgent, Name: "scan"},
		},
	}
	event := domain.Event{ID: "evt-1", Type: "failed_login"}

	records := dispatcher.Dispatch(context.Background(), []rules.Definition{rule}, event)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Status != domain.ActionStatusFailed || records[0].ActionType != "lockdown" {
		t.Fatalf("unexpected first record %+v", records[0])
	}
	if records[0].Target != "sshd" {
		t.Fatalf("unexpected target %q", records[0].Target)
	}
	if records[0].Details.String("error") == "" {
		t.Fatalf("failed record must carry the error detail")
	}
	if records[1].Status != domain.ActionStatusSuccess || records[1].ActionType != "scan" {
		t.Fatalf("unexpected second record %+v", records[1])
	}
	if len(remediator.calls) != 2 {
		t.Fatalf("expected both agent calls to be attempted, got %v", remediator.calls)
	}
	if len(actions.appended) != 2 {
		t.Fatalf("expected both records appended, got %d", len(actions.appended))
	}
	// Medium severity must not page anyone.
	if len(notifier.messages) != 0 {
		t.Fatalf("unexpected escalation for medium severity: %v", notifier.messages)
	}
}

func TestDispatchEscalatesHighSeverityAgentFailureOnce(t *testing.T) {
	t.Parallel()

	remediator := &stubRemediator{errs: map[string]error{"lockdown": errors.New("boom")}}
	notifier := &stubNotifier{}
	dispatcher := newTestDispatcher(t, remediator, notifier, &stubActionLog{})

	rule := rules.Definition{
		ID:          "crit",
		Description: "ssh brute force",
		Severity:    domain.SeverityHigh,
		Actions:     []rules.Action{{Kind: rules.ActionKindAgent, Name: "lockdown"}},
	}

	dispatcher.Dispatch(context.Background(), []rules.Definition{rule}, domain.Event{ID: "e"})
	if len(notifier.messages) != 1 {
		t.Fatalf("expected exactly one escalation, got %d", len(notifier.messages))
	}
	if want := "[high] ssh brute force failed: boom"; notifier.messages[0] != want {
		t.Fatalf("unexpected escalation %q, want %q", notifier.messages[0], want)
	}
}

func TestDispatchLogActionSucceedsWithoutSideEffects(t *testing.T) {
	t.Parallel()

	remediator := &stubRemediator{}
	notifier := &stubNotifier{}
	dispatcher := newTestDispatcher(t, remediator, notifier, &stubActionLog{})

	rule := rules.Definition{
		ID:      "audit-only",
		Actions: []rules.Action{{Kind: rules.ActionKindLog, Name: "record"}},
	}
	records := dispatcher.Dispatch(context.Background(), []rules.Definition{rule}, domain.Event{ID: "e"})
	if len(records) != 1 || records[0].Status != domain.ActionStatusSuccess {
		t.Fatalf("unexpected records %+v", records)
	}
	if len(remediator.calls) != 0 || len(notifier.messages) != 0 {
		t.Fatalf("log action must not reach remote ports")
	}
}

func TestDispatchTelegramActionSendsWithoutRecord(t *testing.T) {
	t.Parallel()

	notifier := &stubNotifier{}
	actions := &stubActionLog{}
	dispatcher := newTestDispatcher(t, &stubRemediator{}, notifier, actions)

	rule := rules.Definition{
		ID:          "notify",
		Description: "port scan detected",
		Severity:    domain.SeverityMedium,
		Actions:     []rules.Action{{Kind: rules.ActionKindTelegram, Name: "page"}},
	}
	records := dispatcher.Dispatch(context.Background(), []rules.Definition{rule}, domain.Event{ID: "e"})
	if len(records) != 0 || len(actions.appended) != 0 {
		t.Fatalf("telegram action must not produce audit records")
	}
	if len(notifier.messages) != 1 || notifier.messages[0] != "[medium] port scan detected" {
		t.Fatalf("unexpected notification %v", notifier.messages)
	}
}

func TestDispatchNotifierFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	notifier := &stubNotifier{err: errors.New("telegram down")}
	dispatcher := newTestDispatcher(t, &stubRemediator{}, notifier, &stubActionLog{})

	rule := rules.Definition{
		ID:      "notify",
		Actions: []rules.Action{{Kind: rules.ActionKindTelegram, Name: "page"}, {Kind: rules.ActionKindLog, Name: "record"}},
	}
	records := dispatcher.Dispatch(context.Background(), []rules.Definition{rule}, domain.Event{ID: "e"})
	if len(records) != 1 || records[0].Status != domain.ActionStatusSuccess {
		t.Fatalf("notify failure must not block later actions, got %+v", records)
	}
}

func TestDispatchUnknownKindRecordedAsFailed(t *testing.T) {
	t.Parallel()

	dispatcher := newTestDispatcher(t, &stubRemediator{}, &stubNotifier{}, &stubActionLog{})

	rule := rules.Definition{
		ID:      "odd",
		Actions: []rules.Action{{Kind: "webhook", Name: "post"}},
	}
	records := dispatcher.Dispatch(context.Background(), []rules.Definition{rule}, domain.Event{ID: "e"})
	if len(records) != 1 || records[0].Status != domain.ActionStatusFailed {
		t.Fatalf("unknown kind must be audited as failed, got %+v", records)
	}
	if records[0].Details.String("error") == "" {
		t.Fatalf("failed record must carry the error detail")
	}
}

func TestManualActionAuditsOutcome(t *testing.T) {
	t.Parallel()

	remediator := &stubRemediator{}
	actions := &stubActionLog{}
	dispatcher := newTestDispatcher(t, remediator, &stubNotifier{}, actions)

	record := dispatcher.Manual(context.Background(), "lockdown", map[string]any{"service": "sshd"})
	if record.Status != domain.ActionStatusSuccess || record.ActionType != "lockdown" {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.Target != "sshd" {
		t.Fatalf("unexpected target %q", record.Target)
	}
	if record.Details.String("trigger") != "manual" {
		t.Fatalf("record must be marked as manual, got %v", record.Details)
	}
	if len(actions.appended) != 1 {
		t.Fatalf("expected one appended record, got %d", len(actions.appended))
	}
	if len(remediator.calls) != 1 || remediator.calls[0] != "lockdown" {
		t.Fatalf("unexpected agent calls %v", remediator.calls)
	}
}

func TestManualActionFailureRecordedWithoutEscalation(t *testing.T) {
	t.Parallel()

	remediator := &stubRemediator{errs: map[string]error{"heal": errors.New("agent down")}}
	notifier := &stubNotifier{}
	dispatcher := newTestDispatcher(t, remediator, notifier, &stubActionLog{})

	record := dispatcher.Manual(context.Background(), "heal", nil)
	if record.Status != domain.ActionStatusFailed {
		t.Fatalf("expected failed record, got %+v", record)
	}
	if record.Details.String("error") == "" {
		t.Fatalf("failed record must carry the error detail")
	}
	if len(notifier.messages) != 0 {
		t.Fatalf("manual failures have no rule severity and must not page: %v", notifier.messages)
	}
}

func TestDispatchAppendFailureKeepsRecord(t *testing.T) {
	t.Parallel()

	actions := &stubActionLog{err: errors.New("journal down")}
	dispatcher := newTestDispatcher(t, &stubRemediator{}, &stubNotifier{}, actions)

	rule := rules.Definition{
		ID:      "audit-only",
		Actions: []rules.Action{{Kind: rules.ActionKindLog, Name: "record"}},
	}
	records := dispatcher.Dispatch(context.Background(), []rules.Definition{rule}, domain.Event{ID: "e"})
	if len(records) != 1 {
		t.Fatalf("append failure must not drop the returned record")
	}
}
