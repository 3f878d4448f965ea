package engine

import (
	"testing"

	"sentinel/internal/domain"
	"sentinel/internal/rules"
)

func TestMatchEventEmptyMatchIsVacuous(t *testing.T) {
	t.Parallel()

	rule := rules.Definition{ID: "catch-all", Enabled: true}
	event := domain.Event{Type: "anything", Severity: domain.SeverityCritical}
	if !MatchEvent(rule, event) {
		t.Fatalf("expected empty match to accept every event")
	}
}

func TestMatchEventProcessNameSubstring(t *testing.T) {
	t.Parallel()

	rule := rules.Definition{ID: "ssh", Match: rules.Match{ProcessName: "ssh"}}

	matching := domain.Event{Type: "probe", Details: domain.Details{"processName": "sshd-session"}}
	if !MatchEvent(rule, matching) {
		t.Fatalf("expected substring match for sshd-session")
	}

	other := domain.Event{Type: "probe", Details: domain.Details{"processName": "ftpd"}}
	if MatchEvent(rule, other) {
		t.Fatalf("expected mismatch for ftpd")
	}

	absent := domain.Event{Type: "probe"}
	if MatchEvent(rule, absent) {
		t.Fatalf("expected mismatch when processName detail is absent")
	}
}

func TestMatchEventConjunctivePredicates(t *testing.T) {
	t.Parallel()

	rule := rules.Definition{ID: "r", Match: rules.Match{
		EventType: "failed_login",
		Severity:  domain.SeverityHigh,
		IPAddress: "10.0.0.9",
	}}

	event := domain.Event{
		Type:     "failed_login",
		Severity: domain.SeverityHigh,
		Details:  domain.Details{"ipAddress": "10.0.0.9"},
	}
	if !MatchEvent(rule, event) {
		t.Fatalf("expected full conjunctive match")
	}

	event.Severity = domain.SeverityLow
	if MatchEvent(rule, event) {
		t.Fatalf("expected severity mismatch to reject")
	}

	event.Severity = domain.SeverityHigh
	event.Details["ipAddress"] = "10.0.0.10"
	if MatchEvent(rule, event) {
		t.Fatalf("expected ip mismatch to reject")
	}
}

func TestMatchEventIPAddressIsExact(t *testing.T) {
	t.Parallel()

	rule := rules.Definition{ID: "r", Match: rules.Match{IPAddress: "10.0.0"}}
	event := domain.Event{Type: "probe", Details: domain.Details{"ipAddress": "10.0.0.1"}}
	if MatchEvent(rule, event) {
		t.Fatalf("ip predicate must not match substrings")
	}
}
