package templatefmt

import (
	"testing"

	"sentinel/internal/domain"
	"sentinel/internal/rules"
)

func TestMessageSetDefaults(t *testing.T) {
	t.Parallel()

	messages, err := NewMessageSet("", "", "")
	if err != nil {
		t.Fatalf("compile defaults: %v", err)
	}

	rule := rules.Definition{ID: "r1", Description: "ssh brute force", Severity: domain.SeverityHigh}
	fired, err := messages.RuleFired(rule)
	if err != nil {
		t.Fatalf("render rule message: %v", err)
	}
	if fired != "[high] ssh brute force" {
		t.Fatalf("unexpected rule message %q", fired)
	}

	escalation, err := messages.Escalation(rule, errTest("agent timeout"))
	if err != nil {
		t.Fatalf("render escalation: %v", err)
	}
	if escalation != "[high] ssh brute force failed: agent timeout" {
		t.Fatalf("unexpected escalation %q", escalation)
	}

	anomaly, err := messages.Anomaly(domain.AnomalyRecord{Metric: "cpu", Score: 0.92})
	if err != nil {
		t.Fatalf("render anomaly: %v", err)
	}
	if anomaly != "[high] Anomaly cpu score 0.92" {
		t.Fatalf("unexpected anomaly page %q", anomaly)
	}
}

func TestMessageSetOverrides(t *testing.T) {
	t.Parallel()

	messages, err := NewMessageSet("{{upper .RuleID}}: {{.Description}}", "", "")
	if err != nil {
		t.Fatalf("compile override: %v", err)
	}
	fired, err := messages.RuleFired(rules.Definition{ID: "r1", Description: "probe"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if fired != "R1: probe" {
		t.Fatalf("unexpected message %q", fired)
	}
}

func TestNewMessageSetRejectsBrokenTemplate(t *testing.T) {
	t.Parallel()

	if _, err := NewMessageSet("{{.Broken", "", ""); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestAnomalyScoreFormatting(t *testing.T) {
	t.Parallel()

	messages, err := NewMessageSet("", "", "")
	if err != nil {
		t.Fatalf("compile defaults: %v", err)
	}
	page, err := messages.Anomaly(domain.AnomalyRecord{Metric: "mem", Score: 1})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if page != "[high] Anomaly mem score 1" {
		t.Fatalf("unexpected page %q", page)
	}
}

type errTest string

func (e errTest) Error() string {
	return string(e)
}
