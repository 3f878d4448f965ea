package rules

import (
	"strings"

	"sentinel/internal/domain"
)

// ActionKind discriminates the response step attached to a rule.
// Params: constants agent/log/telegram.
// Returns: tagged action variant selector.
type ActionKind string

const (
	// ActionKindAgent invokes the remote remediation agent.
	ActionKindAgent ActionKind = "agent"
	// ActionKindLog appends an audit entry without external calls.
	ActionKindLog ActionKind = "log"
	// ActionKindTelegram sends an immediate notification message.
	ActionKindTelegram ActionKind = "telegram"
)

// Action is one declarative response step in a rule's action list.
// Params: kind tag, remediation name, and opaque payload mapping.
// Returns: action consumed once per evaluation pass.
type Action struct {
	Kind    ActionKind     `yaml:"type" json:"type"`
	Name    string         `yaml:"name" json:"name"`
	Payload map[string]any `yaml:"payload" json:"payload,omitempty"`
}

// Match holds conjunctive field predicates for one rule.
// Params: optional event type, severity, process name, and IP address selectors.
// Returns: absent fields impose no constraint.
type Match struct {
	EventType   string          `yaml:"eventType" json:"eventType,omitempty"`
	Severity    domain.Severity `yaml:"severity" json:"severity,omitempty"`
	ProcessName string          `yaml:"processName" json:"processName,omitempty"`
	IPAddress   string          `yaml:"ipAddress" json:"ipAddress,omitempty"`
}

// Threshold gates rule firing on recent event repetition.
// Params: counted event type, required count, and trailing window width.
// Returns: burst detection parameters.
type Threshold struct {
	EventType string `yaml:"eventType" json:"eventType"`
	Count     int    `yaml:"count" json:"count"`
	WindowSec int    `yaml:"windowSec" json:"windowSec"`
}

// Definition is one operator-authored rule.
// Params: identity, enablement, severity, match predicates, optional threshold, and action list.
// Returns: immutable rule once admitted to a catalog snapshot.
type Definition struct {
	ID          string          `yaml:"id" json:"id"`
	Description string          `yaml:"description" json:"description"`
	Enabled     bool            `yaml:"enabled" json:"enabled"`
	Severity    domain.Severity `yaml:"severity" json:"severity"`
	Match       Match           `yaml:"match" json:"match"`
	Threshold   *Threshold      `yaml:"threshold" json:"threshold,omitempty"`
	Actions     []Action        `yaml:"actions" json:"actions"`
}

// Valid reports whether a parsed rule may enter a snapshot.
// Params: none.
// Returns: false for rules lacking an id.
func (d Definition) Valid() bool {
	return strings.TrimSpace(d.ID) != ""
}

// Escalates reports whether failed agent actions for this rule page a human.
// Params: none.
// Returns: true for high and critical severity rules.
func (d Definition) Escalates() bool {
	return d.Severity == domain.SeverityHigh || d.Severity == domain.SeverityCritical
}
