package templatefmt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"sentinel/internal/domain"
	"sentinel/internal/rules"
)

const (
	// DefaultRuleMessage renders a matched-rule notification.
	DefaultRuleMessage = "[{{.Severity}}] {{.Description}}"
	// DefaultEscalationMessage renders a failed-action escalation.
	DefaultEscalationMessage = "[{{.Severity}}] {{.Description}} failed: {{.Error}}"
	// DefaultAnomalyMessage renders an anomaly page.
	DefaultAnomalyMessage = "[high] Anomaly {{.Metric}} score {{.Score}}"
)

// MessageContext carries the fields exposed to message templates.
// Params: rule identity, failure text, and anomaly fields.
// Returns: render model for notification bodies.
type MessageContext struct {
	RuleID      string
	Description string
	Severity    domain.Severity
	Error       string
	Metric      string
	Score       string
}

// FuncMap returns shared message template helpers.
// Params: none.
// Returns: deterministic helper map used by config validation and runtime rendering.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"json":  MarshalJSON,
		"upper": strings.ToUpper,
	}
}

// ParseMessageTemplate parses one notification template with shared helpers.
// Params: template name and body.
// Returns: compiled template or parse error.
func ParseMessageTemplate(name, body string) (*template.Template, error) {
	return template.New(name).Funcs(FuncMap()).Option("missingkey=error").Parse(body)
}

// MarshalJSON renders value into JSON string for template embedding.
// Params: template value of any type.
// Returns: marshaled JSON string or "null" on marshal failure.
func MarshalJSON(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return "null"
	}
	return string(encoded)
}

// MessageSet holds compiled notification templates.
// Params: rule-fired, escalation, and anomaly template bodies.
// Returns: render helper for notifier callers.
type MessageSet struct {
	rule       *template.Template
	escalation *template.Template
	anomaly    *template.Template
}

// NewMessageSet compiles notification templates with defaults for empty bodies.
// Params: optional template overrides from config.
// Returns: compiled message set or parse error.
func NewMessageSet(ruleBody, escalationBody, anomalyBody string) (*MessageSet, error) {
	ruleTemplate, err := ParseMessageTemplate("notify.rule", orDefault(ruleBody, DefaultRuleMessage))
	if err != nil {
		return nil, fmt.Errorf("parse rule message template: %w", err)
	}
	escalationTemplate, err := ParseMessageTemplate("notify.escalation", orDefault(escalationBody, DefaultEscalationMessage))
	if err != nil {
		return nil, fmt.Errorf("parse escalation message template: %w", err)
	}
	anomalyTemplate, err := ParseMessageTemplate("notify.anomaly", orDefault(anomalyBody, DefaultAnomalyMessage))
	if err != nil {
		return nil, fmt.Errorf("parse anomaly message template: %w", err)
	}
	return &MessageSet{
		rule:       ruleTemplate,
		escalation: escalationTemplate,
		anomaly:    anomalyTemplate,
	}, nil
}

// RuleFired renders the message for one matched rule.
// Params: matched rule.
// Returns: rendered message body.
func (m *MessageSet) RuleFired(rule rules.Definition) (string, error) {
	return render(m.rule, MessageContext{
		RuleID:      rule.ID,
		Description: rule.Description,
		Severity:    rule.Severity,
	})
}

// Escalation renders the message for one failed high-severity action.
// Params: firing rule and action failure.
// Returns: rendered message body.
func (m *MessageSet) Escalation(rule rules.Definition, failure error) (string, error) {
	failureText := ""
	if failure != nil {
		failureText = failure.Error()
	}
	return render(m.escalation, MessageContext{
		RuleID:      rule.ID,
		Description: rule.Description,
		Severity:    rule.Severity,
		Error:       failureText,
	})
}

// Anomaly renders the page for one out-of-range anomaly.
// Params: scored anomaly record.
// Returns: rendered message body.
func (m *MessageSet) Anomaly(anomaly domain.AnomalyRecord) (string, error) {
	return render(m.anomaly, MessageContext{
		Metric: anomaly.Metric,
		Score:  strconv.FormatFloat(anomaly.Score, 'g', -1, 64),
	})
}

// render executes one compiled template over the message context.
// Params: compiled template and render model.
// Returns: rendered body or execution error.
func render(compiled *template.Template, messageContext MessageContext) (string, error) {
	var rendered strings.Builder
	if err := compiled.Execute(&rendered, messageContext); err != nil {
		return "", fmt.Errorf("render message template %q: %w", compiled.Name(), err)
	}
	return rendered.String(), nil
}

// orDefault substitutes the default body for empty overrides.
// Params: configured body and default body.
// Returns: effective template body.
func orDefault(body, fallback string) string {
	if strings.TrimSpace(body) == "" {
		return fallback
	}
	return body
}
