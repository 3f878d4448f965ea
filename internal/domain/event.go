package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity grades event and rule importance.
// Params: constants low/medium/high/critical.
// Returns: normalized severity usage across pipeline.
type Severity string

const (
	// SeverityLow marks informational events.
	SeverityLow Severity = "low"
	// SeverityMedium marks events worth reviewing.
	SeverityMedium Severity = "medium"
	// SeverityHigh marks events requiring prompt response.
	SeverityHigh Severity = "high"
	// SeverityCritical marks events requiring immediate response.
	SeverityCritical Severity = "critical"
)

// Validate checks severity against supported constants.
// Params: none.
// Returns: validation error for unknown severity.
func (s Severity) Validate() error {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return nil
	default:
		return fmt.Errorf("unsupported severity %q", s)
	}
}

// Details stores free-form event context keyed by field name.
// Params: arbitrary JSON object from the reporting host.
// Returns: lookup helpers with non-throwing defaults.
type Details map[string]any

// String reads one detail field as string.
// Params: detail key.
// Returns: stringified scalar value; empty string for absent keys and
// composite values.
func (d Details) String(key string) string {
	if d == nil {
		return ""
	}
	value, ok := d[key]
	if !ok {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return typed
	case fmt.Stringer:
		return typed.String()
	case bool:
		return strconv.FormatBool(typed)
	case float64:
		// JSON numbers decode as float64.
		return strconv.FormatFloat(typed, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'g', -1, 32)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	default:
		return ""
	}
}

// Event is one security-relevant occurrence reported by a monitored host.
// Params: identity, classification, origin, free-form details, and timestamp.
// Returns: immutable event payload for rule processing.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Severity  Severity  `json:"severity"`
	Source    string    `json:"source"`
	Summary   string    `json:"summary"`
	Details   Details   `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// DecodeEvent decodes one event payload without validation.
// Params: JSON document bytes.
// Returns: decoded event or decode error.
func DecodeEvent(raw []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return event, nil
}

// Normalize fills defaults for fields the reporting host may omit.
// Params: ingest processing time used when timestamp is absent.
// Returns: event with id/severity/source/details/timestamp populated.
func (e Event) Normalize(now time.Time) Event {
	if strings.TrimSpace(e.ID) == "" {
		e.ID = uuid.NewString()
	}
	if strings.TrimSpace(e.Type) == "" {
		e.Type = "unknown"
	}
	if e.Severity == "" {
		e.Severity = SeverityLow
	}
	if strings.TrimSpace(e.Source) == "" {
		e.Source = "agent"
	}
	if strings.TrimSpace(e.Summary) == "" {
		e.Summary = "event received"
	}
	if e.Details == nil {
		e.Details = Details{}
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	return e
}

// Validate validates one event against the contract.
// Params: event fields parsed from transport.
// Returns: validation error when schema is violated.
func (e Event) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("type is required")
	}
	if err := e.Severity.Validate(); err != nil {
		return err
	}
	if e.Timestamp.IsZero() {
		return errors.New("timestamp is required")
	}
	return nil
}
