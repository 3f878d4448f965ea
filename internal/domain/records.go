package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActionStatus is the recorded outcome of one executed action.
// Params: constants success/failed/pending.
// Returns: audit trail status value.
type ActionStatus string

const (
	// ActionStatusSuccess marks a completed action.
	ActionStatusSuccess ActionStatus = "success"
	// ActionStatusFailed marks an action whose side effect failed.
	ActionStatusFailed ActionStatus = "failed"
	// ActionStatusPending marks an action awaiting completion.
	ActionStatusPending ActionStatus = "pending"
)

// ActionRecord is the audit artifact for one executed action.
// Params: action identity, outcome, optional target, and context details.
// Returns: append-only record; never mutated after creation.
type ActionRecord struct {
	ID         string       `json:"id"`
	ActionType string       `json:"actionType"`
	Status     ActionStatus `json:"status"`
	Target     string       `json:"target,omitempty"`
	Details    Details      `json:"details"`
	Timestamp  time.Time    `json:"timestamp"`
}

// AnomalyStatus classifies one scored metric observation.
// Params: constants normal/anomaly.
// Returns: anomaly gate input value.
type AnomalyStatus string

const (
	// AnomalyStatusNormal marks an in-range observation.
	AnomalyStatusNormal AnomalyStatus = "normal"
	// AnomalyStatusAnomaly marks an out-of-range observation.
	AnomalyStatusAnomaly AnomalyStatus = "anomaly"
)

// AnomalyRecord is one externally scored observation.
// Params: score, status, metric name, and context details.
// Returns: already-scored fact for the severity gate.
type AnomalyRecord struct {
	ID        string        `json:"id"`
	Score     float64       `json:"score"`
	Status    AnomalyStatus `json:"status"`
	Metric    string        `json:"metric"`
	Details   Details       `json:"details"`
	Timestamp time.Time     `json:"timestamp"`
}

// DecodeAnomaly decodes one anomaly payload without validation.
// Params: JSON document bytes.
// Returns: decoded anomaly or decode error.
func DecodeAnomaly(raw []byte) (AnomalyRecord, error) {
	var anomaly AnomalyRecord
	if err := json.Unmarshal(raw, &anomaly); err != nil {
		return AnomalyRecord{}, fmt.Errorf("decode anomaly: %w", err)
	}
	return anomaly, nil
}

// Normalize fills defaults for fields the scorer may omit.
// Params: ingest processing time used when timestamp is absent.
// Returns: anomaly with id/status/metric/details/timestamp populated.
func (a AnomalyRecord) Normalize(now time.Time) AnomalyRecord {
	if strings.TrimSpace(a.ID) == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = AnomalyStatusNormal
	}
	if strings.TrimSpace(a.Metric) == "" {
		a.Metric = "unknown"
	}
	if a.Details == nil {
		a.Details = Details{}
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = now
	}
	return a
}

// Validate validates one anomaly against the contract.
// Params: anomaly fields parsed from transport.
// Returns: validation error when schema is violated.
func (a AnomalyRecord) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("id is required")
	}
	switch a.Status {
	case AnomalyStatusNormal, AnomalyStatusAnomaly:
	default:
		return fmt.Errorf("unsupported anomaly status %q", a.Status)
	}
	if a.Score < 0 || a.Score > 1 {
		return errors.New("score must be within [0, 1]")
	}
	if a.Timestamp.IsZero() {
		return errors.New("timestamp is required")
	}
	return nil
}

// MetricSample is one host resource sample.
// Params: cpu/memory usage and failed login counter.
// Returns: raw sample persisted for reporting.
type MetricSample struct {
	ID           string    `json:"id"`
	CPU          float64   `json:"cpu"`
	Memory       float64   `json:"memory"`
	FailedLogins int64     `json:"failedLogins"`
	Timestamp    time.Time `json:"timestamp"`
}

// DecodeMetric decodes one metric sample payload.
// Params: JSON document bytes.
// Returns: decoded sample or decode error.
func DecodeMetric(raw []byte) (MetricSample, error) {
	var sample MetricSample
	if err := json.Unmarshal(raw, &sample); err != nil {
		return MetricSample{}, fmt.Errorf("decode metric: %w", err)
	}
	return sample, nil
}

// Normalize fills defaults for fields the reporter may omit.
// Params: ingest processing time used when timestamp is absent.
// Returns: sample with id/timestamp populated.
func (m MetricSample) Normalize(now time.Time) MetricSample {
	if strings.TrimSpace(m.ID) == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
	return m
}
