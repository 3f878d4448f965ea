package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sentinel/internal/config"
	"sentinel/internal/domain"

	"github.com/nats-io/nats.go"
)

// NATSJournal persists records as JetStream messages and serves history
// queries from a bounded in-process window of recent events.
// Params: NATS connection, JetStream context, subject prefix, and window store.
// Returns: durable journal store implementation.
type NATSJournal struct {
	nc            *nats.Conn
	js            nats.JetStreamContext
	subjectPrefix string
	window        *MemoryStore
}

// NewNATSJournal connects to NATS and ensures the journal stream exists.
// Params: journal settings from config.
// Returns: initialized journal store or setup error.
func NewNATSJournal(settings config.JournalConfig) (*NATSJournal, error) {
	nc, err := nats.Connect(strings.Join(settings.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats journal: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	prefix := strings.TrimSuffix(settings.SubjectPrefix, ".")
	if _, err := js.StreamInfo(settings.Stream); err != nil {
		if !settings.AllowCreateStream {
			nc.Close()
			return nil, fmt.Errorf("open journal stream %q: %w", settings.Stream, err)
		}
		streamConfig := &nats.StreamConfig{
			Name:     settings.Stream,
			Subjects: []string{prefix + ".>"},
			MaxAge:   time.Duration(settings.MaxAgeHours) * time.Hour,
		}
		if _, err := js.AddStream(streamConfig); err != nil {
			nc.Close()
			return nil, fmt.Errorf("create journal stream %q: %w", settings.Stream, err)
		}
	}

	return &NATSJournal{
		nc:            nc,
		js:            js,
		subjectPrefix: prefix,
		window:        NewMemoryStore(settings.WindowCapacity),
	}, nil
}

// AppendEvent publishes one event and indexes it in the recent window.
// Params: context and event.
// Returns: publish error.
func (s *NATSJournal) AppendEvent(ctx context.Context, event domain.Event) error {
	if err := s.publish(ctx, "events."+sanitizeToken(event.Type), event.ID, event); err != nil {
		return err
	}
	return s.window.AppendEvent(ctx, event)
}

// AppendAction publishes one action record and indexes it in the recent window.
// Params: context and record.
// Returns: publish error.
func (s *NATSJournal) AppendAction(ctx context.Context, record domain.ActionRecord) error {
	if err := s.publish(ctx, "actions", record.ID, record); err != nil {
		return err
	}
	return s.window.AppendAction(ctx, record)
}

// AppendAnomaly publishes one anomaly record.
// Params: context and anomaly.
// Returns: publish error.
func (s *NATSJournal) AppendAnomaly(ctx context.Context, anomaly domain.AnomalyRecord) error {
	if err := s.publish(ctx, "anomalies", anomaly.ID, anomaly); err != nil {
		return err
	}
	return s.window.AppendAnomaly(ctx, anomaly)
}

// AppendMetric publishes one metric sample.
// Params: context and sample.
// Returns: publish error.
func (s *NATSJournal) AppendMetric(ctx context.Context, sample domain.MetricSample) error {
	if err := s.publish(ctx, "metrics", sample.ID, sample); err != nil {
		return err
	}
	return s.window.AppendMetric(ctx, sample)
}

// CountEventsSince counts recent events of one type at/after the bound.
// Params: event type and inclusive time lower bound.
// Returns: count served from the in-process window.
func (s *NATSJournal) CountEventsSince(ctx context.Context, eventType string, since time.Time) (int, error) {
	return s.window.CountEventsSince(ctx, eventType, since)
}

// ListEvents returns recent events by type and time bound, newest first.
// Params: optional event type filter, time lower bound, and result limit.
// Returns: events served from the in-process window.
func (s *NATSJournal) ListEvents(ctx context.Context, eventType string, since time.Time, limit int) ([]domain.Event, error) {
	return s.window.ListEvents(ctx, eventType, since, limit)
}

// ListActions returns recent action records, newest first.
// Params: result limit.
// Returns: audit trail served from the in-process window.
func (s *NATSJournal) ListActions(ctx context.Context, limit int) ([]domain.ActionRecord, error) {
	return s.window.ListActions(ctx, limit)
}

// ListAnomalies returns recent anomaly records, newest first.
// Params: result limit.
// Returns: anomalies served from the in-process window.
func (s *NATSJournal) ListAnomalies(ctx context.Context, limit int) ([]domain.AnomalyRecord, error) {
	return s.window.ListAnomalies(ctx, limit)
}

// ListMetrics returns recent metric samples, newest first.
// Params: result limit.
// Returns: samples served from the in-process window.
func (s *NATSJournal) ListMetrics(ctx context.Context, limit int) ([]domain.MetricSample, error) {
	return s.window.ListMetrics(ctx, limit)
}

// publish writes one JSON record to the journal stream.
// Params: context, subject suffix, record id for deduplication, and payload.
// Returns: encode or publish error.
func (s *NATSJournal) publish(ctx context.Context, suffix, recordID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode journal record: %w", err)
	}
	msg := nats.NewMsg(s.subjectPrefix + "." + suffix)
	msg.Data = body
	if strings.TrimSpace(recordID) != "" {
		msg.Header.Set("Nats-Msg-Id", strings.TrimSpace(recordID))
	}
	if _, err := s.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish journal record: %w", err)
	}
	return nil
}

// Close closes the underlying NATS connection.
// Params: none.
// Returns: nil after connection close.
func (s *NATSJournal) Close() error {
	s.nc.Close()
	return nil
}

// sanitizeToken normalizes one event type into a valid subject token.
// Params: raw event type value.
// Returns: token without NATS subject separators.
func sanitizeToken(value string) string {
	replacer := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")
	token := replacer.Replace(strings.TrimSpace(value))
	if token == "" {
		return "unknown"
	}
	return token
}
