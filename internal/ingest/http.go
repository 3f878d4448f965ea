package ingest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sentinel/internal/domain"
	"sentinel/internal/rules"
)

// EventSink receives decoded events from ingest transports.
// Params: context and decoded event payload.
// Returns: normalized event, matched rules, and persist error.
type EventSink interface {
	HandleEvent(ctx context.Context, event domain.Event) (domain.Event, []rules.Definition, error)
}

// Core is the engine facade surface exposed over the HTTP API.
// Params: event/anomaly/metric intake plus rule and audit queries.
// Returns: orchestration operations for the API handlers.
type Core interface {
	EventSink
	Simulate(ctx context.Context, event domain.Event) []rules.Definition
	HandleAnomaly(ctx context.Context, anomaly domain.AnomalyRecord) (domain.AnomalyRecord, error)
	HandleMetric(ctx context.Context, sample domain.MetricSample) (domain.MetricSample, error)
	Rules() []rules.Definition
	ReloadRules(ctx context.Context) error
	Actions(ctx context.Context, limit int) ([]domain.ActionRecord, error)
	Events(ctx context.Context, eventType string, since time.Time, limit int) ([]domain.Event, error)
	Anomalies(ctx context.Context, limit int) ([]domain.AnomalyRecord, error)
	Metrics(ctx context.Context, limit int) ([]domain.MetricSample, error)
	PerformAction(ctx context.Context, name string, payload map[string]any) domain.ActionRecord
}

// API serves the JSON ingest and query endpoints.
// Params: engine facade, optional bearer token, and body size limit.
// Returns: HTTP boundary for the service mux.
type API struct {
	core        Core
	apiToken    string
	maxBodySize int64
}

// NewAPI creates the HTTP API boundary.
// Params: engine facade, API token (empty disables auth), and max request body size.
// Returns: configured API.
func NewAPI(core Core, apiToken string, maxBodySize int64) *API {
	return &API{core: core, apiToken: apiToken, maxBodySize: maxBodySize}
}

// Register mounts API routes on the mux.
// Params: service mux.
// Returns: routes registered for events, rules, actions, anomalies, and metrics.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /events", a.withAuth(a.listEvents))
	mux.HandleFunc("POST /events", a.withAuth(a.postEvent))
	mux.HandleFunc("GET /rules", a.withAuth(a.listRules))
	mux.HandleFunc("POST /rules/reload", a.withAuth(a.reloadRules))
	mux.HandleFunc("POST /rules/simulate", a.withAuth(a.simulate))
	mux.HandleFunc("GET /actions", a.withAuth(a.listActions))
	mux.HandleFunc("POST /actions/{name}", a.withAuth(a.performAction))
	mux.HandleFunc("GET /anomalies", a.withAuth(a.listAnomalies))
	mux.HandleFunc("POST /anomalies", a.withAuth(a.postAnomaly))
	mux.HandleFunc("GET /metrics", a.withAuth(a.listMetrics))
	mux.HandleFunc("POST /metrics", a.withAuth(a.postMetric))
}

// manualActions whitelists operator-invokable remediations.
// Params: remediation name from the request path.
// Returns: true for supported agent endpoints.
func manualActions(name string) bool {
	switch name {
	case "lockdown", "heal", "scan":
		return true
	default:
		return false
	}
}

// withAuth wraps one handler with bearer/x-api-token auth.
// Params: downstream handler.
// Returns: handler rejecting requests without the configured token.
func (a *API) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		if a.apiToken != "" {
			header := request.Header.Get("Authorization")
			token := ""
			if strings.HasPrefix(header, "Bearer ") {
				token = strings.TrimPrefix(header, "Bearer ")
			}
			if token == "" {
				token = request.Header.Get("X-Api-Token")
			}
			if token != a.apiToken {
				writeJSON(writer, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
		}
		next(writer, request)
	}
}

// postEvent ingests one event or a batch and runs the evaluation pipeline.
// Params: HTTP request with one event JSON object or a JSON array of events.
// Returns: normalized event(s) and matched rule ids per event.
func (a *API) postEvent(writer http.ResponseWriter, request *http.Request) {
	body, ok := a.readBody(writer, request)
	if !ok {
		return
	}

	if isJSONArray(body) {
		var batch []domain.Event
		if err := json.Unmarshal(body, &batch); err != nil {
			writeJSON(writer, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		results := make([]map[string]any, 0, len(batch))
		status := "ok"
		for _, event := range batch {
			stored, matched, handleErr := a.core.HandleEvent(request.Context(), event)
			if handleErr != nil {
				status = "degraded"
			}
			results = append(results, map[string]any{
				"event":   stored,
				"matched": ruleIDs(matched),
			})
		}
		writeJSON(writer, http.StatusOK, map[string]any{"status": status, "results": results})
		return
	}

	event, err := domain.DecodeEvent(body)
	if err != nil {
		writeJSON(writer, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	stored, matched, handleErr := a.core.HandleEvent(request.Context(), event)
	response := map[string]any{
		"status":  "ok",
		"event":   stored,
		"matched": ruleIDs(matched),
	}
	if handleErr != nil {
		// Matches are still reported; persistence is best-effort at this boundary.
		response["status"] = "degraded"
	}
	writeJSON(writer, http.StatusOK, response)
}

// listEvents serves stored events with optional filters.
// Params: HTTP request with type/since/limit query parameters.
// Returns: filtered event list.
func (a *API) listEvents(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()
	since := time.Time{}
	if raw := query.Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(writer, http.StatusBadRequest, map[string]string{"error": "since must be RFC3339"})
			return
		}
		since = parsed
	}
	limit := parseLimit(query.Get("limit"))

	events, err := a.core.Events(request.Context(), query.Get("type"), since, limit)
	if err != nil {
		writeJSON(writer, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(writer, http.StatusOK, map[string]any{"events": events})
}

// listRules serves the active catalog snapshot.
// Params: HTTP request.
// Returns: rules in catalog order.
func (a *API) listRules(writer http.ResponseWriter, request *http.Request) {
	writeJSON(writer, http.StatusOK, map[string]any{"rules": a.core.Rules()})
}

// reloadRules swaps in a fresh catalog snapshot.
// Params: HTTP request.
// Returns: reload status; 502 on total source failure.
func (a *API) reloadRules(writer http.ResponseWriter, request *http.Request) {
	if err := a.core.ReloadRules(request.Context()); err != nil {
		writeJSON(writer, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(writer, http.StatusOK, map[string]string{"status": "reloaded"})
}

// simulate dry-runs rule evaluation for one candidate event.
// Params: HTTP request with {"event": {...}} body.
// Returns: matched rules without any dispatch or persistence.
func (a *API) simulate(writer http.ResponseWriter, request *http.Request) {
	body, ok := a.readBody(writer, request)
	if !ok {
		return
	}
	var payload struct {
		Event domain.Event `json:"event"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSON(writer, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	matches := a.core.Simulate(request.Context(), payload.Event)
	writeJSON(writer, http.StatusOK, map[string]any{"matches": matches})
}

// listActions serves the recent audit trail.
// Params: HTTP request with optional limit query parameter.
// Returns: action records, newest first.
func (a *API) listActions(writer http.ResponseWriter, request *http.Request) {
	actions, err := a.core.Actions(request.Context(), parseLimit(request.URL.Query().Get("limit")))
	if err != nil {
		writeJSON(writer, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(writer, http.StatusOK, map[string]any{"actions": actions})
}

// performAction runs one manual remediation against the agent.
// Params: HTTP request with remediation name path segment and optional payload object.
// Returns: audit record; 502 when the agent call failed.
func (a *API) performAction(writer http.ResponseWriter, request *http.Request) {
	name := request.PathValue("name")
	if !manualActions(name) {
		writeJSON(writer, http.StatusNotFound, map[string]string{"error": "unknown action " + name})
		return
	}
	body, ok := a.readBody(writer, request)
	if !ok {
		return
	}
	payload := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			writeJSON(writer, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}

	record := a.core.PerformAction(request.Context(), name, payload)
	status := http.StatusOK
	if record.Status == domain.ActionStatusFailed {
		status = http.StatusBadGateway
	}
	writeJSON(writer, status, map[string]any{"action": record})
}

// listAnomalies serves recent anomaly records.
// Params: HTTP request with optional limit query parameter.
// Returns: anomaly records, newest first.
func (a *API) listAnomalies(writer http.ResponseWriter, request *http.Request) {
	anomalies, err := a.core.Anomalies(request.Context(), parseLimit(request.URL.Query().Get("limit")))
	if err != nil {
		writeJSON(writer, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(writer, http.StatusOK, map[string]any{"anomalies": anomalies})
}

// listMetrics serves recent metric samples.
// Params: HTTP request with optional limit query parameter.
// Returns: metric samples, newest first.
func (a *API) listMetrics(writer http.ResponseWriter, request *http.Request) {
	metrics, err := a.core.Metrics(request.Context(), parseLimit(request.URL.Query().Get("limit")))
	if err != nil {
		writeJSON(writer, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(writer, http.StatusOK, map[string]any{"metrics": metrics})
}

// postAnomaly ingests one scored anomaly record.
// Params: HTTP request with one anomaly JSON object.
// Returns: normalized anomaly.
func (a *API) postAnomaly(writer http.ResponseWriter, request *http.Request) {
	body, ok := a.readBody(writer, request)
	if !ok {
		return
	}
	anomaly, err := domain.DecodeAnomaly(body)
	if err != nil {
		writeJSON(writer, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	stored, handleErr := a.core.HandleAnomaly(request.Context(), anomaly)
	status := "ok"
	if handleErr != nil {
		status = "degraded"
	}
	writeJSON(writer, http.StatusOK, map[string]any{"status": status, "anomaly": stored})
}

// postMetric ingests one metric sample.
// Params: HTTP request with one sample JSON object.
// Returns: intake status.
func (a *API) postMetric(writer http.ResponseWriter, request *http.Request) {
	body, ok := a.readBody(writer, request)
	if !ok {
		return
	}
	sample, err := domain.DecodeMetric(body)
	if err != nil {
		writeJSON(writer, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if _, err := a.core.HandleMetric(request.Context(), sample); err != nil {
		writeJSON(writer, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(writer, http.StatusOK, map[string]string{"status": "ok"})
}

// readBody reads one size-limited request body.
// Params: response writer and request.
// Returns: body bytes and false when the read already wrote an error.
func (a *API) readBody(writer http.ResponseWriter, request *http.Request) ([]byte, bool) {
	request.Body = http.MaxBytesReader(writer, request.Body, a.maxBodySize)
	defer request.Body.Close()
	body, err := io.ReadAll(request.Body)
	if err != nil {
		writeJSON(writer, http.StatusBadRequest, map[string]string{"error": "read body failed"})
		return nil, false
	}
	return body, true
}

// writeJSON writes one JSON response with status code.
// Params: response writer, status code, and payload.
// Returns: encoded response; encode failures are ignored.
func writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(payload)
}

// ruleIDs projects matched rules onto their ids.
// Params: matched rule list.
// Returns: rule id list in match order.
func ruleIDs(matched []rules.Definition) []string {
	ids := make([]string, 0, len(matched))
	for _, rule := range matched {
		ids = append(ids, rule.ID)
	}
	return ids
}

// isJSONArray reports whether the payload's first JSON token opens an array.
// Params: raw body bytes.
// Returns: true when the first non-space byte is '['.
func isJSONArray(body []byte) bool {
	for _, b := range body {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}

// parseLimit parses one limit query value.
// Params: raw query string value.
// Returns: parsed limit or 0 when absent/invalid.
func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
