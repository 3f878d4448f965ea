package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"sentinel/internal/templatefmt"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultHTTPListen         = ":8080"
	defaultHealthPath         = "/healthz"
	defaultReadyPath          = "/readyz"
	defaultMaxBodyBytes       = 1 << 20
	defaultRulesDir           = "./rules"
	defaultReloadIntervalSec  = 30
	defaultAgentURL           = "http://agent:5001"
	defaultAgentTimeoutSec    = 5
	defaultAnomalyThreshold   = 0.8
	defaultNATSURL            = "nats://127.0.0.1:4222"
	defaultIngestSubject      = "sentinel.events"
	defaultIngestStream       = "SENTINEL_EVENTS"
	defaultIngestConsumer     = "sentinel-ingest"
	defaultIngestGroup        = "sentinel-workers"
	defaultIngestAckWaitSec   = 30
	defaultIngestMaxDeliver   = -1
	defaultIngestMaxPending   = 2048
	defaultJournalStream      = "SENTINEL_RECORDS"
	defaultJournalPrefix      = "sentinel.records"
	defaultJournalMaxAgeHours = 168
	defaultJournalWindow      = 10000

	// ServiceModeSingle keeps all records in process memory without NATS dependencies.
	ServiceModeSingle = "single"
	// ServiceModeNATS enables NATS ingest and the JetStream record journal.
	ServiceModeNATS = "nats"
)

// Config holds service runtime settings.
// Params: TOML sections from one config file.
// Returns: validated runtime configuration.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Ingest  IngestConfig  `toml:"ingest"`
	Journal JournalConfig `toml:"journal"`
	Agent   AgentConfig   `toml:"agent"`
	Anomaly AnomalyConfig `toml:"anomaly"`
	Notify  NotifyConfig  `toml:"notify"`
	Log     LogConfig     `toml:"log"`
}

// ServiceConfig holds process-wide settings.
// Params: mode, rules directory, API token, and catalog reload cadence.
// Returns: service section values.
type ServiceConfig struct {
	Mode              string `toml:"mode"`
	RulesDir          string `toml:"rules_dir"`
	APIToken          string `toml:"api_token"`
	ReloadEnabled     bool   `toml:"reload_enabled"`
	ReloadIntervalSec int    `toml:"reload_interval_sec"`
}

// IngestConfig groups event intake transports.
// Params: HTTP and NATS subsections.
// Returns: ingest section values.
type IngestConfig struct {
	HTTP HTTPIngestConfig `toml:"http"`
	NATS NATSIngestConfig `toml:"nats"`
}

// HTTPIngestConfig holds HTTP API settings.
// Params: listen address, body limit, and probe paths.
// Returns: HTTP ingest section values.
type HTTPIngestConfig struct {
	Enabled      bool   `toml:"enabled"`
	Listen       string `toml:"listen"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
	HealthPath   string `toml:"health_path"`
	ReadyPath    string `toml:"ready_path"`
}

// NATSIngestConfig holds JetStream event consumer settings.
// Params: connection URLs and consumer tuning knobs.
// Returns: NATS ingest section values.
type NATSIngestConfig struct {
	Enabled       bool     `toml:"enabled"`
	URL           []string `toml:"url"`
	Subject       string   `toml:"subject"`
	Stream        string   `toml:"stream"`
	ConsumerName  string   `toml:"consumer_name"`
	DeliverGroup  string   `toml:"deliver_group"`
	AckWaitSec    int      `toml:"ack_wait_sec"`
	MaxDeliver    int      `toml:"max_deliver"`
	MaxAckPending int      `toml:"max_ack_pending"`
}

// JournalConfig holds JetStream record journal settings.
// Params: connection URLs, stream naming, retention, and window capacity.
// Returns: journal section values.
type JournalConfig struct {
	URL               []string `toml:"url"`
	Stream            string   `toml:"stream"`
	SubjectPrefix     string   `toml:"subject_prefix"`
	MaxAgeHours       int      `toml:"max_age_hours"`
	AllowCreateStream bool     `toml:"allow_create_stream"`
	WindowCapacity    int      `toml:"window_capacity"`
}

// AgentConfig holds remediation agent endpoint settings.
// Params: base URL and bounded call timeout.
// Returns: agent section values.
type AgentConfig struct {
	URL        string `toml:"url"`
	TimeoutSec int    `toml:"timeout_sec"`
}

// AnomalyConfig holds the anomaly paging gate.
// Params: minimum score paging a human.
// Returns: anomaly section values.
type AnomalyConfig struct {
	ScoreThreshold float64 `toml:"score_threshold"`
}

// NotifyConfig groups notification settings.
// Params: telegram transport and message template overrides.
// Returns: notify section values.
type NotifyConfig struct {
	Telegram TelegramNotifier `toml:"telegram"`
	Messages MessageTemplates `toml:"messages"`
}

// TelegramNotifier holds Telegram Bot API settings.
// Params: bot token, chat id, and optional API base override.
// Returns: telegram subsection values.
type TelegramNotifier struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
	APIBase  string `toml:"api_base"`
}

// MessageTemplates holds optional notification template overrides.
// Params: rule-fired, escalation, and anomaly template bodies.
// Returns: messages subsection values; empty bodies keep defaults.
type MessageTemplates struct {
	Rule       string `toml:"rule"`
	Escalation string `toml:"escalation"`
	Anomaly    string `toml:"anomaly"`
}

// LogConfig holds logging sink settings.
// Params: console and file subsections.
// Returns: log section values.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig holds one log sink settings.
// Params: enabled flag, level, format, and file path.
// Returns: sink subsection values.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// Load reads, defaults, and validates one TOML config file.
// Params: config file path.
// Returns: validated config or load error.
func Load(path string) (Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}
	return Parse(body)
}

// Parse decodes, defaults, and validates raw TOML config bytes.
// Params: TOML document bytes.
// Returns: validated config or decode/validation error.
func Parse(body []byte) (Config, error) {
	var cfg Config
	if err := toml.Unmarshal(body, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromCLI resolves the config path from CLI flags.
// Params: --config flag value.
// Returns: path or flag usage error.
func FromCLI(filePath string) (string, error) {
	if strings.TrimSpace(filePath) == "" {
		return "", errors.New("--config is required")
	}
	return filePath, nil
}

// NormalizeServiceMode lowercases and defaults the service mode value.
// Params: raw mode string.
// Returns: normalized mode; empty input defaults to single.
func NormalizeServiceMode(value string) string {
	mode := strings.ToLower(strings.TrimSpace(value))
	if mode == "" {
		return ServiceModeSingle
	}
	return mode
}

// IsNATSMode reports whether NATS-backed ingest/journal are active.
// Params: config snapshot.
// Returns: true for nats service mode.
func IsNATSMode(cfg Config) bool {
	return NormalizeServiceMode(cfg.Service.Mode) == ServiceModeNATS
}

// applyDefaults fills zero-valued settings with service defaults.
// Params: decoded config pointer.
// Returns: config mutated in place.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Mode) == "" {
		cfg.Service.Mode = ServiceModeSingle
	}
	if strings.TrimSpace(cfg.Service.RulesDir) == "" {
		cfg.Service.RulesDir = defaultRulesDir
	}
	if cfg.Service.ReloadIntervalSec <= 0 {
		cfg.Service.ReloadIntervalSec = defaultReloadIntervalSec
	}

	if strings.TrimSpace(cfg.Ingest.HTTP.Listen) == "" {
		cfg.Ingest.HTTP.Listen = defaultHTTPListen
	}
	if cfg.Ingest.HTTP.MaxBodyBytes <= 0 {
		cfg.Ingest.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.HealthPath) == "" {
		cfg.Ingest.HTTP.HealthPath = defaultHealthPath
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.ReadyPath) == "" {
		cfg.Ingest.HTTP.ReadyPath = defaultReadyPath
	}

	if len(cfg.Ingest.NATS.URL) == 0 {
		cfg.Ingest.NATS.URL = []string{defaultNATSURL}
	}
	if strings.TrimSpace(cfg.Ingest.NATS.Subject) == "" {
		cfg.Ingest.NATS.Subject = defaultIngestSubject
	}
	if strings.TrimSpace(cfg.Ingest.NATS.Stream) == "" {
		cfg.Ingest.NATS.Stream = defaultIngestStream
	}
	if strings.TrimSpace(cfg.Ingest.NATS.ConsumerName) == "" {
		cfg.Ingest.NATS.ConsumerName = defaultIngestConsumer
	}
	if strings.TrimSpace(cfg.Ingest.NATS.DeliverGroup) == "" {
		cfg.Ingest.NATS.DeliverGroup = defaultIngestGroup
	}
	if cfg.Ingest.NATS.AckWaitSec <= 0 {
		cfg.Ingest.NATS.AckWaitSec = defaultIngestAckWaitSec
	}
	if cfg.Ingest.NATS.MaxDeliver == 0 {
		cfg.Ingest.NATS.MaxDeliver = defaultIngestMaxDeliver
	}
	if cfg.Ingest.NATS.MaxAckPending <= 0 {
		cfg.Ingest.NATS.MaxAckPending = defaultIngestMaxPending
	}

	if len(cfg.Journal.URL) == 0 {
		cfg.Journal.URL = cfg.Ingest.NATS.URL
	}
	if strings.TrimSpace(cfg.Journal.Stream) == "" {
		cfg.Journal.Stream = defaultJournalStream
	}
	if strings.TrimSpace(cfg.Journal.SubjectPrefix) == "" {
		cfg.Journal.SubjectPrefix = defaultJournalPrefix
	}
	if cfg.Journal.MaxAgeHours <= 0 {
		cfg.Journal.MaxAgeHours = defaultJournalMaxAgeHours
	}
	if cfg.Journal.WindowCapacity <= 0 {
		cfg.Journal.WindowCapacity = defaultJournalWindow
	}

	if strings.TrimSpace(cfg.Agent.URL) == "" {
		cfg.Agent.URL = defaultAgentURL
	}
	if cfg.Agent.TimeoutSec <= 0 {
		cfg.Agent.TimeoutSec = defaultAgentTimeoutSec
	}

	if cfg.Anomaly.ScoreThreshold <= 0 {
		cfg.Anomaly.ScoreThreshold = defaultAnomalyThreshold
	}

	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	fillLogSinkDefaults(&cfg.Log.Console)
	fillLogSinkDefaults(&cfg.Log.File)
}

// fillLogSinkDefaults fills one sink's level/format defaults.
// Params: sink pointer.
// Returns: sink mutated in place.
func fillLogSinkDefaults(sink *LogSinkConfig) {
	if strings.TrimSpace(sink.Level) == "" {
		sink.Level = "info"
	}
	if strings.TrimSpace(sink.Format) == "" {
		sink.Format = "line"
	}
}

// validateConfig checks cross-field configuration invariants.
// Params: defaulted config snapshot.
// Returns: first validation error.
func validateConfig(cfg Config) error {
	mode := NormalizeServiceMode(cfg.Service.Mode)
	if mode != ServiceModeSingle && mode != ServiceModeNATS {
		return fmt.Errorf("unsupported service.mode %q", cfg.Service.Mode)
	}
	if !cfg.Ingest.HTTP.Enabled && !cfg.Ingest.NATS.Enabled {
		return errors.New("at least one ingest transport must be enabled")
	}
	if cfg.Ingest.NATS.Enabled && mode != ServiceModeNATS {
		return errors.New("ingest.nats requires service.mode = nats")
	}
	if cfg.Anomaly.ScoreThreshold < 0 || cfg.Anomaly.ScoreThreshold > 1 {
		return errors.New("anomaly.score_threshold must be within [0, 1]")
	}
	if cfg.Notify.Telegram.Enabled {
		if strings.TrimSpace(cfg.Notify.Telegram.BotToken) == "" {
			return errors.New("notify.telegram.bot_token is required")
		}
		if strings.TrimSpace(cfg.Notify.Telegram.ChatID) == "" {
			return errors.New("notify.telegram.chat_id is required")
		}
	}
	if err := validateMessageTemplates(cfg.Notify.Messages); err != nil {
		return err
	}
	if err := validateLogSink("log.console", cfg.Log.Console, false); err != nil {
		return err
	}
	if err := validateLogSink("log.file", cfg.Log.File, true); err != nil {
		return err
	}
	return nil
}

// validateMessageTemplates ensures overrides compile at startup.
// Params: messages subsection.
// Returns: first template parse error.
func validateMessageTemplates(messages MessageTemplates) error {
	if _, err := templatefmt.NewMessageSet(messages.Rule, messages.Escalation, messages.Anomaly); err != nil {
		return fmt.Errorf("notify.messages: %w", err)
	}
	return nil
}

// validateLogSink checks one sink's level/format/path values.
// Params: sink name, sink values, and whether a path is required when enabled.
// Returns: validation error.
func validateLogSink(name string, sink LogSinkConfig, requirePath bool) error {
	switch strings.ToLower(strings.TrimSpace(sink.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s.level %q is unsupported", name, sink.Level)
	}
	switch strings.ToLower(strings.TrimSpace(sink.Format)) {
	case "line", "json":
	default:
		return fmt.Errorf("%s.format %q is unsupported", name, sink.Format)
	}
	if sink.Enabled && requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required", name)
	}
	return nil
}
