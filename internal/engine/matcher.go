package engine

import (
	"strings"

	"sentinel/internal/domain"
	"sentinel/internal/rules"
)

// MatchEvent checks whether rule field predicates match one event.
// Params: rule selector and incoming event.
// Returns: true when every specified predicate holds; absent fields impose no constraint.
func MatchEvent(rule rules.Definition, event domain.Event) bool {
	match := rule.Match
	if match.EventType != "" && match.EventType != event.Type {
		return false
	}
	if match.Severity != "" && match.Severity != event.Severity {
		return false
	}
	if match.ProcessName != "" {
		// Substring on purpose: operators match partial process names like "ssh".
		processName := event.Details.String("processName")
		if !strings.Contains(processName, match.ProcessName) {
			return false
		}
	}
	if match.IPAddress != "" {
		if event.Details.String("ipAddress") != match.IPAddress {
			return false
		}
	}
	return true
}
