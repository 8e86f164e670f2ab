// Package stages implements the eight pipeline stages. Every stage absorbs
// collaborator failures and returns a degraded result with its documented
// fallback delta; the request always reaches a terminal stage.
package stages

import (
	"time"
)

// Stage names, used for graph wiring, audit entries and telemetry labels.
const (
	NameScreen          = "screen"
	NameRetrieveContext = "retrieve_context"
	NameScoreRisk       = "score_risk"
	NameCheckViolations = "check_violations"
	NameDraftReport     = "draft_report"
	NameNotify          = "notify"
	NameRespondClean    = "respond_clean"
	NameRespondBlocked  = "respond_blocked"
)

// timestamp renders the audit timestamp in UTC.
func timestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

// truncateRunes caps s at n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
