package config

import (
	"os"
	"strings"
)

// ResearchSyncMode forces the research phase to use the synchronous AI research
// call instead of handing off to the async research task service. Useful when
// the webhook endpoint is not reachable (local development).
//
// Set via env:
// - RESEARCH_SYNC_MODE=true
func ResearchSyncMode() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("RESEARCH_SYNC_MODE")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// SeoGateDisabled turns the SEO audit into advisory-only: scores and issues are
// still recorded, but failing required checks no longer forces remediation.
//
// Set via env:
// - SEO_GATE_DISABLED=true
func SeoGateDisabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("SEO_GATE_DISABLED")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// EventsDirectProcessing controls the in-process fallback consumer for the
// content-event outbox when Pub/Sub is not configured or delivery is
// misconfigured. Defaults to on; processing is idempotent so at-least-once
// delivery is safe.
//
// Set via env:
// - EVENTS_DIRECT_PROCESSING=false
func EventsDirectProcessing() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("EVENTS_DIRECT_PROCESSING")))
	if v == "false" {
		return false
	}
	return true
}
