// Package defaults holds the canonical default values used across greenapi.
//
// Reference these constants instead of repeating literals:
//
//	cfg.Addr = defaults.ListenAddr
//	req.Header.Set("Content-Type", defaults.ContentTypeJSON)
package defaults

import "fmt"

// Version is the current greenapi version.
const Version = "1.2.0"

// ToolName is the program name used in banners, user agents and reports.
const ToolName = "greenapi"

// UserAgent is sent when a request template does not set its own.
var UserAgent = fmt.Sprintf("%s/%s", ToolName, Version)

// Content types.
const (
	ContentTypeJSON = "application/json"
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypePDF  = "application/pdf"
)

// HTTP API settings.
const (
	// ListenAddr is the default address for `greenapi serve`.
	ListenAddr = ":3000"

	// MaxRequestBody caps JSON bodies accepted by the API (10 MiB).
	MaxRequestBody int64 = 10 * 1024 * 1024
)

// Classification settings.
const (
	// TimeBasedThresholdMs is the strict lower bound for time-based SQLi.
	TimeBasedThresholdMs int64 = 4000

	// TrivialSizeDelta is the size difference below which a response is
	// considered unchanged for AI triage.
	TrivialSizeDelta = 10

	// DiffLineCap bounds the unified diff handed to the reasoning service.
	DiffLineCap = 200

	// AIRequestsPerMinute is the default request budget for the AI client.
	AIRequestsPerMinute = 60

	// GeminiModel is the default model for the Gemini client.
	GeminiModel = "gemini-2.5-flash"
)
