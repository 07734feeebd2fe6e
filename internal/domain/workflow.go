package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Platform names the external source an observation came from.
type Platform string

const (
	PlatformVideo  Platform = "Video"
	PlatformForum  Platform = "Forum"
	PlatformTrends Platform = "Trends"
)

// Platforms lists every supported platform in collection order.
func Platforms() []Platform {
	return []Platform{PlatformVideo, PlatformForum, PlatformTrends}
}

// ParsePlatform resolves a user supplied platform name case-insensitively.
// "youtube" and "googletrends" are accepted as aliases.
func ParsePlatform(value string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "video", "youtube":
		return PlatformVideo, true
	case "forum", "discourse":
		return PlatformForum, true
	case "trends", "googletrends":
		return PlatformTrends, true
	default:
		return "", false
	}
}

// Country is an upper-case ISO 3166 alpha-2 code.
type Country string

const (
	CountryUS Country = "US"
	CountryIN Country = "IN"
)

// NormalizeCountry upper-cases and trims a country code.
func NormalizeCountry(value string) Country {
	return Country(strings.ToUpper(strings.TrimSpace(value)))
}

// Key is the identity of a stored workflow record.
type Key struct {
	Workflow string
	Platform Platform
	Country  Country
}

// Observation is one freshly collected popularity data point.
type Observation struct {
	Workflow  string
	Platform  Platform
	Country   Country
	SourceURL string
	Metrics   Metrics
	Score     float64
}

// Key returns the record identity this observation reconciles into.
func (o Observation) Key() Key {
	return Key{Workflow: o.Workflow, Platform: o.Platform, Country: o.Country}
}

// WorkflowRecord is the persisted, latest-known popularity state for one key.
type WorkflowRecord struct {
	ID                int64           `json:"id"`
	Workflow          string          `json:"workflow"`
	Platform          Platform        `json:"platform"`
	Country           Country         `json:"country"`
	SourceURL         string          `json:"source_url,omitempty"`
	PopularityMetrics json.RawMessage `json:"popularity_metrics"`
	PopularityScore   float64         `json:"popularity_score"`
	LastSeen          time.Time       `json:"last_seen"`
}

// RecordFilter narrows the read API.
type RecordFilter struct {
	Platform string
	Country  string
	Limit    int
}
