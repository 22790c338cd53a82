package api

import (
	"time"

	"github.com/plantqc/historian-bridge/pkg/types"
)

// RangeResponse is the payload for GET /telemetry/range.
type RangeResponse struct {
	TagName  string          `json:"tagName"`
	Readings []types.Reading `json:"readings"`
	Metadata RangeMetadata   `json:"metadata"`
}

// RangeMetadata describes the query behind a RangeResponse.
type RangeMetadata struct {
	Line   types.ReactorLine    `json:"line"`
	Signal types.SignalKind     `json:"signal"`
	Unit   string               `json:"unit"`
	Start  time.Time            `json:"start"`
	End    time.Time            `json:"end"`
	Count  int                  `json:"count"`
	Mode   types.ConnectionMode `json:"mode"`
}

// LatestResponse is the payload for GET /telemetry/latest.
type LatestResponse struct {
	TagName string               `json:"tagName"`
	Reading types.Reading        `json:"reading"`
	Mode    types.ConnectionMode `json:"mode"`
}

// StatusResponse is the payload for GET /telemetry/status.
type StatusResponse struct {
	Mode        types.ConnectionMode `json:"mode"`
	LastError   string               `json:"last_error,omitempty"`
	UpdatedAt   time.Time            `json:"updated_at"`
	LiveClients int                  `json:"live_clients"`
	CachedTags  int                  `json:"cached_tags"`
	CacheTTL    float64              `json:"cache_ttl_seconds"`
}

// SnapshotResponse is the payload for GET /telemetry/snapshot.
type SnapshotResponse struct {
	Readings    []SnapshotEntry `json:"readings"`
	GeneratedAt string          `json:"generated_at"` // RFC3339
}

// SnapshotEntry is one cached reading with the time the poller stored it.
type SnapshotEntry struct {
	types.Reading
	Line      types.ReactorLine `json:"line"`
	Signal    types.SignalKind  `json:"signal"`
	UpdatedAt string            `json:"updated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
