// Package store caches the latest reading of every tracked tag, as written by
// the live poller. New WebSocket clients and GET /telemetry/snapshot read from
// it so they see data before the next poll pass completes.
package store
