// Package api implements the telemetry HTTP API.
//
// New(deps) returns an http.Handler that serves:
//
//	GET /telemetry/live                    WebSocket live stream (package ws)
//	GET /telemetry/latest                  newest reading of one tag (line, signal)
//	GET /telemetry/range                   readings of one tag (line, signal, start, end)
//	GET /telemetry/batch-correlation       batch windows joined with pH/TCC history
//	                                       (batch_id | lot_id | line | from & to)
//	GET /telemetry/flow-rate/{batchId}     transfer flow rate, or null
//	GET /telemetry/status                  historian connection state
//	GET /telemetry/snapshot                cached latest reading of every tag
//
// All JSON endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for non-GET methods
//   - Return 400 for a bad selector, 404 when nothing matches and 502 when
//     the historian or registry query fails
//
// Timestamps are RFC 3339. JSON types are defined in types.go.
package api
