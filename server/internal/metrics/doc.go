// Package metrics owns the Prometheus registry for the server and the
// collectors every other package records into. Handler exposes the registry
// in the text exposition format on GET /metrics.
package metrics
