// Package ws implements the live telemetry WebSocket endpoint.
//
// Hub runs one shared poller (Run) that walks every tracked tag, fetches its
// latest reading through the historian client and fans each reading out to
// all connected clients as soon as it resolves. After a full pass it waits
// the poll interval (2s by default, adjustable with SetInterval) and repeats.
// With no clients connected the poller stays idle and queries nothing.
//
// ServeHTTP upgrades the request, sends one connection_status frame, then the
// cached latest reading of every tag, then the live stream.
//
// Message format sent to clients:
//
//	{"event": "connection_status", "data": {"mode": "Fallback", "message": "..."}}
//	{"event": "reading", "data": {"tag": "R3_PH.PV", "line": 3, "signal": "pH", "reading": {...}}}
//
// A connection_status frame is sent again whenever the historian mode
// changes. Clients that fall behind by a full send buffer are disconnected.
// The upgrader accepts all origins; apply CORS at the reverse proxy.
package ws
