// Package tags maps (reactor line, signal kind) pairs to historian tag names.
//
// Each signal kind has its own fmt template with a single %d verb for the
// line, e.g. "R%d_PH.PV" -> "R3_PH.PV". Templates are validated once in New;
// Resolve is pure and performs no I/O.
package tags
