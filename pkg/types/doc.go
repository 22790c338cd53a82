// Package types defines the domain types shared by every server package:
// signal kinds, reactor lines, tags, readings, batch windows and the sentinel
// errors the HTTP layer maps to status codes.
//
// Tags are never persisted; they are derived from (reactor line, signal kind)
// by the tag resolver. Readings are immutable values produced per query.
package types
