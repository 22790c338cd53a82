// Package registry reads batch windows from the batch registry database.
//
// A batch window is the interval between a batch's open and close time. The
// registry is read-only from this service's point of view; rows are written
// by the plant's batch management system. A window with no close time is
// still open.
//
// Windows are selected by exactly one of batch id, lot id, reactor line or
// an open-time range (see Selector). The reactor line of a window is the
// trailing character of its lot id.
package registry
