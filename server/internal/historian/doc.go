// Package historian acquires data from the plant historian without ever
// failing callers because the historian is down.
//
// Manager owns the single cached connection. Acquire dials on every call
// until one attempt succeeds; only success is cached. A failed attempt
// returns the Simulator for that call alone, so real data returns as soon
// as the historian does, with no manual reset.
//
// Simulator fabricates plausible readings (pH 7.0 ± 0.25, TCC 0.5 ± 0.05)
// marked Quality=Synthetic, so consumers never special-case missing data.
//
// Client issues the time-bounded, tag-filtered queries: Latest and Range.
// Every history query uses cyclic retrieval resampled to CycleCount points,
// the extended quality rule and the latest version. Range results are sorted
// ascending and drop the extra boundary sample cyclic retrieval may return.
package historian
