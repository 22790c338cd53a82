// Package flowrate computes a batch's transfer flow rate from the historian's
// batch tables.
//
// The batch log id is looked up from the external batch id, then the
// material-quantity row and the process-variable (elapsed time) row of the
// configured operation and phase are joined on it. The rate is quantity per
// minute.
package flowrate
