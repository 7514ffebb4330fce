// Package trade executes swaps for a user: lock, quote, build, sign,
// simulate, submit, confirm, then collect the optional service fee.
//
// An Engine never retries a failed step. A second concurrent trade for the
// same user is rejected with domain.ErrOperationInProgress rather than
// queued, and the lock is released on every path.
package trade
