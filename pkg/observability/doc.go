/*
Package observability exposes FlashSol's Prometheus metrics.

Trades are counted by direction and outcome and timed end to end. Lock
contention, fee transfers, quote re-fetches, flow inputs and session store
operations have their own series. All methods are safe on a nil *Metrics,
so components can be built without instrumentation.
*/
package observability
