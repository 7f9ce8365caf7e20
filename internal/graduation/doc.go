// Package graduation decides when a bonding-curve token leaves the curve and
// executes the one-time hand-off to an external DEX pool.
//
// The lifecycle is Accumulating → Eligible → Graduated. Evaluate is a pure
// function of a curve snapshot, the thresholds and market data; StatusService
// adds caching and the market/oracle lookups. Orchestrator.Graduate performs:
//
//  1. return the recorded Event if one exists (idempotent success);
//  2. fresh evaluation, *NotEligibleError when thresholds are not met;
//  3. Allocator.Allocate of the final reserves;
//  4. PoolCreator.CreatePool under a timeout, without holding the token lock;
//  5. insert-only Event write, curve closed, watchers notified.
//
// Only step 4 has external side effects. Its failures are returned as
// *PoolCreationError and leave the token Eligible; IsRetryable tells callers
// which failures may be retried with the same inputs.
package graduation
