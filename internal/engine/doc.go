// Package engine implements the genlock tier engine.
//
// The engine owns three pieces of state:
//
//   - the generation catalog, an ordered list of tiers curated by
//     administrators (GenerationCatalog)
//   - the per-asset unlock bit-set (UnlockLedger)
//   - the per-asset active tier (ActivationLedger)
//
// Mint and Burn (LifecycleHooks) are driven by the asset substrate and keep
// the aggregate Unlocks/Activations counters in step with the ledgers.
//
// WRITE PATH:
//
// Every operation runs validate, journal, publish under a single write lock:
//  1. Validate preconditions against the in-memory state. A failure returns
//     a *RejectionError and nothing is written.
//  2. Build an ir.Mutation holding full replacement rows and the event.
//  3. Journal.Apply persists it atomically. A failure discards it.
//  4. publish installs the rows in memory.
//
// So the engine and its journal never disagree, and a rejected or failed
// operation leaves no trace.
//
// CRITICAL PATTERNS:
//
// Logical clock: events are stamped from a monotonic seq counter, never
// from wall-clock time.
//
// Single reachability rule: isUnlocked(asset, g) = g.AutoUnlock || bit(g).
// Unlock and activation both use it.
//
// Backward-only prerequisites: an edge may only target a lower id (or the
// tier itself, meaning none), so the prerequisite graph is a DAG without a
// cycle check.
package engine
