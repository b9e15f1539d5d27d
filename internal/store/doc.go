// Package store provides SQLite-backed durable storage for genlock.
//
// The store holds two views of the same history:
//   - State tables: generations, assets, settings (current values)
//   - Events: the append-only journal of every applied operation
//
// Both are written by Apply in a single transaction, so they never
// disagree. Replaying the events from an empty engine must reproduce the
// state tables; the replay command checks exactly that.
//
// The owners table is the asset substrate's ownership registry. It is not
// part of engine state and is not journaled.
//
// # Critical Patterns
//
// Logical time:
//   - Event ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - Apply refuses any event whose seq is not exactly last+1
//
// Deterministic reads:
//   - Events are read ORDER BY seq ASC
//   - Assets are returned ascending by numeric id
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
