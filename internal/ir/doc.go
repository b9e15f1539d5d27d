// Package ir provides the shared domain types for genlock.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// generation and asset records the foundational layer with no circular
// dependencies between the engine and its journal.
//
// Key design constraints:
//   - Generation ids are dense indexes into the catalog (0..N-1)
//   - Monetary amounts are arbitrary precision and never negative
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps
package ir
