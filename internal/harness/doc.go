// Package harness runs YAML scenarios against a real engine backed by an
// in-memory SQLite store.
//
// A scenario lists steps (engine operations plus the external mint, burn
// and transfer notifications), the expected outcome of each step and
// assertions over the final state and the journal:
//
//	name: paid_unlock
//	description: Unlock a priced tier and activate it
//	administrators: [admin]
//	steps:
//	  - {op: enable_generation, as: admin, generation: 0}
//	  - {op: mint, asset: 99, owner: alice}
//	  - op: unlock_generation
//	    as: alice
//	    asset: 99
//	    generation: 1
//	    payment: 41
//	    expect: {error: insufficient funds}
//	assertions:
//	  - {type: replay}
//
// Every run uses a deterministic clock and tx-id generator, so the trace
// and final state can be compared byte-for-byte against golden files.
package harness
