package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return s
}

func TestRun_TraceOutcomes(t *testing.T) {
	s := parse(t, `
name: outcomes
description: applied, noop and rejected steps
administrators: [admin]
steps:
  - {op: enable_generation, as: admin, generation: 0}
  - {op: mint, asset: 1, owner: alice}
  - {op: activate_generation, as: alice, asset: 1, generation: 0, expect: {noop: true}}
  - {op: disable_generation, as: mallory, generation: 0, expect: {error: caller is not an administrator}}
  - {op: transfer, asset: 1, owner: bob}
assertions:
  - {type: invariants}
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 5)
	assert.Equal(t, OutcomeApplied, result.Trace[0].Outcome)
	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, OutcomeApplied, result.Trace[1].Outcome)
	assert.Equal(t, int64(2), result.Trace[1].Seq)
	assert.Equal(t, OutcomeNoop, result.Trace[2].Outcome)
	assert.Equal(t, int64(2), result.Trace[2].Seq)
	assert.Equal(t, OutcomeRejected, result.Trace[3].Outcome)
	assert.Equal(t, "caller is not an administrator", result.Trace[3].Reason)
	assert.Equal(t, OutcomeExternal, result.Trace[4].Outcome)

	assert.Len(t, result.Events, 2)
	require.Len(t, result.Snapshot.Assets, 1)
}

func TestRun_UnexpectedRejectionFails(t *testing.T) {
	s := parse(t, `
name: unexpected
description: a rejected step without an expectation
steps:
  - {op: enable_generation, as: nobody, generation: 0}
assertions:
  - {type: invariants}
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `unexpected rejection "caller is not an administrator"`)
}

func TestRun_WrongRejectionReasonFails(t *testing.T) {
	s := parse(t, `
name: wrong_reason
description: rejection with a different reason
administrators: [admin]
steps:
  - {op: enable_generation, as: admin, generation: 7, expect: {error: generation must be disabled}}
assertions:
  - {type: invariants}
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `got "invalid generation"`)
}

func TestRun_ExpectedRejectionThatSucceedsFails(t *testing.T) {
	s := parse(t, `
name: should_reject
description: expected rejection but the step applies
administrators: [admin]
steps:
  - {op: enable_generation, as: admin, generation: 0, expect: {error: generation must be disabled}}
assertions:
  - {type: invariants}
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "got applied")
}

func TestRun_ExpectedIDAndRefund(t *testing.T) {
	s := parse(t, `
name: id_refund
description: add_generation id and refund checks
administrators: [admin]
excess: refund
steps:
  - {op: enable_generation, as: admin, generation: 0}
  - {op: add_generation, as: admin, name: Gold, price: 10, expect: {id: 2}}
  - {op: enable_generation, as: admin, generation: 1}
  - {op: set_generation_availability, as: admin, generation: 1, available: true}
  - {op: mint, asset: 5, owner: alice}
  - {op: unlock_generation, as: alice, asset: 5, generation: 1, payment: 15, expect: {refund: 4}}
assertions:
  - {type: invariants}
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected id 2")
	assert.Contains(t, result.Errors[1], "expected refund 4, got 5")
}

func TestRun_AssertionFailureIncludesTrace(t *testing.T) {
	s := parse(t, `
name: failing_assertion
description: a false assertion
administrators: [admin]
steps:
  - {op: enable_generation, as: admin, generation: 0}
assertions:
  - {type: event_count, count: 3}
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertions[0]")
	assert.Contains(t, result.Errors[0], "Full trace:")
	assert.Contains(t, result.Errors[0], "enable_generation admin -> applied")
}

func TestRun_CatalogApplied(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.cue"), []byte(`
default_base_uri: "ipfs://default/"
generations: [
	{},
	{name: "Gold", price: 5},
]
`), 0o644))
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: catalog
description: catalog applied before steps
administrators: [admin]
catalog: c.cue
steps:
  - {op: mint, asset: 1, owner: alice}
assertions:
  - type: generation_state
    generation: 1
    expect: {name: Gold, price: 5, enabled: true, available: true}
  - {type: replay}
`), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "ipfs://default/", result.Snapshot.DefaultBaseURI)
	assert.Len(t, result.Snapshot.Generations, 2)
}

func TestRun_BadCatalogIsInfrastructureError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.cue"), []byte(`generations: [{}, {name: ""}]`), 0o644))

	s := parse(t, `
name: bad_catalog
description: catalog violates the schema
administrators: [admin]
catalog: c.cue
steps:
  - {op: mint, asset: 1}
assertions:
  - {type: invariants}
`)
	s.Catalog = filepath.Join(dir, "c.cue")

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load catalog")
}

func TestRun_TransferCannotBeRejected(t *testing.T) {
	s := parse(t, `
name: transfer_expect
description: transfer with an error expectation
steps:
  - {op: transfer, asset: 1, owner: bob, expect: {error: nope}}
assertions:
  - {type: invariants}
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "transfer cannot be rejected")
}
