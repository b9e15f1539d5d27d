package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/genlock/internal/ir"
)

// GoldenBytes renders a scenario result as canonical JSON: the step trace
// followed by the final catalog and ledger. Tx ids and event hashes are
// left out so the file reads as behaviour, not bookkeeping.
func GoldenBytes(scenarioName string, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, ev := range result.Trace {
		m := map[string]any{
			"step":    ev.Step,
			"op":      ev.Op,
			"outcome": ev.Outcome,
			"seq":     ev.Seq,
		}
		if ev.Caller != "" {
			m["caller"] = ev.Caller
		}
		if ev.Reason != "" {
			m["reason"] = ev.Reason
		}
		trace[i] = m
	}

	return ir.MarshalCanonical(map[string]any{
		"scenario_name": scenarioName,
		"trace":         trace,
		"state":         stateToCanonical(result.Snapshot),
	})
}

func stateToCanonical(s ir.Snapshot) map[string]any {
	gens := make([]any, len(s.Generations))
	for i, g := range s.Generations {
		gens[i] = map[string]any{
			"id":           int64(g.ID),
			"name":         g.Name,
			"base_uri":     g.BaseURI,
			"price":        g.Price.String(),
			"prerequisite": int64(g.Prerequisite),
			"auto_unlock":  g.AutoUnlock,
			"enabled":      g.Enabled,
			"available":    g.Available,
			"unlocks":      int64(g.Unlocks),
			"activations":  int64(g.Activations),
		}
	}

	assets := make([]any, len(s.Assets))
	for i, a := range s.Assets {
		ids := a.UnlockedIDs()
		unlocked := make([]any, len(ids))
		for j, id := range ids {
			unlocked[j] = int64(id)
		}
		assets[i] = map[string]any{
			"id":       a.ID.String(),
			"active":   int64(a.Active),
			"unlocked": unlocked,
		}
	}

	return map[string]any{
		"default_base_uri": s.DefaultBaseURI,
		"generations":      gens,
		"assets":           assets,
	}
}

// RunWithGolden executes a scenario and compares the result against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := GoldenBytes(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
