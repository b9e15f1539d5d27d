package harness

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/genlock/internal/engine"
	"github.com/roach88/genlock/internal/ir"
	"github.com/roach88/genlock/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s", ev.Step, ev.Op, ev.Caller, ev.Outcome)
			if ev.Reason != "" {
				fmt.Fprintf(&buf, " (%s)", ev.Reason)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// AssertionContext carries what state assertions read from.
type AssertionContext struct {
	Ctx    context.Context
	Store  *store.Store
	Engine *engine.Engine
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertGenerationState:
			err = assertGenerationState(actx.Engine, a)
		case AssertAssetState:
			err = assertAssetState(actx.Engine, a)
		case AssertUnlocked:
			err = assertUnlocked(actx.Engine, a)
		case AssertEventCount:
			err = assertEventCount(result.Events, a)
		case AssertEventOrder:
			err = assertEventOrder(result.Events, a)
		case AssertReplay:
			err = assertReplay(actx, result.Events)
		case AssertInvariants:
			err = assertInvariants(actx.Engine)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			var ae *AssertionError
			if errors.As(err, &ae) {
				ae.Trace = result.Trace
			}
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// generationFields exposes a tier under the keys scenarios use.
func generationFields(g ir.Generation) map[string]interface{} {
	return map[string]interface{}{
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

func assertGenerationState(eng *engine.Engine, a Assertion) error {
	id := ir.GenerationID(*a.Generation)
	g, err := eng.Generation(id)
	if err != nil {
		return &AssertionError{
			Type:     AssertGenerationState,
			Expected: fmt.Sprintf("generation %d exists", id),
			Actual:   err.Error(),
		}
	}
	expect := a.Expect
	if p, ok := expect["price"]; ok {
		// Prices compare as decimal strings whether written bare or quoted.
		expect = make(map[string]interface{}, len(a.Expect))
		for k, v := range a.Expect {
			expect[k] = v
		}
		expect["price"] = fmt.Sprint(p)
	}
	return matchFields(AssertGenerationState, fmt.Sprintf("generation %d", id), generationFields(g), expect)
}

func assertAssetState(eng *engine.Engine, a Assertion) error {
	id := ir.AssetID(*a.Asset)
	actual := map[string]interface{}{"exists": false}

	if asset, err := eng.Asset(id); err == nil {
		actual["exists"] = true
		actual["active"] = int64(asset.Active)
		ids := asset.UnlockedIDs()
		unlocked := make([]interface{}, len(ids))
		for i, g := range ids {
			unlocked[i] = int64(g)
		}
		actual["unlocked"] = unlocked
		if uri, err := eng.GenerationBaseURI(id); err == nil {
			actual["base_uri"] = uri
		}
	}
	return matchFields(AssertAssetState, fmt.Sprintf("asset %d", id), actual, a.Expect)
}

func assertUnlocked(eng *engine.Engine, a Assertion) error {
	asset, gen := ir.AssetID(*a.Asset), ir.GenerationID(*a.Generation)
	want := a.Expect["unlocked"].(bool)

	got, err := eng.IsGenerationUnlocked(asset, gen)
	if err != nil {
		return &AssertionError{
			Type:     AssertUnlocked,
			Expected: fmt.Sprintf("unlocked(%d, %d) = %v", asset, gen, want),
			Actual:   err.Error(),
		}
	}
	if got != want {
		return &AssertionError{
			Type:     AssertUnlocked,
			Expected: fmt.Sprintf("unlocked(%d, %d) = %v", asset, gen, want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// assertEventCount counts journal events, optionally filtered by op and
// asset.
func assertEventCount(events []ir.Event, a Assertion) error {
	count := 0
	for _, ev := range events {
		if a.Op != "" && string(ev.Op) != a.Op {
			continue
		}
		if a.Asset != nil {
			id, ok := ev.AssetID()
			if !ok || uint64(id) != *a.Asset {
				continue
			}
		}
		count++
	}

	if count != a.Count {
		filter := "events"
		if a.Op != "" {
			filter = a.Op + " events"
		}
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s", a.Count, filter),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}

// assertEventOrder checks that the ops first appear in the journal in the
// given order. Intervening events are allowed.
func assertEventOrder(events []ir.Event, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range events {
		op := string(ev.Op)
		if _, seen := positions[op]; !seen {
			positions[op] = i + 1
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("all ops present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
			}
		}
	}
	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("ops in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
			}
		}
	}
	return nil
}

// assertReplay folds the stored journal into a fresh engine and restores
// another from the stored snapshot; both must hash equal to the live engine.
func assertReplay(actx *AssertionContext, events []ir.Event) error {
	live, err := actx.Engine.StateHash()
	if err != nil {
		return err
	}

	replayed, err := engine.Replay(actx.Ctx, events)
	if err != nil {
		return &AssertionError{Type: AssertReplay, Expected: "journal replays cleanly", Actual: err.Error()}
	}
	got, err := replayed.StateHash()
	if err != nil {
		return err
	}
	if got != live {
		return &AssertionError{Type: AssertReplay, Expected: "replayed state hash " + live, Actual: got}
	}

	snap, seq, err := actx.Store.LoadSnapshot(actx.Ctx)
	if err != nil {
		return err
	}
	restored, err := engine.Restore(snap, seq)
	if err != nil {
		return &AssertionError{Type: AssertReplay, Expected: "stored snapshot restores", Actual: err.Error()}
	}
	if got, err = restored.StateHash(); err != nil {
		return err
	}
	if got != live {
		return &AssertionError{Type: AssertReplay, Expected: "stored state hash " + live, Actual: got}
	}
	return nil
}

func assertInvariants(eng *engine.Engine) error {
	if err := eng.CheckInvariants(); err != nil {
		return &AssertionError{Type: AssertInvariants, Expected: "invariants hold", Actual: err.Error()}
	}
	return nil
}

// matchFields compares expected against actual with subset semantics.
func matchFields(kind, subject string, actual, expected map[string]interface{}) error {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		got, ok := actual[k]
		if !ok {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("%s.%s = %v", subject, k, expected[k]),
				Actual:   "field not present",
			}
		}
		if !valuesEqual(got, expected[k]) {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("%s.%s = %v", subject, k, expected[k]),
				Actual:   fmt.Sprintf("%v", got),
			}
		}
	}
	return nil
}

// valuesEqual compares values after normalizing YAML's numeric types.
func valuesEqual(actual, expected interface{}) bool {
	return reflect.DeepEqual(normalize(actual), normalize(expected))
}

func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	case ir.Amount:
		return val.String()
	default:
		return v
	}
}
