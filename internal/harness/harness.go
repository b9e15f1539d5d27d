package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/genlock/internal/catalogspec"
	"github.com/roach88/genlock/internal/engine"
	"github.com/roach88/genlock/internal/ir"
	"github.com/roach88/genlock/internal/store"
	"github.com/roach88/genlock/internal/testutil"
)

// Harness drives one scenario against a fresh engine and store.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *testutil.DeterministicClock
	txGen  *testutil.FixedTxGenerator
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Rejections and outcome
// mismatches are reported in the result; the returned error is reserved for
// infrastructure failures (store, catalog loading).
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.Initialize(ctx, engine.New().Snapshot()); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	policy := engine.ExcessRetain
	if scenario.Excess != "" {
		if policy, err = engine.ParseExcessPolicy(scenario.Excess); err != nil {
			return nil, err
		}
	}

	h := &Harness{
		store:  st,
		clock:  testutil.NewDeterministicClock(),
		txGen:  testutil.NewFixedTxGenerator(scenario.Name),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	h.engine = engine.New(
		engine.WithJournal(st),
		engine.WithOwnership(st),
		engine.WithAuthorizer(engine.NewAdminSet(scenario.Administrators...)),
		engine.WithClock(h.clock),
		engine.WithTxIDGenerator(h.txGen),
		engine.WithExcessPolicy(policy),
		engine.WithLogger(h.logger),
	)

	if scenario.Catalog != "" {
		c, err := catalogspec.Load(scenario.Catalog)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		if err := catalogspec.Apply(ctx, h.engine, scenario.Administrators[0], c); err != nil {
			return nil, fmt.Errorf("failed to apply catalog: %w", err)
		}
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	result.Snapshot = h.engine.Snapshot()
	if result.Events, err = st.ReadEvents(ctx); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	actx := &AssertionContext{Ctx: ctx, Store: st, Engine: h.engine}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// executeStep runs one step, records it in the trace and checks its
// expectation. Only infrastructure failures are returned.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	before := h.engine.Seq()
	caller := ir.Identity(step.As)
	asset := ir.AssetID(step.Asset)
	gen := ir.GenerationID(step.Generation)

	var (
		err     error
		addedID *ir.GenerationID
		receipt *engine.UnlockReceipt
	)

	switch step.Op {
	case OpTransfer:
		if err := h.store.SetOwner(ctx, asset, ir.Identity(step.Owner)); err != nil {
			return err
		}
		result.AddTrace(TraceEvent{Step: index, Op: step.Op, Outcome: OutcomeExternal, Seq: before})
		if step.Expect != nil && (step.Expect.Error != "" || step.Expect.Noop) {
			result.AddError(fmt.Sprintf("step %d: transfer cannot be rejected or a no-op", index))
		}
		return nil
	}

	switch ir.Op(step.Op) {
	case ir.OpAddGeneration:
		var id ir.GenerationID
		id, err = h.engine.AddGeneration(ctx, caller, ir.GenerationSpec{
			Name:         step.Name,
			BaseURI:      step.BaseURI,
			Price:        step.Price,
			Prerequisite: ir.GenerationID(step.Prerequisite),
			AutoUnlock:   step.AutoUnlock,
		})
		if err == nil {
			addedID = &id
		}
	case ir.OpRemoveGeneration:
		err = h.engine.RemoveGeneration(ctx, caller, gen)
	case ir.OpEnableGeneration:
		err = h.engine.EnableGeneration(ctx, caller, gen)
	case ir.OpDisableGeneration:
		err = h.engine.DisableGeneration(ctx, caller, gen)
	case ir.OpSetGenerationName:
		err = h.engine.SetGenerationName(ctx, caller, gen, step.Name)
	case ir.OpSetGenerationBaseURI:
		err = h.engine.SetGenerationBaseURI(ctx, caller, gen, step.BaseURI)
	case ir.OpSetGenerationPrice:
		err = h.engine.SetGenerationPrice(ctx, caller, gen, step.Price)
	case ir.OpSetGenerationPrerequisite:
		err = h.engine.SetGenerationPrerequisite(ctx, caller, gen, ir.GenerationID(step.Prerequisite))
	case ir.OpSetGenerationAvailability:
		err = h.engine.SetGenerationAvailability(ctx, caller, gen, step.Available)
	case ir.OpSetDefaultBaseURI:
		err = h.engine.SetDefaultBaseURI(ctx, caller, step.BaseURI)
	case ir.OpUnlockGeneration:
		var r engine.UnlockReceipt
		r, err = h.engine.UnlockGeneration(ctx, caller, asset, gen, step.Payment)
		if err == nil {
			receipt = &r
		}
	case ir.OpActivateGeneration:
		err = h.engine.ActivateGeneration(ctx, caller, asset, gen)
	case ir.OpMint:
		err = h.engine.Mint(ctx, asset)
		if err == nil && step.Owner != "" {
			if err := h.store.SetOwner(ctx, asset, ir.Identity(step.Owner)); err != nil {
				return err
			}
		}
	case ir.OpBurn:
		err = h.engine.Burn(ctx, asset)
		if err == nil {
			if err := h.store.DeleteOwner(ctx, asset); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	if err != nil && !engine.IsRejection(err) {
		return err
	}

	ev := TraceEvent{Step: index, Op: step.Op, Caller: step.As, Seq: h.engine.Seq()}
	switch {
	case err != nil:
		ev.Outcome = OutcomeRejected
		ev.Reason = engine.RejectionReason(err)
	case ev.Seq == before:
		ev.Outcome = OutcomeNoop
	default:
		ev.Outcome = OutcomeApplied
	}
	result.AddTrace(ev)

	checkExpect(index, step, ev, addedID, receipt, result)
	return nil
}

func checkExpect(index int, step Step, ev TraceEvent, addedID *ir.GenerationID, receipt *engine.UnlockReceipt, result *Result) {
	want := step.Expect
	if want == nil {
		want = &Expect{}
	}

	switch {
	case want.Error != "":
		if ev.Outcome != OutcomeRejected {
			result.AddError(fmt.Sprintf("step %d (%s): expected rejection %q, got %s", index, step.Op, want.Error, ev.Outcome))
		} else if ev.Reason != want.Error {
			result.AddError(fmt.Sprintf("step %d (%s): expected rejection %q, got %q", index, step.Op, want.Error, ev.Reason))
		}
		return
	case ev.Outcome == OutcomeRejected:
		result.AddError(fmt.Sprintf("step %d (%s): unexpected rejection %q", index, step.Op, ev.Reason))
		return
	case want.Noop && ev.Outcome != OutcomeNoop:
		result.AddError(fmt.Sprintf("step %d (%s): expected no-op, got %s", index, step.Op, ev.Outcome))
	}

	if want.ID != nil && (addedID == nil || uint32(*addedID) != *want.ID) {
		result.AddError(fmt.Sprintf("step %d (%s): expected id %d, got %v", index, step.Op, *want.ID, addedID))
	}
	if want.Refund != nil {
		switch {
		case receipt == nil:
			result.AddError(fmt.Sprintf("step %d (%s): refund expected but no receipt", index, step.Op))
		case receipt.Refund.Cmp(*want.Refund) != 0:
			result.AddError(fmt.Sprintf("step %d (%s): expected refund %s, got %s", index, step.Op, want.Refund, receipt.Refund))
		}
	}
}
