package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/roach88/genlock/internal/ir"
)

// # Replay
//
// The journal records only operations that were applied, each with the
// caller and arguments it was applied with. Replay folds those events, in
// seq order, into a fresh engine through the same public operations used
// at runtime. Authorization and ownership are granted unconditionally
// because every recorded event already passed them.
//
// Each re-applied event must reproduce the recorded event id (which covers
// seq, op, caller and args), so a journal that was edited, reordered or
// truncated in the middle fails verification. Comparing the replayed
// StateHash against the stored state then proves the state tables and the
// event log agree.

// ReplayError reports the journal event that could not be reproduced.
type ReplayError struct {
	Seq int64
	Op  ir.Op
	Err error
}

// Error implements the error interface.
func (e *ReplayError) Error() string {
	return fmt.Sprintf("replay seq %d (%s): %v", e.Seq, e.Op, e.Err)
}

// Unwrap returns the underlying failure.
func (e *ReplayError) Unwrap() error {
	return e.Err
}

// Replay rebuilds an engine from journal events. Options configure the
// rebuilt engine; authorization, ownership and journal options are
// overridden during the fold and restored afterwards.
func Replay(ctx context.Context, events []ir.Event, opts ...Option) (*Engine, error) {
	e := New(opts...)
	auth, owners, journal, excess := e.auth, e.owners, e.journal, e.excess

	p := &permissive{}
	e.auth, e.owners, e.journal, e.excess = p, p, nopJournal{}, ExcessRetain

	for _, ev := range events {
		p.caller = ev.Caller
		prev := e.Seq()
		if err := e.applyEvent(ctx, ev); err != nil {
			return nil, &ReplayError{Seq: ev.Seq, Op: ev.Op, Err: err}
		}
		got, ok := e.LastEvent()
		if !ok || got.Seq == prev {
			return nil, &ReplayError{Seq: ev.Seq, Op: ev.Op, Err: fmt.Errorf("event produced no state change")}
		}
		if got.Seq != ev.Seq {
			return nil, &ReplayError{Seq: ev.Seq, Op: ev.Op, Err: fmt.Errorf("seq mismatch: recorded %d, replayed %d", ev.Seq, got.Seq)}
		}
		if got.ID != ev.ID {
			return nil, &ReplayError{Seq: ev.Seq, Op: ev.Op, Err: fmt.Errorf("event id mismatch: recorded %s, replayed %s", ev.ID, got.ID)}
		}
	}

	e.auth, e.owners, e.journal, e.excess = auth, owners, journal, excess
	return e, nil
}

// applyEvent dispatches one journal event to the matching operation.
func (e *Engine) applyEvent(ctx context.Context, ev ir.Event) error {
	r := argReader{args: ev.Args}
	caller := ev.Caller

	var err error
	switch ev.Op {
	case ir.OpAddGeneration:
		spec := ir.GenerationSpec{
			Name:         r.str(ir.ArgName),
			BaseURI:      r.str(ir.ArgBaseURI),
			Price:        r.amount(ir.ArgPrice),
			Prerequisite: r.gen(ir.ArgPrerequisite),
			AutoUnlock:   r.bool(ir.ArgAutoUnlock),
		}
		want := r.gen(ir.ArgGeneration)
		if r.err != nil {
			return r.err
		}
		var id ir.GenerationID
		id, err = e.AddGeneration(ctx, caller, spec)
		if err == nil && id != want {
			err = fmt.Errorf("added generation %d, recorded %d", id, want)
		}
	case ir.OpRemoveGeneration:
		id := r.gen(ir.ArgGeneration)
		if r.err != nil {
			return r.err
		}
		err = e.RemoveGeneration(ctx, caller, id)
	case ir.OpEnableGeneration:
		id := r.gen(ir.ArgGeneration)
		if r.err != nil {
			return r.err
		}
		err = e.EnableGeneration(ctx, caller, id)
	case ir.OpDisableGeneration:
		id := r.gen(ir.ArgGeneration)
		if r.err != nil {
			return r.err
		}
		err = e.DisableGeneration(ctx, caller, id)
	case ir.OpSetGenerationName:
		id, name := r.gen(ir.ArgGeneration), r.str(ir.ArgName)
		if r.err != nil {
			return r.err
		}
		err = e.SetGenerationName(ctx, caller, id, name)
	case ir.OpSetGenerationBaseURI:
		id, uri := r.gen(ir.ArgGeneration), r.str(ir.ArgBaseURI)
		if r.err != nil {
			return r.err
		}
		err = e.SetGenerationBaseURI(ctx, caller, id, uri)
	case ir.OpSetGenerationPrice:
		id, price := r.gen(ir.ArgGeneration), r.amount(ir.ArgPrice)
		if r.err != nil {
			return r.err
		}
		err = e.SetGenerationPrice(ctx, caller, id, price)
	case ir.OpSetGenerationPrerequisite:
		id, prereq := r.gen(ir.ArgGeneration), r.gen(ir.ArgPrerequisite)
		if r.err != nil {
			return r.err
		}
		err = e.SetGenerationPrerequisite(ctx, caller, id, prereq)
	case ir.OpSetGenerationAvailability:
		id, available := r.gen(ir.ArgGeneration), r.bool(ir.ArgAvailable)
		if r.err != nil {
			return r.err
		}
		err = e.SetGenerationAvailability(ctx, caller, id, available)
	case ir.OpSetDefaultBaseURI:
		uri := r.str(ir.ArgBaseURI)
		if r.err != nil {
			return r.err
		}
		err = e.SetDefaultBaseURI(ctx, caller, uri)
	case ir.OpUnlockGeneration:
		asset, id, payment := r.asset(), r.gen(ir.ArgGeneration), r.amount(ir.ArgPayment)
		if r.err != nil {
			return r.err
		}
		_, err = e.UnlockGeneration(ctx, caller, asset, id, payment)
	case ir.OpActivateGeneration:
		asset, id := r.asset(), r.gen(ir.ArgGeneration)
		if r.err != nil {
			return r.err
		}
		err = e.ActivateGeneration(ctx, caller, asset, id)
	case ir.OpMint:
		asset := r.asset()
		if r.err != nil {
			return r.err
		}
		err = e.Mint(ctx, asset)
	case ir.OpBurn:
		asset := r.asset()
		if r.err != nil {
			return r.err
		}
		err = e.Burn(ctx, asset)
	default:
		return fmt.Errorf("unknown op %q", ev.Op)
	}
	return err
}

// argReader parses event arguments, keeping the first error.
type argReader struct {
	args map[string]string
	err  error
}

func (r *argReader) str(key string) string {
	v, ok := r.args[key]
	if !ok && r.err == nil {
		r.err = fmt.Errorf("missing argument %q", key)
	}
	return v
}

func (r *argReader) gen(key string) ir.GenerationID {
	raw := r.str(key)
	if r.err != nil {
		return 0
	}
	id, err := ir.ParseGenerationID(raw)
	if err != nil {
		r.err = err
	}
	return id
}

func (r *argReader) asset() ir.AssetID {
	raw := r.str(ir.ArgAsset)
	if r.err != nil {
		return 0
	}
	id, err := ir.ParseAssetID(raw)
	if err != nil {
		r.err = err
	}
	return id
}

func (r *argReader) amount(key string) ir.Amount {
	raw := r.str(key)
	if r.err != nil {
		return ir.Amount{}
	}
	a, err := ir.ParseAmount(raw)
	if err != nil {
		r.err = err
	}
	return a
}

func (r *argReader) bool(key string) bool {
	raw := r.str(key)
	if r.err != nil {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		r.err = fmt.Errorf("argument %q: %w", key, err)
	}
	return b
}
