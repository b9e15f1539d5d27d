package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/genlock/internal/ir"
)

// DefaultMaxGenerations bounds the catalog size. It matches the width of a
// 256-bit unlock word; the per-asset bit-set itself is unbounded.
const DefaultMaxGenerations = 256

// GenesisName is the name the genesis tier is created with.
const GenesisName = "Genesis"

// Journal durably records a mutation before the engine publishes it.
// If Apply returns an error the engine discards the mutation, so Apply must
// be all-or-nothing.
type Journal interface {
	Apply(ctx context.Context, m *ir.Mutation) error
}

// Authorizer answers whether a caller may curate the catalog.
type Authorizer interface {
	IsAdministrator(id ir.Identity) bool
}

// OwnershipOracle reports the current holder of an asset. An unowned asset
// is reported as the empty identity with a nil error; errors are reserved
// for lookup failures.
type OwnershipOracle interface {
	OwnerOf(ctx context.Context, asset ir.AssetID) (ir.Identity, error)
}

// Observer is notified after every operation outcome.
type Observer interface {
	Applied(op ir.Op)
	Rejected(op ir.Op, category Category)
}

// Engine holds the generation catalog and the per-asset unlock and
// activation ledgers.
//
// Thread-safety model:
//   - mutating operations take the write lock for their whole
//     read-validate-journal-publish sequence (single writer)
//   - readers take the read lock and return detached copies
//
// INVARIANTS:
//   - generations[0] exists and is auto-unlock
//   - generations[i].ID == i
//   - generations[i].Prerequisite <= i
//   - Unlocks and Activations equal the number of live assets holding the
//     bit or active on the tier
type Engine struct {
	mu             sync.RWMutex
	generations    []ir.Generation
	assets         map[ir.AssetID]ir.Asset
	defaultBaseURI string
	last           *ir.Event

	journal        Journal
	auth           Authorizer
	owners         OwnershipOracle
	observer       Observer
	clock          SeqClock
	txGen          TxIDGenerator
	logger         *slog.Logger
	excess         ExcessPolicy
	maxGenerations int
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal sets the durable journal. Default: no persistence.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithAuthorizer sets the administrator capability check.
// Default: nobody is an administrator.
func WithAuthorizer(a Authorizer) Option {
	return func(e *Engine) { e.auth = a }
}

// WithOwnership sets the asset ownership oracle.
// Default: every asset is unowned.
func WithOwnership(o OwnershipOracle) Option {
	return func(e *Engine) { e.owners = o }
}

// WithObserver sets the outcome observer (metrics).
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithClock sets the logical clock.
func WithClock(c SeqClock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithTxIDGenerator sets the transaction id generator.
// Default: UUIDv7Generator.
func WithTxIDGenerator(g TxIDGenerator) Option {
	return func(e *Engine) { e.txGen = g }
}

// WithLogger sets the structured logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithExcessPolicy sets how overpayment is treated. Default: ExcessRetain.
func WithExcessPolicy(p ExcessPolicy) Option {
	return func(e *Engine) { e.excess = p }
}

// WithMaxGenerations bounds the catalog size. Values below 1 are ignored.
func WithMaxGenerations(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.maxGenerations = n
		}
	}
}

// New creates an engine whose catalog holds only the genesis tier.
//
// Genesis is auto-unlock, free and disabled. Enabling it is an explicit
// administrator step like every other tier.
func New(opts ...Option) *Engine {
	e := newEngine(opts)
	e.generations = []ir.Generation{{
		ID:           ir.Genesis,
		Name:         GenesisName,
		Prerequisite: ir.Genesis,
		AutoUnlock:   true,
	}}
	return e
}

// Restore creates an engine from a stored snapshot whose last journal event
// has sequence number seq. The snapshot is checked against the catalog and
// counter invariants before the engine is returned.
func Restore(snap ir.Snapshot, seq int64, opts ...Option) (*Engine, error) {
	e := newEngine(opts)
	if e.clock.Current() < seq {
		e.clock = NewClockAt(seq)
	}

	e.generations = slices.Clone(snap.Generations)
	for _, a := range snap.Assets {
		if _, dup := e.assets[a.ID]; dup {
			return nil, fmt.Errorf("restore: duplicate asset %s", a.ID)
		}
		e.assets[a.ID] = a.Clone()
	}
	e.defaultBaseURI = snap.DefaultBaseURI

	if err := e.checkInvariants(); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	return e, nil
}

func newEngine(opts []Option) *Engine {
	e := &Engine{
		assets:         make(map[ir.AssetID]ir.Asset),
		journal:        nopJournal{},
		auth:           AdminSet{},
		owners:         OwnerMap{},
		observer:       nopObserver{},
		clock:          NewClock(),
		txGen:          UUIDv7Generator{},
		logger:         slog.New(slog.DiscardHandler),
		excess:         ExcessRetain,
		maxGenerations: DefaultMaxGenerations,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// commit journals the mutation and then publishes it to memory.
// Caller must hold the write lock and must have finished validation.
func (e *Engine) commit(ctx context.Context, op ir.Op, caller ir.Identity, args map[string]string, m *ir.Mutation) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	seq := e.clock.Current() + 1
	id, err := ir.EventID(seq, op, caller, args)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	m.Event = ir.Event{
		Seq:    seq,
		ID:     id,
		TxID:   e.txGen.Generate(),
		Op:     op,
		Caller: caller,
		Args:   args,
	}

	if err := e.journal.Apply(ctx, m); err != nil {
		e.logger.Error("journal write failed",
			"op", op,
			"seq", seq,
			"tx", m.Event.TxID,
			"error", err,
		)
		return fmt.Errorf("journal %s: %w", op, err)
	}

	e.clock.Next()
	e.publish(m)

	e.logger.Debug("operation applied",
		"op", op,
		"seq", seq,
		"caller", caller,
		"tx", m.Event.TxID,
	)
	e.observer.Applied(op)
	return nil
}

// publish installs a journaled mutation in memory.
func (e *Engine) publish(m *ir.Mutation) {
	for _, id := range m.RemovedGenerations {
		if int(id) == len(e.generations)-1 {
			e.generations = e.generations[:id]
		}
	}
	for _, g := range m.Generations {
		if int(g.ID) == len(e.generations) {
			e.generations = append(e.generations, g)
			continue
		}
		e.generations[g.ID] = g
	}
	for _, a := range m.Assets {
		e.assets[a.ID] = a.Clone()
	}
	for _, id := range m.BurnedAssets {
		delete(e.assets, id)
	}
	if m.DefaultBaseURI != nil {
		e.defaultBaseURI = *m.DefaultBaseURI
	}
	ev := m.Event
	e.last = &ev
}

// reject logs and counts a rejection and returns it.
func (e *Engine) reject(op ir.Op, caller ir.Identity, r *Reason) error {
	e.logger.Info("operation rejected",
		"op", op,
		"caller", caller,
		"reason", r.message,
		"category", r.category,
	)
	e.observer.Rejected(op, r.category)
	return reject(op, r)
}

// generation returns a copy of the tier at id. Caller must hold a lock.
func (e *Engine) generation(id ir.GenerationID) (ir.Generation, bool) {
	if int(id) >= len(e.generations) {
		return ir.Generation{}, false
	}
	return e.generations[id], true
}

// isUnlocked is the single reachability predicate shared by unlock and
// activation: auto-unlock tiers are always unlocked, others need their bit.
func isUnlocked(a ir.Asset, g ir.Generation) bool {
	return g.AutoUnlock || a.HasBit(g.ID)
}

// checkInvariants verifies catalog shape and recomputes every counter from
// the asset ledger. Caller must hold a lock.
func (e *Engine) checkInvariants() error {
	if len(e.generations) == 0 {
		return fmt.Errorf("catalog has no genesis generation")
	}
	if len(e.generations) > e.maxGenerations {
		return fmt.Errorf("catalog holds %d generations, limit is %d", len(e.generations), e.maxGenerations)
	}
	if !e.generations[0].AutoUnlock {
		return fmt.Errorf("genesis generation must be auto-unlock")
	}

	unlocks := make([]uint64, len(e.generations))
	activations := make([]uint64, len(e.generations))
	for i, g := range e.generations {
		if int(g.ID) != i {
			return fmt.Errorf("generation at position %d has id %d", i, g.ID)
		}
		if g.Prerequisite > g.ID {
			return fmt.Errorf("generation %d has forward prerequisite %d", g.ID, g.Prerequisite)
		}
	}
	for _, a := range e.assets {
		if !a.HasBit(ir.Genesis) {
			return fmt.Errorf("asset %s lost its genesis bit", a.ID)
		}
		for _, id := range a.UnlockedIDs() {
			if int(id) >= len(e.generations) {
				return fmt.Errorf("asset %s holds unknown generation %d", a.ID, id)
			}
			unlocks[id]++
		}
		if int(a.Active) >= len(e.generations) {
			return fmt.Errorf("asset %s is active on unknown generation %d", a.ID, a.Active)
		}
		activations[a.Active]++
	}
	for i, g := range e.generations {
		if g.Unlocks != unlocks[i] {
			return fmt.Errorf("generation %d unlocks = %d, ledger holds %d", i, g.Unlocks, unlocks[i])
		}
		if g.Activations != activations[i] {
			return fmt.Errorf("generation %d activations = %d, ledger holds %d", i, g.Activations, activations[i])
		}
	}
	return nil
}

// CheckInvariants verifies that the catalog is well formed and that every
// counter equals the number of live assets it summarizes.
func (e *Engine) CheckInvariants() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.checkInvariants()
}

type nopJournal struct{}

func (nopJournal) Apply(context.Context, *ir.Mutation) error { return nil }

type nopObserver struct{}

func (nopObserver) Applied(ir.Op)            {}
func (nopObserver) Rejected(ir.Op, Category) {}
