package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/genlock/internal/ir"
)

func TestCatalog_AdministratorOnly(t *testing.T) {
	f := newFixture(t)
	paid, err := f.e.AddGeneration(f.ctx, admin, ir.GenerationSpec{Name: "Paid", Price: ir.NewAmount(1)})
	require.NoError(t, err)

	ops := map[string]func() error{
		"add": func() error {
			_, err := f.e.AddGeneration(f.ctx, alice, ir.GenerationSpec{Name: "X", Prerequisite: 2})
			return err
		},
		"remove":           func() error { return f.e.RemoveGeneration(f.ctx, alice, paid) },
		"enable":           func() error { return f.e.EnableGeneration(f.ctx, alice, paid) },
		"disable":          func() error { return f.e.DisableGeneration(f.ctx, alice, ir.Genesis) },
		"set name":         func() error { return f.e.SetGenerationName(f.ctx, alice, paid, "Y") },
		"set base uri":     func() error { return f.e.SetGenerationBaseURI(f.ctx, alice, paid, "ipfs://y/") },
		"set price":        func() error { return f.e.SetGenerationPrice(f.ctx, alice, paid, ir.NewAmount(2)) },
		"set prerequisite": func() error { return f.e.SetGenerationPrerequisite(f.ctx, alice, paid, ir.Genesis) },
		"set availability": func() error { return f.e.SetGenerationAvailability(f.ctx, alice, paid, true) },
		"set default uri":  func() error { return f.e.SetDefaultBaseURI(f.ctx, alice, "ipfs://d/") },
	}

	before := f.hash(t)
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			requireRejected(t, err, ErrNotAdministrator)
			assert.Equal(t, CategoryAuthorization, CategoryOf(err))
		})
	}
	assert.Equal(t, before, f.hash(t))
}

func TestAddGeneration_CreatesDisabledUnavailableTier(t *testing.T) {
	f := newFixture(t)

	id, err := f.e.AddGeneration(f.ctx, admin, ir.GenerationSpec{
		Name:         "Gen 1",
		BaseURI:      "ipfs://gen1/",
		Price:        ir.MustParseAmount("50000000000000000"),
		Prerequisite: ir.Genesis,
	})
	require.NoError(t, err)
	assert.Equal(t, ir.GenerationID(1), id)

	g := f.gen(t, id)
	assert.Equal(t, "Gen 1", g.Name)
	assert.Equal(t, "ipfs://gen1/", g.BaseURI)
	assert.Equal(t, "50000000000000000", g.Price.String())
	assert.Equal(t, ir.Genesis, g.Prerequisite)
	assert.False(t, g.AutoUnlock)
	assert.False(t, g.Enabled)
	assert.False(t, g.Available)
	assert.Zero(t, g.Unlocks)
	assert.Zero(t, g.Activations)
	assert.Equal(t, 2, f.e.GenerationCount())

	ev, ok := f.e.LastEvent()
	require.True(t, ok)
	assert.Equal(t, map[string]string{
		ir.ArgGeneration:   "1",
		ir.ArgName:         "Gen 1",
		ir.ArgBaseURI:      "ipfs://gen1/",
		ir.ArgPrice:        "50000000000000000",
		ir.ArgPrerequisite: "0",
		ir.ArgAutoUnlock:   "false",
	}, ev.Args)
}

func TestAddGeneration_AutoUnlockTierStartsDisabled(t *testing.T) {
	f := newFixture(t)

	id, err := f.e.AddGeneration(f.ctx, admin, ir.GenerationSpec{Name: "Auto", AutoUnlock: true})
	require.NoError(t, err)
	assert.False(t, f.gen(t, id).Enabled)
}

func TestAddGeneration_NormalizesName(t *testing.T) {
	f := newFixture(t)

	id, err := f.e.AddGeneration(f.ctx, admin, ir.GenerationSpec{Name: "Cafe\u0301", Prerequisite: 1})
	require.NoError(t, err)
	assert.Equal(t, "Caf\u00e9", f.gen(t, id).Name)
}

func TestAddGeneration_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.e.AddGeneration(f.ctx, admin, ir.GenerationSpec{Name: ""})
	requireRejected(t, err, ErrInvalidName)

	_, err = f.e.AddGeneration(f.ctx, admin, ir.GenerationSpec{Name: "Auto", Price: ir.NewAmount(1), AutoUnlock: true})
	requireRejected(t, err, ErrAutoUnlockPriced)
	assert.Equal(t, CategoryValidation, CategoryOf(err))

	assert.Equal(t, 1, f.e.GenerationCount())
}

func TestAddGeneration_PrerequisiteRule(t *testing.T) {
	// Catalog: 0 genesis (auto), 1 paid, 2 auto. The new tier gets id 3.
	tests := []struct {
		name   string
		prereq ir.GenerationID
		auto   bool
		ok     bool
	}{
		{"paid without prerequisite", 3, false, true},
		{"auto without prerequisite", 3, true, false},
		{"paid forward reference", 4, false, false},
		{"auto forward reference", 7, true, false},
		{"paid on genesis", 0, false, true},
		{"auto on genesis", 0, true, true},
		{"paid on paid", 1, false, true},
		{"auto on paid", 1, true, true},
		{"paid on non-genesis auto", 2, false, false},
		{"auto on non-genesis auto", 2, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addPaid(t, "Paid", 10, ir.Genesis)
			f.addAuto(t, "Auto", ir.Genesis)

			id, err := f.e.AddGeneration(f.ctx, admin, ir.GenerationSpec{
				Name:         "New",
				Prerequisite: tt.prereq,
				AutoUnlock:   tt.auto,
			})
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, ir.GenerationID(3), id)
				assert.Equal(t, tt.prereq, f.gen(t, id).Prerequisite)
				return
			}
			requireRejected(t, err, ErrInvalidPrerequisite)
			assert.Equal(t, 3, f.e.GenerationCount())
		})
	}
}

func TestAddGeneration_LimitReached(t *testing.T) {
	f := newFixture(t, WithMaxGenerations(2))

	_, err := f.e.AddGeneration(f.ctx, admin, ir.GenerationSpec{Name: "One", Prerequisite: 1})
	require.NoError(t, err)

	_, err = f.e.AddGeneration(f.ctx, admin, ir.GenerationSpec{Name: "Two", Prerequisite: 2})
	requireRejected(t, err, ErrGenerationLimitReached)
}

func TestRemoveGeneration(t *testing.T) {
	f := newFixture(t)
	one := f.addPaid(t, "One", 1, ir.Genesis)
	two, err := f.e.AddGeneration(f.ctx, admin, ir.GenerationSpec{Name: "Two", Prerequisite: one})
	require.NoError(t, err)

	requireRejected(t, f.e.RemoveGeneration(f.ctx, admin, 9), ErrInvalidGeneration)
	requireRejected(t, f.e.RemoveGeneration(f.ctx, admin, ir.Genesis), ErrGenesisRemoval)

	// A lower id fails whether or not it is enabled.
	requireRejected(t, f.e.RemoveGeneration(f.ctx, admin, one), ErrNotTail)
	require.NoError(t, f.e.DisableGeneration(f.ctx, admin, one))
	requireRejected(t, f.e.RemoveGeneration(f.ctx, admin, one), ErrNotTail)

	require.NoError(t, f.e.RemoveGeneration(f.ctx, admin, two))
	assert.Equal(t, 2, f.e.GenerationCount())
	_, err = f.e.Generation(two)
	assert.ErrorIs(t, err, ErrInvalidGeneration)

	require.NoError(t, f.e.RemoveGeneration(f.ctx, admin, one))
	assert.Equal(t, 1, f.e.GenerationCount())
}

func TestRemoveGeneration_TailMustBeDisabled(t *testing.T) {
	f := newFixture(t)
	id := f.addPaid(t, "Paid", 1, ir.Genesis)

	requireRejected(t, f.e.RemoveGeneration(f.ctx, admin, id), ErrMustBeDisabled)
	require.NoError(t, f.e.DisableGeneration(f.ctx, admin, id))
	require.NoError(t, f.e.RemoveGeneration(f.ctx, admin, id))
}

func TestRemoveGeneration_IdsAreReused(t *testing.T) {
	f := newFixture(t)
	id, err := f.e.AddGeneration(f.ctx, admin, ir.GenerationSpec{Name: "First", Prerequisite: 1})
	require.NoError(t, err)
	require.NoError(t, f.e.RemoveGeneration(f.ctx, admin, id))

	again, err := f.e.AddGeneration(f.ctx, admin, ir.GenerationSpec{Name: "Second", Prerequisite: 1})
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, "Second", f.gen(t, again).Name)
}

func TestEnableGeneration(t *testing.T) {
	f := newFixture(t)
	one, err := f.e.AddGeneration(f.ctx, admin, ir.GenerationSpec{Name: "One", Prerequisite: 1})
	require.NoError(t, err)
	two, err := f.e.AddGeneration(f.ctx, admin, ir.GenerationSpec{Name: "Two", Prerequisite: one})
	require.NoError(t, err)

	requireRejected(t, f.e.EnableGeneration(f.ctx, admin, 5), ErrInvalidGeneration)
	requireRejected(t, f.e.EnableGeneration(f.ctx, admin, two), ErrPrerequisiteDisabled)

	require.NoError(t, f.e.EnableGeneration(f.ctx, admin, one))
	requireRejected(t, f.e.EnableGeneration(f.ctx, admin, one), ErrMustBeDisabled)
	require.NoError(t, f.e.EnableGeneration(f.ctx, admin, two))
	assert.True(t, f.gen(t, two).Enabled)
}

func TestEnableGeneration_AutoTierNeedsGenesisEnabled(t *testing.T) {
	ctx := context.Background()
	e := New(WithAuthorizer(NewAdminSet(admin)))

	id, err := e.AddGeneration(ctx, admin, ir.GenerationSpec{Name: "Auto", AutoUnlock: true})
	require.NoError(t, err)

	requireRejected(t, e.EnableGeneration(ctx, admin, id), ErrPrerequisiteDisabled)
	require.NoError(t, e.EnableGeneration(ctx, admin, ir.Genesis))
	require.NoError(t, e.EnableGeneration(ctx, admin, id))
}

func TestDisableGeneration(t *testing.T) {
	f := newFixture(t)
	paid := f.addPaid(t, "Paid", 5, ir.Genesis)
	f.mint(t, 1, alice)

	requireRejected(t, f.e.DisableGeneration(f.ctx, admin, 3), ErrInvalidGeneration)

	// Genesis is active for asset 1.
	requireRejected(t, f.e.DisableGeneration(f.ctx, admin, ir.Genesis), ErrActivelyUsed)

	_, err := f.e.UnlockGeneration(f.ctx, alice, 1, paid, ir.NewAmount(5))
	require.NoError(t, err)
	requireRejected(t, f.e.DisableGeneration(f.ctx, admin, paid), ErrHasUnlocks)

	require.NoError(t, f.e.Burn(f.ctx, 1))
	require.NoError(t, f.e.DisableGeneration(f.ctx, admin, paid))
	requireRejected(t, f.e.DisableGeneration(f.ctx, admin, paid), ErrMustBeEnabled)
	require.NoError(t, f.e.DisableGeneration(f.ctx, admin, ir.Genesis))
}

func TestDisableGeneration_AutoTierReleasedByActivatingAway(t *testing.T) {
	f := newFixture(t)
	auto := f.addAuto(t, "Auto", ir.Genesis)
	f.mint(t, 99, alice)
	require.NoError(t, f.e.ActivateGeneration(f.ctx, alice, 99, auto))

	err := f.e.DisableGeneration(f.ctx, admin, auto)
	requireRejected(t, err, ErrActivelyUsed)
	assert.Equal(t, "generation is actively used", RejectionReason(err))

	require.NoError(t, f.e.ActivateGeneration(f.ctx, alice, 99, ir.Genesis))
	assert.Zero(t, f.gen(t, auto).Activations)
	require.NoError(t, f.e.DisableGeneration(f.ctx, admin, auto))
}

func TestSetGenerationName(t *testing.T) {
	f := newFixture(t)
	id := f.addPaid(t, "Paid", 1, ir.Genesis)

	requireRejected(t, f.e.SetGenerationName(f.ctx, admin, 7, "X"), ErrInvalidGeneration)
	requireRejected(t, f.e.SetGenerationName(f.ctx, admin, id, "Renamed"), ErrMustBeDisabled)

	require.NoError(t, f.e.DisableGeneration(f.ctx, admin, id))
	requireRejected(t, f.e.SetGenerationName(f.ctx, admin, id, ""), ErrInvalidName)
	require.NoError(t, f.e.SetGenerationName(f.ctx, admin, id, "Renamed"))
	assert.Equal(t, "Renamed", f.gen(t, id).Name)
}

func TestSetGenerationBaseURI_AnyState(t *testing.T) {
	f := newFixture(t)
	id := f.addPaid(t, "Paid", 1, ir.Genesis)

	require.NoError(t, f.e.SetGenerationBaseURI(f.ctx, admin, id, "ipfs://revealed/"))
	assert.Equal(t, "ipfs://revealed/", f.gen(t, id).BaseURI)

	require.NoError(t, f.e.SetGenerationBaseURI(f.ctx, admin, id, ""))
	assert.Empty(t, f.gen(t, id).BaseURI)

	requireRejected(t, f.e.SetGenerationBaseURI(f.ctx, admin, 4, "x"), ErrInvalidGeneration)
}

func TestSetGenerationPrice(t *testing.T) {
	f := newFixture(t)
	paid := f.addPaid(t, "Paid", 1, ir.Genesis)
	auto, err := f.e.AddGeneration(f.ctx, admin, ir.GenerationSpec{Name: "Auto", AutoUnlock: true})
	require.NoError(t, err)

	requireRejected(t, f.e.SetGenerationPrice(f.ctx, admin, paid, ir.NewAmount(2)), ErrMustBeDisabled)
	requireRejected(t, f.e.SetGenerationPrice(f.ctx, admin, auto, ir.NewAmount(2)), ErrAutoUnlockMustBeFree)
	requireRejected(t, f.e.SetGenerationPrice(f.ctx, admin, auto, ir.NewAmount(0)), ErrAutoUnlockMustBeFree)

	require.NoError(t, f.e.DisableGeneration(f.ctx, admin, paid))
	require.NoError(t, f.e.SetGenerationPrice(f.ctx, admin, paid, ir.NewAmount(2)))
	assert.Equal(t, "2", f.gen(t, paid).Price.String())
}

func TestSetGenerationPrerequisite(t *testing.T) {
	f := newFixture(t)
	one := f.addPaid(t, "One", 1, ir.Genesis)
	two, err := f.e.AddGeneration(f.ctx, admin, ir.GenerationSpec{Name: "Two", Prerequisite: 2})
	require.NoError(t, err)
	three, err := f.e.AddGeneration(f.ctx, admin, ir.GenerationSpec{Name: "Three", Prerequisite: 3})
	require.NoError(t, err)

	requireRejected(t, f.e.SetGenerationPrerequisite(f.ctx, admin, one, ir.Genesis), ErrMustBeDisabled)
	requireRejected(t, f.e.SetGenerationPrerequisite(f.ctx, admin, two, three), ErrInvalidPrerequisite)
	requireRejected(t, f.e.SetGenerationPrerequisite(f.ctx, admin, two, 9), ErrInvalidPrerequisite)

	// Tier two is disabled, so it cannot anchor tier three.
	requireRejected(t, f.e.SetGenerationPrerequisite(f.ctx, admin, three, two), ErrPrerequisiteDisabled)

	require.NoError(t, f.e.SetGenerationPrerequisite(f.ctx, admin, three, one))
	assert.Equal(t, one, f.gen(t, three).Prerequisite)

	require.NoError(t, f.e.SetGenerationPrerequisite(f.ctx, admin, three, three))
	assert.False(t, f.gen(t, three).HasPrerequisite())
}

func TestSetGenerationPrerequisite_DisabledGenesisIsAccepted(t *testing.T) {
	f := newFixture(t)
	id, err := f.e.AddGeneration(f.ctx, admin, ir.GenerationSpec{Name: "Paid", Prerequisite: 1})
	require.NoError(t, err)
	require.NoError(t, f.e.DisableGeneration(f.ctx, admin, ir.Genesis))

	require.NoError(t, f.e.SetGenerationPrerequisite(f.ctx, admin, id, ir.Genesis))
	assert.Equal(t, ir.Genesis, f.gen(t, id).Prerequisite)
}

func TestSetGenerationPrerequisite_AutoTierRules(t *testing.T) {
	f := newFixture(t)
	paid := f.addPaid(t, "Paid", 1, ir.Genesis)
	other := f.addAuto(t, "Other Auto", ir.Genesis)
	auto, err := f.e.AddGeneration(f.ctx, admin, ir.GenerationSpec{Name: "Auto", AutoUnlock: true})
	require.NoError(t, err)

	requireRejected(t, f.e.SetGenerationPrerequisite(f.ctx, admin, auto, auto), ErrInvalidPrerequisite)
	requireRejected(t, f.e.SetGenerationPrerequisite(f.ctx, admin, auto, other), ErrInvalidPrerequisite)
	require.NoError(t, f.e.SetGenerationPrerequisite(f.ctx, admin, auto, paid))

	// Genesis can never be re-pointed.
	require.NoError(t, f.e.DisableGeneration(f.ctx, admin, ir.Genesis))
	requireRejected(t, f.e.SetGenerationPrerequisite(f.ctx, admin, ir.Genesis, ir.Genesis), ErrInvalidPrerequisite)
}

func TestSetGenerationAvailability(t *testing.T) {
	f := newFixture(t)
	id := f.addPaid(t, "Paid", 1, ir.Genesis)
	assert.True(t, f.gen(t, id).Available)

	require.NoError(t, f.e.SetGenerationAvailability(f.ctx, admin, id, false))
	assert.False(t, f.gen(t, id).Available)
	assert.True(t, f.gen(t, id).Enabled, "availability does not touch enabled")

	requireRejected(t, f.e.SetGenerationAvailability(f.ctx, admin, 8, true), ErrInvalidGeneration)
}

func TestSetDefaultBaseURI(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.e.SetDefaultBaseURI(f.ctx, admin, "ipfs://hidden/"))
	assert.Equal(t, "ipfs://hidden/", f.e.DefaultBaseURI())
}
