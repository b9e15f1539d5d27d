package catalogspec

import (
	"context"
	"fmt"

	"github.com/roach88/genlock/internal/engine"
	"github.com/roach88/genlock/internal/ir"
)

// checkCaller administers the throwaway engine used by Check.
const checkCaller ir.Identity = "catalog-check"

// Apply configures a fresh engine (genesis only) from c, acting as caller.
// Genesis is renamed and enabled first, then each entry is added, enabled
// and made available in order. Engine rejections are returned wrapped with
// the entry they came from.
func Apply(ctx context.Context, eng *engine.Engine, caller ir.Identity, c *Catalog) error {
	if n := eng.GenerationCount(); n != 1 {
		return fmt.Errorf("apply catalog: engine already holds %d generations", n)
	}

	genesis, err := eng.Generation(ir.Genesis)
	if err != nil {
		return fmt.Errorf("apply catalog: %w", err)
	}
	if c.Genesis.Name != "" && ir.NormalizeName(c.Genesis.Name) != genesis.Name {
		if err := eng.SetGenerationName(ctx, caller, ir.Genesis, c.Genesis.Name); err != nil {
			return fmt.Errorf("apply catalog: genesis name: %w", err)
		}
	}
	if c.Genesis.BaseURI != "" {
		if err := eng.SetGenerationBaseURI(ctx, caller, ir.Genesis, c.Genesis.BaseURI); err != nil {
			return fmt.Errorf("apply catalog: genesis base uri: %w", err)
		}
	}
	if c.Genesis.Enabled && !genesis.Enabled {
		if err := eng.EnableGeneration(ctx, caller, ir.Genesis); err != nil {
			return fmt.Errorf("apply catalog: enable genesis: %w", err)
		}
	}
	if c.DefaultBaseURI != "" {
		if err := eng.SetDefaultBaseURI(ctx, caller, c.DefaultBaseURI); err != nil {
			return fmt.Errorf("apply catalog: default base uri: %w", err)
		}
	}

	for i, entry := range c.Generations {
		want := ir.GenerationID(i + 1)
		id, err := eng.AddGeneration(ctx, caller, entry.GenerationSpec)
		if err != nil {
			return fmt.Errorf("apply catalog: generation %d (%s): %w", want, entry.Name, err)
		}
		if id != want {
			return fmt.Errorf("apply catalog: generation %q got id %d, want %d", entry.Name, id, want)
		}
		if entry.Enabled {
			if err := eng.EnableGeneration(ctx, caller, id); err != nil {
				return fmt.Errorf("apply catalog: enable generation %d (%s): %w", id, entry.Name, err)
			}
		}
		if entry.Available && !entry.AutoUnlock {
			if err := eng.SetGenerationAvailability(ctx, caller, id, true); err != nil {
				return fmt.Errorf("apply catalog: generation %d (%s) availability: %w", id, entry.Name, err)
			}
		}
	}
	return nil
}

// Check applies c to a scratch in-memory engine, reporting the first engine
// rule the catalog would violate.
func Check(ctx context.Context, c *Catalog) error {
	eng := engine.New(
		engine.WithAuthorizer(engine.NewAdminSet(checkCaller)),
		engine.WithMaxGenerations(c.MaxGenerations),
	)
	return Apply(ctx, eng, checkCaller, c)
}
