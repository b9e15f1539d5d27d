package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/genlock/internal/catalogspec"
	"github.com/roach88/genlock/internal/engine"
	"github.com/roach88/genlock/internal/ir"
	"github.com/roach88/genlock/internal/store"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Admins         []string
	MaxGenerations int
}

// InitResult is the JSON payload of init.
type InitResult struct {
	Database       string        `json:"database"`
	Administrators []ir.Identity `json:"administrators"`
	MaxGenerations int           `json:"max_generations"`
	Generations    int           `json:"generations"`
	Seq            int64         `json:"seq"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init [catalog]",
		Short: "Create a database, optionally from a CUE catalog",
		Long: `Create and seed a database with the genesis generation.

When a catalog (a .cue file or a directory of them) is given it is
validated first and then applied through the engine, so every catalog
change is journaled like any other administrator operation. Administrators
come from --admin and from the catalog's administrators list.

Examples:
  genlock init --db ./genlock.db --admin ops
  genlock init --db ./genlock.db ./catalog.cue
  genlock init --db ./genlock.db ./catalog/ --excess refund`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := ""
			if len(args) == 1 {
				catalog = args[0]
			}
			return runInit(cmd.Context(), opts, catalog, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Admins, "admin", nil, "administrator identity (repeatable)")
	cmd.Flags().IntVar(&opts.MaxGenerations, "max-generations", 0, "catalog size limit (default from catalog, else 256)")

	return cmd
}

func runInit(ctx context.Context, opts *InitOptions, catalogPath string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	var catalog *catalogspec.Catalog
	if catalogPath != "" {
		c, err := catalogspec.Load(catalogPath)
		if err != nil {
			return catalogError(formatter, err)
		}
		if err := catalogspec.Check(ctx, c); err != nil {
			return catalogError(formatter, err)
		}
		catalog = c
	}

	admins := make([]ir.Identity, 0, len(opts.Admins))
	for _, a := range opts.Admins {
		admins = append(admins, ir.Identity(a))
	}
	limit := engine.DefaultMaxGenerations
	if catalog != nil {
		admins = append(admins, catalog.Administrators...)
		limit = catalog.MaxGenerations
	}
	if opts.MaxGenerations > 0 {
		limit = opts.MaxGenerations
	}
	slices.Sort(admins)
	admins = slices.Compact(admins)

	applier := ir.Identity(opts.As)
	if catalog != nil {
		if len(admins) == 0 {
			return NewExitError(ExitCommandError, "a catalog needs at least one administrator (--admin or administrators:)")
		}
		if applier == "" {
			applier = admins[0]
		}
		if !slices.Contains(admins, applier) {
			return NewExitError(ExitCommandError, fmt.Sprintf("%s is not an administrator", applier))
		}
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if err := st.Initialize(ctx, engine.New().Snapshot()); err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize database", err)
	}
	if err := st.SetAdministrators(ctx, admins); err != nil {
		return WrapExitError(ExitCommandError, "failed to store administrators", err)
	}
	if err := st.SetMaxGenerations(ctx, limit); err != nil {
		return WrapExitError(ExitCommandError, "failed to store settings", err)
	}
	if opts.Excess != "" {
		if err := st.SetSetting(ctx, store.SettingExcessPolicy, opts.Excess); err != nil {
			return WrapExitError(ExitCommandError, "failed to store settings", err)
		}
	}

	s, err := restoreSession(ctx, st, opts.RootOptions)
	if err != nil {
		return err
	}
	if catalog != nil {
		if err := catalogspec.Apply(ctx, s.engine, applier, catalog); err != nil {
			return WrapExitError(ExitCommandError, "failed to apply catalog", err)
		}
	}

	result := InitResult{
		Database:       opts.Database,
		Administrators: admins,
		MaxGenerations: limit,
		Generations:    s.engine.GenerationCount(),
		Seq:            s.engine.Seq(),
	}
	return formatter.Render(result, result.Seq, func(w io.Writer) {
		fmt.Fprintf(w, "Initialized %s: %d generation(s), %d administrator(s), seq %d\n",
			result.Database, result.Generations, len(result.Administrators), result.Seq)
	})
}

// catalogError reports a catalog load or check failure with its code.
func catalogError(f *OutputFormatter, err error) error {
	var le *catalogspec.LoadError
	if errors.As(err, &le) {
		var details interface{}
		if le.Pos.IsValid() {
			details = map[string]interface{}{
				"file":   le.Pos.Filename(),
				"line":   le.Pos.Line(),
				"column": le.Pos.Column(),
			}
		}
		if outErr := f.Error(le.Code, le.Message, details); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "invalid catalog", err)
	}
	if outErr := f.Error(CodeRejected, err.Error(), nil); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitFailure, "invalid catalog", err)
}
