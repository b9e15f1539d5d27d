package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/genlock/internal/ir"
)

// NewGenerationCommand groups the catalog commands.
func NewGenerationCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "generation",
		Aliases: []string{"gen"},
		Short:   "Inspect and curate the generation catalog",
		Long: `Inspect and curate the generation catalog.

Mutating subcommands need --as naming an administrator. Rejected
operations exit with code 1 and leave the database unchanged.`,
	}

	cmd.AddCommand(newGenerationAddCommand(rootOpts))
	cmd.AddCommand(generationIDCommand(rootOpts, "remove", "Remove the most recently added generation",
		func(ctx context.Context, s *session, caller ir.Identity, id ir.GenerationID) error {
			return s.engine.RemoveGeneration(ctx, caller, id)
		}))
	cmd.AddCommand(generationIDCommand(rootOpts, "enable", "Enable a generation",
		func(ctx context.Context, s *session, caller ir.Identity, id ir.GenerationID) error {
			return s.engine.EnableGeneration(ctx, caller, id)
		}))
	cmd.AddCommand(generationIDCommand(rootOpts, "disable", "Disable a generation",
		func(ctx context.Context, s *session, caller ir.Identity, id ir.GenerationID) error {
			return s.engine.DisableGeneration(ctx, caller, id)
		}))
	cmd.AddCommand(generationSetCommand(rootOpts, "set-name", "<id> <name>", "Rename a disabled generation",
		func(ctx context.Context, s *session, caller ir.Identity, id ir.GenerationID, value string) error {
			return s.engine.SetGenerationName(ctx, caller, id, value)
		}))
	cmd.AddCommand(generationSetCommand(rootOpts, "set-base-uri", "<id> <uri>", "Change a generation's base URI",
		func(ctx context.Context, s *session, caller ir.Identity, id ir.GenerationID, value string) error {
			return s.engine.SetGenerationBaseURI(ctx, caller, id, value)
		}))
	cmd.AddCommand(generationSetCommand(rootOpts, "set-price", "<id> <amount>", "Reprice a disabled generation",
		func(ctx context.Context, s *session, caller ir.Identity, id ir.GenerationID, value string) error {
			price, err := parseAmountArg(value)
			if err != nil {
				return err
			}
			return s.engine.SetGenerationPrice(ctx, caller, id, price)
		}))
	cmd.AddCommand(generationSetCommand(rootOpts, "set-prerequisite", "<id> <prerequisite>", "Change a disabled generation's prerequisite",
		func(ctx context.Context, s *session, caller ir.Identity, id ir.GenerationID, value string) error {
			prereq, err := parseGenerationArg(value)
			if err != nil {
				return err
			}
			return s.engine.SetGenerationPrerequisite(ctx, caller, id, prereq)
		}))
	cmd.AddCommand(generationSetCommand(rootOpts, "set-availability", "<id> <true|false>", "Open or close a generation for purchase",
		func(ctx context.Context, s *session, caller ir.Identity, id ir.GenerationID, value string) error {
			available, err := strconv.ParseBool(value)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid availability", err)
			}
			return s.engine.SetGenerationAvailability(ctx, caller, id, available)
		}))
	cmd.AddCommand(newSetDefaultBaseURICommand(rootOpts))
	cmd.AddCommand(newGenerationListCommand(rootOpts))
	cmd.AddCommand(newGenerationShowCommand(rootOpts))

	return cmd
}

// AddOptions holds flags for generation add.
type AddOptions struct {
	*RootOptions
	Name         string
	BaseURI      string
	Price        string
	Prerequisite uint32
	AutoUnlock   bool
}

func newGenerationAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a new (disabled, unavailable) generation",
		Long: `Append a new generation to the catalog. It starts disabled and
unavailable; enable it and open it for purchase separately.

Examples:
  genlock generation add --as ops --name Gold --price 100
  genlock generation add --as ops --name Aura --auto-unlock --prerequisite 1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := parseAmountArg(opts.Price)
			if err != nil {
				return err
			}
			spec := ir.GenerationSpec{
				Name:         opts.Name,
				BaseURI:      opts.BaseURI,
				Price:        price,
				Prerequisite: ir.GenerationID(opts.Prerequisite),
				AutoUnlock:   opts.AutoUnlock,
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				caller, err := s.caller(rootOpts)
				if err != nil {
					return err
				}
				id, err := s.engine.AddGeneration(ctx, caller, spec)
				data := map[string]interface{}{"id": id}
				return s.report(newFormatter(rootOpts, cmd), err, data, fmt.Sprintf("Added generation %d", id))
			})
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "generation name")
	cmd.Flags().StringVar(&opts.BaseURI, "base-uri", "", "base URI for assets running this generation")
	cmd.Flags().StringVar(&opts.Price, "price", "0", "unlock price in base units")
	cmd.Flags().Uint32Var(&opts.Prerequisite, "prerequisite", 0, "generation that must be unlocked first")
	cmd.Flags().BoolVar(&opts.AutoUnlock, "auto-unlock", false, "unlocked for every asset without payment")

	return cmd
}

func generationIDCommand(rootOpts *RootOptions, use, short string,
	apply func(ctx context.Context, s *session, caller ir.Identity, id ir.GenerationID) error,
) *cobra.Command {
	return &cobra.Command{
		Use:           use + " <id>",
		Short:         short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseGenerationArg(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				caller, err := s.caller(rootOpts)
				if err != nil {
					return err
				}
				err = apply(ctx, s, caller, id)
				data := map[string]interface{}{"id": id}
				return s.report(newFormatter(rootOpts, cmd), err, data, fmt.Sprintf("%s generation %d", use, id))
			})
		},
	}
}

func generationSetCommand(rootOpts *RootOptions, use, argsUse, short string,
	apply func(ctx context.Context, s *session, caller ir.Identity, id ir.GenerationID, value string) error,
) *cobra.Command {
	return &cobra.Command{
		Use:           use + " " + argsUse,
		Short:         short,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseGenerationArg(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				caller, err := s.caller(rootOpts)
				if err != nil {
					return err
				}
				err = apply(ctx, s, caller, id, args[1])
				if exitErr := asExitError(err); exitErr != nil {
					return exitErr
				}
				data := map[string]interface{}{"id": id, "value": args[1]}
				return s.report(newFormatter(rootOpts, cmd), err, data, fmt.Sprintf("%s %d = %s", use, id, args[1]))
			})
		},
	}
}

func newSetDefaultBaseURICommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "set-default-base-uri <uri>",
		Short:         "Change the URI used when the active generation has none",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				caller, err := s.caller(rootOpts)
				if err != nil {
					return err
				}
				err = s.engine.SetDefaultBaseURI(ctx, caller, args[0])
				data := map[string]interface{}{"default_base_uri": args[0]}
				return s.report(newFormatter(rootOpts, cmd), err, data, "Default base URI = "+args[0])
			})
		},
	}
}

func newGenerationListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List the catalog",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				gens := s.engine.Generations()
				return newFormatter(rootOpts, cmd).Render(gens, s.engine.Seq(), func(w io.Writer) {
					writeGenerationTable(w, gens)
				})
			})
		},
	}
}

func newGenerationShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <id>",
		Short:         "Show one generation",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseGenerationArg(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				g, err := s.engine.Generation(id)
				if err != nil {
					return NewExitError(ExitFailure, err.Error())
				}
				return newFormatter(rootOpts, cmd).Render(g, s.engine.Seq(), func(w io.Writer) {
					writeGenerationTable(w, []ir.Generation{g})
				})
			})
		},
	}
}

func writeGenerationTable(w io.Writer, gens []ir.Generation) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tPREREQ\tAUTO\tENABLED\tAVAILABLE\tUNLOCKS\tACTIVE\tBASE URI")
	for _, g := range gens {
		prereq := "-"
		if g.HasPrerequisite() {
			prereq = g.Prerequisite.String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\t%t\t%t\t%d\t%d\t%s\n",
			g.ID, g.Name, g.Price, prereq, g.AutoUnlock, g.Enabled, g.Available,
			g.Unlocks, g.Activations, g.BaseURI)
	}
	tw.Flush()
}

// asExitError returns err if it is already an ExitError (argument parsing
// inside an apply callback), else nil.
func asExitError(err error) error {
	if exitErr, ok := err.(*ExitError); ok {
		return exitErr
	}
	return nil
}
