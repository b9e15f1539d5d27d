package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/genlock/internal/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string // SQLite path
	As       string // caller identity for mutating commands
	Excess   string // overpayment policy override; empty uses the stored setting
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// DefaultDatabase is used when --db is not given.
const DefaultDatabase = "genlock.db"

// NewRootCommand creates the root command for the genlock CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "genlock",
		Short: "genlock - tiered generation unlocks for assets",
		Long: `genlock curates an ordered catalog of generations (tiers) and tracks,
per asset, which tiers are unlocked and which one is active.

State lives in a SQLite database: the current catalog and ledger plus an
append-only journal of every applied operation.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Excess != "" {
				if _, err := engine.ParseExcessPolicy(opts.Excess); err != nil {
					return err
				}
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", DefaultDatabase, "path to SQLite database")
	cmd.PersistentFlags().StringVar(&opts.As, "as", "", "caller identity")
	cmd.PersistentFlags().StringVar(&opts.Excess, "excess", "", "overpayment policy (retain|refund|reject)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewGenerationCommand(opts))
	cmd.AddCommand(NewMintCommand(opts))
	cmd.AddCommand(NewBurnCommand(opts))
	cmd.AddCommand(NewTransferCommand(opts))
	cmd.AddCommand(NewUnlockCommand(opts))
	cmd.AddCommand(NewActivateCommand(opts))
	cmd.AddCommand(NewAssetCommand(opts))
	cmd.AddCommand(NewURICommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
