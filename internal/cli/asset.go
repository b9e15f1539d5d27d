package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/genlock/internal/ir"
)

// AssetView is the JSON shape of an asset.
type AssetView struct {
	ID       string            `json:"id"`
	Owner    ir.Identity       `json:"owner"`
	Active   ir.GenerationID   `json:"active"`
	Unlocked []ir.GenerationID `json:"unlocked"`
	BaseURI  string            `json:"base_uri"`
}

// NewMintCommand creates the mint command. Mint stands in for the asset
// substrate's mint notification, so it takes no --as.
func NewMintCommand(rootOpts *RootOptions) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "mint <asset>",
		Short: "Register a newly minted asset",
		Long: `Register a newly minted asset: genesis is unlocked and active.

--owner records the holder in the owner registry, which activate consults.
The owner is written before the mint is journaled; if the mint is then
rejected the owner row is removed again, and an already minted asset keeps
its current holder.

Example:
  genlock mint 42 --owner alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := parseAssetArg(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				err := mintWithOwner(ctx, s, asset, ir.Identity(owner))
				var exitErr *ExitError
				if errors.As(err, &exitErr) {
					return exitErr
				}
				data := map[string]interface{}{"asset": asset.String(), "owner": owner}
				return s.report(newFormatter(rootOpts, cmd), err, data, fmt.Sprintf("Minted asset %s", asset))
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "initial holder")
	return cmd
}

// NewBurnCommand creates the burn command.
func NewBurnCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "burn <asset>",
		Short:         "Remove a burned asset and release its unlocks",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := parseAssetArg(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				err := s.engine.Burn(ctx, asset)
				if err == nil {
					if err := s.store.DeleteOwner(ctx, asset); err != nil {
						return WrapExitError(ExitCommandError, "failed to clear owner", err)
					}
				}
				data := map[string]interface{}{"asset": asset.String()}
				return s.report(newFormatter(rootOpts, cmd), err, data, fmt.Sprintf("Burned asset %s", asset))
			})
		},
	}
}

// NewTransferCommand moves an asset in the owner registry. Transfers are
// not engine operations and are not journaled.
func NewTransferCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "transfer <asset> <owner>",
		Short:         "Record a new holder for an asset",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := parseAssetArg(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if _, err := s.engine.Asset(asset); err != nil {
					return NewExitError(ExitFailure, err.Error())
				}
				if err := s.store.SetOwner(ctx, asset, ir.Identity(args[1])); err != nil {
					return WrapExitError(ExitCommandError, "failed to record owner", err)
				}
				data := map[string]interface{}{"asset": asset.String(), "owner": args[1]}
				return s.report(newFormatter(rootOpts, cmd), nil, data, fmt.Sprintf("Asset %s now held by %s", asset, args[1]))
			})
		},
	}
}

// NewUnlockCommand creates the unlock command.
func NewUnlockCommand(rootOpts *RootOptions) *cobra.Command {
	var payment string

	cmd := &cobra.Command{
		Use:   "unlock <asset> <generation>",
		Short: "Unlock a paid generation for an asset",
		Long: `Unlock a paid generation for an asset. Any caller may pay; the
payment must cover the price. What happens to an overpayment depends on the
excess policy (retain, refund or reject).

Example:
  genlock unlock 42 1 --as bob --payment 100`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := parseAssetArg(args[0])
			if err != nil {
				return err
			}
			gen, err := parseGenerationArg(args[1])
			if err != nil {
				return err
			}
			paid, err := parseAmountArg(payment)
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				caller, err := s.caller(rootOpts)
				if err != nil {
					return err
				}
				receipt, err := s.engine.UnlockGeneration(ctx, caller, asset, gen, paid)
				text := fmt.Sprintf("Unlocked generation %d for asset %s: price %s, paid %s, refund %s",
					gen, asset, receipt.Price, receipt.Paid, receipt.Refund)
				return s.report(newFormatter(rootOpts, cmd), err, receipt, text)
			})
		},
	}

	cmd.Flags().StringVar(&payment, "payment", "0", "amount paid in base units")
	return cmd
}

// NewActivateCommand creates the activate command.
func NewActivateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "activate <asset> <generation>",
		Short:         "Make an unlocked generation the asset's active one",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := parseAssetArg(args[0])
			if err != nil {
				return err
			}
			gen, err := parseGenerationArg(args[1])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				caller, err := s.caller(rootOpts)
				if err != nil {
					return err
				}
				err = s.engine.ActivateGeneration(ctx, caller, asset, gen)
				data := map[string]interface{}{"asset": asset.String(), "active": gen}
				return s.report(newFormatter(rootOpts, cmd), err, data,
					fmt.Sprintf("Asset %s active generation %d", asset, gen))
			})
		},
	}
}

// NewAssetCommand creates the asset command.
func NewAssetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "asset <asset>",
		Short:         "Show an asset's unlocks, active generation and owner",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAssetArg(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				view, err := assetView(ctx, s, id)
				if err != nil {
					return err
				}
				return newFormatter(rootOpts, cmd).Render(view, s.engine.Seq(), func(w io.Writer) {
					owner := string(view.Owner)
					if owner == "" {
						owner = "-"
					}
					fmt.Fprintf(w, "Asset %s\n", view.ID)
					fmt.Fprintf(w, "  owner:    %s\n", owner)
					fmt.Fprintf(w, "  active:   %d\n", view.Active)
					fmt.Fprintf(w, "  unlocked: %v\n", view.Unlocked)
					fmt.Fprintf(w, "  base uri: %s\n", view.BaseURI)
				})
			})
		},
	}
}

// NewURICommand creates the uri command.
func NewURICommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "uri <asset>",
		Short:         "Print the base URI for an asset's active generation",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAssetArg(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				uri, err := s.engine.GenerationBaseURI(id)
				if err != nil {
					return NewExitError(ExitFailure, err.Error())
				}
				data := map[string]interface{}{"asset": id.String(), "base_uri": uri}
				return newFormatter(rootOpts, cmd).Render(data, s.engine.Seq(), func(w io.Writer) {
					fmt.Fprintln(w, uri)
				})
			})
		},
	}
}

// mintWithOwner records the holder before journaling the mint, so a failed
// owner write never leaves an unowned asset behind. A rejected or failed
// mint removes the owner row again.
func mintWithOwner(ctx context.Context, s *session, asset ir.AssetID, owner ir.Identity) error {
	if owner == "" {
		return s.engine.Mint(ctx, asset)
	}
	if _, err := s.engine.Asset(asset); err == nil {
		// Already minted: let the engine reject it without touching the
		// current holder.
		return s.engine.Mint(ctx, asset)
	}
	if err := s.store.SetOwner(ctx, asset, owner); err != nil {
		return WrapExitError(ExitCommandError, "failed to record owner", err)
	}
	if err := s.engine.Mint(ctx, asset); err != nil {
		if derr := s.store.DeleteOwner(ctx, asset); derr != nil {
			s.logger.Error("owner rollback failed", "asset", asset, "error", derr)
		}
		return err
	}
	return nil
}

func assetView(ctx context.Context, s *session, id ir.AssetID) (AssetView, error) {
	a, err := s.engine.Asset(id)
	if err != nil {
		return AssetView{}, NewExitError(ExitFailure, err.Error())
	}
	uri, err := s.engine.GenerationBaseURI(id)
	if err != nil {
		return AssetView{}, NewExitError(ExitFailure, err.Error())
	}
	owner, err := s.store.OwnerOf(ctx, id)
	if err != nil {
		return AssetView{}, WrapExitError(ExitCommandError, "failed to read owner", err)
	}
	return AssetView{
		ID:       id.String(),
		Owner:    owner,
		Active:   a.Active,
		Unlocked: a.UnlockedIDs(),
		BaseURI:  uri,
	}, nil
}
