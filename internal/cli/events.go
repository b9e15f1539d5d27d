package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/genlock/internal/ir"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Asset string // only events touching this asset
	Op    string // only events of this op
	Tail  int    // last N events; 0 means all
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the operation journal",
		Long: `Print the journal of applied operations in seq order.

Examples:
  genlock events
  genlock events --asset 42
  genlock events --op unlock_generation --tail 10 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				events, err := readEvents(ctx, s, opts)
				if err != nil {
					return err
				}
				return newFormatter(rootOpts, cmd).Render(events, s.engine.Seq(), func(w io.Writer) {
					writeEventTable(w, events, opts.Verbose)
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Asset, "asset", "", "only events touching this asset")
	cmd.Flags().StringVar(&opts.Op, "op", "", "only events of this operation")
	cmd.Flags().IntVar(&opts.Tail, "tail", 0, "only the last N events")

	return cmd
}

func readEvents(ctx context.Context, s *session, opts *EventsOptions) ([]ir.Event, error) {
	var (
		events []ir.Event
		err    error
	)
	if opts.Asset != "" {
		id, perr := parseAssetArg(opts.Asset)
		if perr != nil {
			return nil, perr
		}
		events, err = s.store.ReadAssetEvents(ctx, id)
	} else {
		events, err = s.store.ReadEvents(ctx)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if opts.Op != "" {
		filtered := events[:0]
		for _, ev := range events {
			if string(ev.Op) == opts.Op {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}
	if opts.Tail > 0 && len(events) > opts.Tail {
		events = events[len(events)-opts.Tail:]
	}
	return events, nil
}

func writeEventTable(w io.Writer, events []ir.Event, verbose bool) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := "SEQ\tOP\tCALLER\tARGS"
	if verbose {
		header += "\tTX\tID"
	}
	fmt.Fprintln(tw, header)
	for _, ev := range events {
		caller := string(ev.Caller)
		if caller == "" {
			caller = "-"
		}
		line := fmt.Sprintf("%d\t%s\t%s\t%s", ev.Seq, ev.Op, caller, formatArgs(ev.Args))
		if verbose {
			line += fmt.Sprintf("\t%s\t%s", ev.TxID, ev.ID[:min(12, len(ev.ID))])
		}
		fmt.Fprintln(tw, line)
	}
	tw.Flush()
}

// formatArgs renders args as sorted key=value pairs.
func formatArgs(args map[string]string) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + args[k]
	}
	return strings.Join(parts, " ")
}
