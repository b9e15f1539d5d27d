package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/genlock/internal/engine"
	"github.com/roach88/genlock/internal/ir"
	"github.com/roach88/genlock/internal/metrics"
	"github.com/roach88/genlock/internal/store"
)

// session is an open database with an engine restored from it.
type session struct {
	store    *store.Store
	engine   *engine.Engine
	admins   []ir.Identity
	logger   *slog.Logger
	registry *prometheus.Registry // operation counters and catalog gauges
}

// newLogger writes to stderr; --verbose lowers the level to debug.
func newLogger(opts *RootOptions) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openSession opens the database and restores the engine from its stored
// snapshot. The journal, owner registry and administrator set all come from
// the same database. Extra options (such as an observer) are applied last.
func openSession(ctx context.Context, opts *RootOptions, extra ...engine.Option) (*session, error) {
	if opts.Database != ":memory:" {
		if _, err := os.Stat(opts.Database); errors.Is(err, os.ErrNotExist) {
			return nil, NewExitError(ExitCommandError,
				fmt.Sprintf("database not found: %s (run genlock init)", opts.Database))
		}
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	s, err := restoreSession(ctx, st, opts, extra...)
	if err != nil {
		st.Close()
		return nil, err
	}
	return s, nil
}

func restoreSession(ctx context.Context, st *store.Store, opts *RootOptions, extra ...engine.Option) (*session, error) {
	logger := newLogger(opts)
	registry := prometheus.NewRegistry()

	snap, seq, err := st.LoadSnapshot(ctx)
	if errors.Is(err, store.ErrNotInitialized) {
		return nil, WrapExitError(ExitCommandError, "database not initialized (run genlock init)", err)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load state", err)
	}

	admins, err := st.Administrators(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load administrators", err)
	}
	limit, err := st.MaxGenerations(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load settings", err)
	}
	policy, err := excessPolicy(ctx, st, opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load settings", err)
	}

	engineOpts := []engine.Option{
		engine.WithJournal(st),
		engine.WithOwnership(st),
		engine.WithAuthorizer(engine.NewAdminSet(admins...)),
		engine.WithExcessPolicy(policy),
		engine.WithMaxGenerations(limit),
		engine.WithLogger(logger),
		engine.WithObserver(metrics.NewObserver(registry)),
	}
	eng, err := engine.Restore(snap, seq, append(engineOpts, extra...)...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "stored state is inconsistent", err)
	}
	if err := registry.Register(metrics.NewCollector(eng)); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to register metrics", err)
	}
	logger.Debug("session restored", "db", opts.Database, "seq", seq, "generations", len(snap.Generations))

	return &session{store: st, engine: eng, admins: admins, logger: logger, registry: registry}, nil
}

// excessPolicy resolves the overpayment policy: the --excess flag wins over
// the stored setting, which wins over the engine default.
func excessPolicy(ctx context.Context, st *store.Store, opts *RootOptions) (engine.ExcessPolicy, error) {
	raw := opts.Excess
	if raw == "" {
		stored, ok, err := st.Setting(ctx, store.SettingExcessPolicy)
		if err != nil {
			return "", err
		}
		if !ok {
			return engine.ExcessRetain, nil
		}
		raw = stored
	}
	return engine.ParseExcessPolicy(raw)
}

func (s *session) Close() error {
	return s.store.Close()
}

// caller returns the --as identity, failing when a command needs one.
func (s *session) caller(opts *RootOptions) (ir.Identity, error) {
	if opts.As == "" {
		return "", NewExitError(ExitCommandError, "--as is required for this command")
	}
	return ir.Identity(opts.As), nil
}

// withSession opens the database for one command and closes it afterwards.
func withSession(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

// report renders the outcome of a mutating command. A rejection is printed
// and turned into exit code 1; state is unchanged in that case.
func (s *session) report(f *OutputFormatter, err error, data interface{}, text string) error {
	if err != nil {
		return f.Rejected(err)
	}
	seq := s.engine.Seq()
	return f.Render(data, seq, func(w io.Writer) {
		fmt.Fprintf(w, "%s (seq %d)\n", text, seq)
	})
}

func parseGenerationArg(s string) (ir.GenerationID, error) {
	id, err := ir.ParseGenerationID(s)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, "invalid generation id", err)
	}
	return id, nil
}

func parseAssetArg(s string) (ir.AssetID, error) {
	id, err := ir.ParseAssetID(s)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, "invalid asset id", err)
	}
	return id, nil
}

func parseAmountArg(s string) (ir.Amount, error) {
	a, err := ir.ParseAmount(s)
	if err != nil {
		return ir.Amount{}, WrapExitError(ExitCommandError, "invalid amount", err)
	}
	return a, nil
}
