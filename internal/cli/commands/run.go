package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/cli/output"
	"github.com/leapstack-labs/leapfuzz/internal/engine"
	"github.com/spf13/cobra"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Offline       bool
	FailOnFinding bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a fuzzing session against the target server",
		Long: `Generate statements and run them against the target server, checking
results with the enabled oracles.

The session stops after --steps steps, after --time-to-run, or on
interrupt. The run and its findings are recorded in the state database.`,
		Example: `  # Run 10000 steps against the configured target
  leapfuzz run --steps 10000

  # Reproduce a run from its seed
  leapfuzz run --seed 7361524398 --steps 2500

  # Run for ten minutes and fail if any oracle diverges
  leapfuzz run --time-to-run 10m --fail-on-finding

  # Exercise the generator without a server
  leapfuzz run --offline --steps 500`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "Run without a server; every statement succeeds")
	cmd.Flags().BoolVar(&opts.FailOnFinding, "fail-on-finding", false, "Exit with an error when the run records findings")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seed := cc.Seed()
	sc, err := cc.Cfg.SessionConfig(seed)
	if err != nil {
		return err
	}

	var (
		factory engine.BackendFactory
		target  string
	)
	if opts.Offline {
		factory = func(*catalog.Catalog) engine.Backend { return engine.Offline{} }
		target = "offline"
	} else {
		conns, err := engine.Connect(ctx, cc.Cfg.Target.ToAdapterConfig(), cc.Cfg.PeerAdapterConfigs(), cc.Logger)
		if err != nil {
			return err
		}
		defer func() { _ = conns.Close() }()

		bucket := probeBucket(ctx, cc)
		if !bucket {
			sc.Generator.S3Endpoint = ""
		}
		factory = func(cat *catalog.Catalog) engine.Backend {
			return engine.NewCollaborator(cat, conns.Target, conns.Peers, bucket, seed, cc.Logger)
		}
		target = cc.Cfg.Target.Type
	}

	return fuzz(ctx, cc, engine.Config{
		Session:       sc,
		Steps:         cc.Cfg.Steps,
		TimeToRun:     cc.Cfg.TimeToRun,
		Target:        target,
		StatePath:     cc.Cfg.StatePath,
		ProgressEvery: cc.Cfg.ProgressEvery,
		Logger:        cc.Logger,
	}, factory, opts.FailOnFinding)
}

// probeBucket reports whether the configured backup bucket is reachable.
func probeBucket(ctx context.Context, cc *CommandContext) bool {
	if !cc.Cfg.MinIO.Enabled() {
		return false
	}
	ok, err := engine.ProbeBucket(ctx, cc.Cfg.MinIO)
	if err != nil {
		cc.Logger.Warn("backup bucket unavailable", "endpoint", cc.Cfg.MinIO.Endpoint, "error", err)
		return false
	}
	return ok
}

// fuzz runs one session and renders its summary.
func fuzz(ctx context.Context, cc *CommandContext, cfg engine.Config, factory engine.BackendFactory, failOnFinding bool) error {
	if err := ensureStateDir(cfg.StatePath); err != nil {
		return err
	}
	eng, err := engine.New(cfg, factory)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	run, runErr := eng.Run(ctx)
	if run == nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	findings, err := eng.Store().ListFindings(run.ID)
	if err != nil {
		return fmt.Errorf("failed to list findings: %w", err)
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(runReport{Run: newRunView(run), Findings: newFindingViews(findings)}); err != nil {
			return err
		}
	} else {
		renderRunSummary(r, run, findings)
	}

	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	if failOnFinding && len(findings) > 0 {
		return fmt.Errorf("run %s recorded %d findings", run.ID, len(findings))
	}
	return nil
}
