// Package engine drives fuzzing sessions: it generates statements, executes
// them through adapters, applies the outcome to the catalog and runs the
// oracle protocols, recording every divergence in the state store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/oracle"
	"github.com/leapstack-labs/leapfuzz/internal/state"
	"github.com/leapstack-labs/leapfuzz/pkg/core"
)

// BackendFactory builds the backend of a session over its catalog.
type BackendFactory func(cat *catalog.Catalog) Backend

// Config holds engine configuration.
type Config struct {
	// Session configures the generated statement stream; Session.Seed is
	// recorded with the run.
	Session SessionConfig
	// Steps bounds the number of steps; zero means unbounded.
	Steps int64
	// TimeToRun bounds the wall time of a run; zero means unbounded.
	TimeToRun time.Duration
	// Target names the server under test in the run record.
	Target string
	// StatePath is the path to the SQLite state database.
	StatePath string
	// ProgressEvery is the number of steps between progress lines.
	ProgressEvery int64
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Engine runs one fuzzing session and records it.
type Engine struct {
	cfg     Config
	store   state.Store
	backend BackendFactory
	logger  *slog.Logger
}

// New opens the state store and returns an engine whose session runs
// against the backend built by backend.
func New(cfg Config, backend BackendFactory) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if backend == nil {
		return nil, fmt.Errorf("no backend configured")
	}

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}

	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 1000
	}
	return &Engine{cfg: cfg, store: store, backend: backend, logger: logger}, nil
}

// Store returns the state store of the engine.
func (e *Engine) Store() state.Store {
	return e.store
}

// Close closes the state store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Run steps a fresh session until the step or time budget is spent or ctx
// is cancelled. Divergences are recorded as findings of the run. A panic
// from the core is logged with the seed and re-raised after the run is
// marked failed.
func (e *Engine) Run(ctx context.Context) (run *core.Run, err error) {
	seed := e.cfg.Session.Seed
	e.logger.Info("starting run", "seed", seed, "target", e.cfg.Target)

	run, err = e.store.CreateRun(seed, e.cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	e.logger.Debug("created run", "run_id", run.ID)

	if e.cfg.TimeToRun > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.TimeToRun)
		defer cancel()
	}

	cat := catalog.New()
	session := NewSession(e.cfg.Session, cat, e.backend(cat))

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("session aborted", "run_id", run.ID, "seed", seed, "step", session.Steps(), "panic", r)
			_ = e.store.CompleteRun(run.ID, core.RunStatusFailed, session.Counters(),
				fmt.Sprintf("panic at step %d: %v", session.Steps(), r))
			panic(r)
		}
	}()

	var findings int
	for e.cfg.Steps == 0 || session.Steps() < e.cfg.Steps {
		if ctx.Err() != nil {
			break
		}
		res := session.Step(ctx)
		if res.Divergence != nil {
			findings++
			if ferr := e.record(run.ID, res.Step, res.Divergence); ferr != nil {
				err = ferr
				break
			}
		}
		if res.Step%e.cfg.ProgressEvery == 0 {
			c := session.Counters()
			e.logger.Info("progress",
				"step", res.Step,
				"statements", c.Statements,
				"failures", c.Failures,
				"findings", findings)
		}
	}

	status := core.RunStatusCompleted
	var errMsg string
	switch {
	case err != nil:
		status, errMsg = core.RunStatusFailed, err.Error()
	case errors.Is(ctx.Err(), context.Canceled):
		status = core.RunStatusCancelled
	}
	if cerr := e.store.CompleteRun(run.ID, status, session.Counters(), errMsg); cerr != nil && err == nil {
		err = fmt.Errorf("failed to complete run: %w", cerr)
	}
	e.logger.Info("run finished",
		"run_id", run.ID,
		"status", string(status),
		"steps", session.Steps(),
		"findings", findings)

	if got, gerr := e.store.GetRun(run.ID); gerr == nil {
		run = got
	}
	return run, err
}

func (e *Engine) record(runID string, step int64, d *oracle.Divergence) error {
	e.logger.Warn("oracle divergence",
		"oracle", d.Oracle,
		"step", step,
		"first", d.FirstSQL,
		"second", d.SecondSQL)

	f := &core.Finding{
		RunID:        runID,
		Step:         step,
		Oracle:       d.Oracle,
		FirstSQL:     d.FirstSQL,
		SecondSQL:    d.SecondSQL,
		FirstDigest:  d.FirstDigest.String(),
		SecondDigest: d.SecondDigest.String(),
		Detail:       d.Detail,
	}
	if err := e.store.RecordFinding(f); err != nil {
		return fmt.Errorf("failed to record finding: %w", err)
	}
	return nil
}
