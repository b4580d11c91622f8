package engine

import (
	"context"

	"github.com/leapstack-labs/leapfuzz/internal/applier"
	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/generator"
	"github.com/leapstack-labs/leapfuzz/internal/oracle"
	"github.com/leapstack-labs/leapfuzz/internal/random"
	"github.com/leapstack-labs/leapfuzz/internal/settings"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
	"github.com/leapstack-labs/leapfuzz/pkg/core"
)

// Backend is everything a session needs from the execution layer.
type Backend interface {
	generator.Environment
	applier.Collaborator
	oracle.Executor
}

// statementWeight is the weight of a plain statement step against the
// configured oracle weights.
const statementWeight = 1000

// Weights are the relative frequencies of the oracle protocols.
type Weights struct {
	Correctness uint32 `koanf:"correctness"`
	DumpReload  uint32 `koanf:"dump_reload"`
	Settings    uint32 `koanf:"settings"`
	Peer        uint32 `koanf:"peer"`
}

// DefaultWeights returns the oracle weights used when none are configured.
func DefaultWeights() Weights {
	return Weights{Correctness: 20, DumpReload: 10, Settings: 20, Peer: 10}
}

// Step kinds reported by Session.Step.
const (
	KindStatement = "statement"
)

// StepResult describes one step of a session.
type StepResult struct {
	Step int64
	// Kind is KindStatement or the name of the oracle protocol.
	Kind string
	// SQL is the statement of a statement step.
	SQL     string
	Success bool
	// Divergence is set when an oracle found a mismatch.
	Divergence *oracle.Divergence
}

// SessionConfig configures one fuzzing session.
type SessionConfig struct {
	Seed      uint64
	Generator generator.Config
	Oracle    oracle.Config
	Weights   Weights
	// Settings defaults to the built-in settings source.
	Settings *settings.Source
}

// Session is one generate, execute, apply and check sequence over a fresh
// catalog. It is not safe for concurrent use.
type Session struct {
	cfg      SessionConfig
	cat      *catalog.Catalog
	gen      *generator.Generator
	app      *applier.Applier
	orc      *oracle.Oracle
	backend  Backend
	rng      *random.Generator
	step     int64
	counters core.RunCounters
}

// NewSession returns a session over cat, which the backend may also
// consult.
func NewSession(cfg SessionConfig, cat *catalog.Catalog, backend Backend) *Session {
	rng := random.New(cfg.Seed)
	gen := generator.New(cfg.Generator, cat, backend, cfg.Settings, rng)
	return &Session{
		cfg:     cfg,
		cat:     cat,
		gen:     gen,
		app:     applier.New(cat, backend),
		orc:     oracle.New(cfg.Oracle, gen, backend),
		backend: backend,
		rng:     rng,
	}
}

// Catalog returns the session catalog.
func (s *Session) Catalog() *catalog.Catalog {
	return s.cat
}

// Counters returns the statement totals so far.
func (s *Session) Counters() core.RunCounters {
	return s.counters
}

// Steps returns the number of steps taken.
func (s *Session) Steps() int64 {
	return s.step
}

func on(cond bool, weight uint32) uint32 {
	if cond {
		return weight
	}
	return 0
}

// Step draws one step: a statement, or one run of an oracle protocol whose
// preconditions the catalog meets.
func (s *Session) Step(ctx context.Context) StepResult {
	s.step++
	w := s.cfg.Weights
	comparable := s.cat.HasAttachedTable(oracle.Comparable)
	weights := []uint32{
		statementWeight,
		on(comparable, w.Correctness),
		on(s.cat.HasAttachedTable(oracle.Dumpable), w.DumpReload),
		on(comparable, w.Settings),
		on(oracle.HasPeerTable(s.cat), w.Peer),
	}

	res := StepResult{Step: s.step}
	switch generator.Pick(s.rng, weights) {
	case 0:
		return s.statement(ctx)
	case 1:
		res.Kind, res.Divergence = oracle.NameCorrectness, s.orc.RunCorrectness(ctx)
	case 2:
		res.Kind, res.Divergence = oracle.NameDumpReload, s.orc.RunDumpReload(ctx)
	case 3:
		res.Kind, res.Divergence = oracle.NameSettings, s.orc.RunSettings(ctx)
	case 4:
		res.Kind, res.Divergence = oracle.NamePeer, s.orc.RunPeer(ctx)
	}
	res.Success = !s.orc.StepFailed()
	return res
}

func (s *Session) statement(ctx context.Context) StepResult {
	st := s.gen.NextStatement(ctx)
	ok := s.backend.Execute(ctx, st)
	s.app.Apply(st, ok)

	s.counters.Statements++
	if !ok {
		s.counters.Failures++
	}
	return StepResult{Step: s.step, Kind: KindStatement, SQL: sqltree.Format(st), Success: ok}
}
