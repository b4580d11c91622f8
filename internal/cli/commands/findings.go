package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapfuzz/internal/cli/output"
	"github.com/leapstack-labs/leapfuzz/internal/state"
	"github.com/spf13/cobra"
)

type runView struct {
	ID          string     `json:"id"`
	Seed        uint64     `json:"seed"`
	Target      string     `json:"target"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Statements  int64      `json:"statements"`
	Failures    int64      `json:"failures"`
	Error       string     `json:"error,omitempty"`
}

func newRunView(r *state.Run) runView {
	return runView{
		ID:          r.ID,
		Seed:        r.Seed,
		Target:      r.Target,
		Status:      string(r.Status),
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Statements:  r.Statements,
		Failures:    r.Failures,
		Error:       r.Error,
	}
}

type findingView struct {
	Step         int64  `json:"step"`
	Oracle       string `json:"oracle"`
	FirstSQL     string `json:"first_sql"`
	SecondSQL    string `json:"second_sql"`
	FirstDigest  string `json:"first_digest"`
	SecondDigest string `json:"second_digest"`
	Detail       string `json:"detail,omitempty"`
}

func newFindingViews(fs []*state.Finding) []findingView {
	out := make([]findingView, 0, len(fs))
	for _, f := range fs {
		out = append(out, findingView{
			Step:         f.Step,
			Oracle:       f.Oracle,
			FirstSQL:     f.FirstSQL,
			SecondSQL:    f.SecondSQL,
			FirstDigest:  f.FirstDigest,
			SecondDigest: f.SecondDigest,
			Detail:       f.Detail,
		})
	}
	return out
}

type runReport struct {
	Run      runView       `json:"run"`
	Findings []findingView `json:"findings"`
}

func statusKind(s state.RunStatus) string {
	switch s {
	case state.RunStatusCompleted:
		return "success"
	case state.RunStatusFailed:
		return "failed"
	}
	return "warning"
}

func renderRunSummary(r *output.Renderer, run *state.Run, findings []*state.Finding) {
	r.Header(1, "Run "+run.ID)
	r.StatusLine("run "+string(run.Status), statusKind(run.Status),
		fmt.Sprintf("seed=%d statements=%d failures=%d", run.Seed, run.Statements, run.Failures))
	if run.Error != "" {
		r.Error(run.Error)
	}
	r.Println()
	renderFindings(r, findings)
}

func renderFindings(r *output.Renderer, findings []*state.Finding) {
	if len(findings) == 0 {
		r.Success("no findings")
		return
	}
	r.Header(2, "Findings")
	st := r.Styles()
	for _, f := range findings {
		r.StatusLine(st.Oracle.Render(f.Oracle)+fmt.Sprintf(" step %d", f.Step), "failed", "")
		r.Println("  " + st.SQL.Render(f.FirstSQL))
		r.Muted("  digest " + f.FirstDigest)
		r.Println("  " + st.SQL.Render(f.SecondSQL))
		r.Muted("  digest " + f.SecondDigest)
		if f.Detail != "" {
			r.Println(f.Detail)
		}
		r.Println()
	}
}

// newTable returns a table writer styled for the renderer's mode.
func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderTable(r *output.Renderer, t table.Writer) {
	if r.EffectiveMode() == output.ModeMarkdown {
		t.RenderMarkdown()
		return
	}
	t.Render()
}

// RunsOptions holds options for the runs command.
type RunsOptions struct {
	Limit int
}

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	opts := &RunsOptions{}
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded fuzzing runs",
		Long:  `List the most recent runs in the state database, newest first.`,
		Example: `  leapfuzz runs
  leapfuzz runs --limit 5 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of runs to list")
	return cmd
}

func runRuns(cmd *cobra.Command, opts *RunsOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	store, cleanup, err := cc.OpenStore()
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := store.ListRuns(opts.Limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		views := make([]runView, 0, len(runs))
		for _, run := range runs {
			views = append(views, newRunView(run))
		}
		return r.JSON(views)
	}
	if len(runs) == 0 {
		r.Muted("no runs recorded")
		return nil
	}

	t := newTable(r.Writer())
	t.AppendHeader(table.Row{"Run", "Seed", "Target", "Status", "Started", "Statements", "Failures"})
	for _, run := range runs {
		t.AppendRow(table.Row{run.ID, run.Seed, run.Target, run.Status,
			run.StartedAt.Local().Format(time.DateTime), run.Statements, run.Failures})
	}
	renderTable(r, t)
	return nil
}

// NewFindingsCommand creates the findings command.
func NewFindingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "findings [run-id]",
		Short: "Show the oracle findings of a run",
		Long: `Show the divergences the oracles recorded during a run, with both
statements and their result digests. Without a run id the latest run
is shown.`,
		Example: `  leapfuzz findings
  leapfuzz findings 6f1c0a2e -o markdown`,
		Args: cobra.MaximumNArgs(1),
		RunE: runFindings,
	}
	return cmd
}

func runFindings(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	store, cleanup, err := cc.OpenStore()
	if err != nil {
		return err
	}
	defer cleanup()

	var run *state.Run
	if len(args) == 1 {
		if run, err = store.GetRun(args[0]); err != nil {
			return fmt.Errorf("failed to load run %s: %w", args[0], err)
		}
	} else {
		runs, err := store.ListRuns(1)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if len(runs) == 0 {
			return fmt.Errorf("no runs recorded in %s", cc.Cfg.StatePath)
		}
		run = runs[0]
	}

	findings, err := store.ListFindings(run.ID)
	if err != nil {
		return fmt.Errorf("failed to list findings: %w", err)
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(runReport{Run: newRunView(run), Findings: newFindingViews(findings)})
	}
	renderRunSummary(r, run, findings)
	return nil
}
