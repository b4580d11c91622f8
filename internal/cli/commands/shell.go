package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/cli/output"
	"github.com/leapstack-labs/leapfuzz/internal/engine"
	"github.com/leapstack-labs/leapfuzz/pkg/core"
	"github.com/spf13/cobra"
)

const (
	shellPrompt     = "leapfuzz> "
	shellContinue   = "     ...> "
	shellMaxPerStep = 10000
)

// ShellOptions holds options for the shell command.
type ShellOptions struct {
	Offline bool
}

// NewShellCommand creates the shell command.
func NewShellCommand() *cobra.Command {
	opts := &ShellOptions{}
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Step a fuzzing session interactively",
		Long: `Start an interactive session. Each .next draws steps from the seeded
session and shows what was executed; .catalog shows the schema the
session tracks. SQL ending in a semicolon runs directly on the target.`,
		Example: `  leapfuzz shell --seed 42
  leapfuzz shell --offline`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "Step without a server; every statement succeeds")
	return cmd
}

// shell is the state of one interactive session.
type shell struct {
	seed    uint64
	session *engine.Session
	target  core.Adapter
	r       *output.Renderer
}

func runShell(cmd *cobra.Command, opts *ShellOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	seed := cc.Seed()
	sc, err := cc.Cfg.SessionConfig(seed)
	if err != nil {
		return err
	}

	sh := &shell{seed: seed, r: cc.Renderer}
	cat := catalog.New()
	if opts.Offline {
		sh.session = engine.NewSession(sc, cat, engine.Offline{})
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
		sh.target = conns.Target
		sh.session = engine.NewSession(sc, cat, engine.NewCollaborator(cat, conns.Target, conns.Peers, bucket, seed, cc.Logger))
	}

	historyFile := ""
	if cc.Cfg.StatePath != ":memory:" {
		if err := ensureStateDir(cc.Cfg.StatePath); err == nil {
			historyFile = filepath.Join(filepath.Dir(cc.Cfg.StatePath), "shell_history")
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shellPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    shellCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	sh.r.Printf("leapfuzz shell (seed %d)\n", seed)
	sh.r.Println("Type .help for commands, .quit to exit")
	sh.r.Println()

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(shellPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}

		line = strings.TrimSpace(line)
		if buf.Len() == 0 && (line == "" || strings.HasPrefix(line, ".")) {
			if sh.handle(ctx, line) {
				return nil
			}
			continue
		}

		// SQL accumulates until a semicolon
		buf.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buf.WriteString(" ")
			rl.SetPrompt(shellContinue)
			continue
		}
		rl.SetPrompt(shellPrompt)
		query := strings.TrimSuffix(buf.String(), ";")
		buf.Reset()
		if err := sh.query(ctx, query); err != nil {
			sh.r.Error(err.Error())
		}
	}
}

// handle runs a dot-command and reports whether the shell should exit. An
// empty line is short for .next.
func (sh *shell) handle(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		parts = []string{".next"}
	}

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true
	case ".help":
		sh.r.Printf("%s\n", shellHelp)
	case ".next":
		n := 1
		if len(parts) > 1 {
			v, err := strconv.Atoi(parts[1])
			if err != nil || v < 1 || v > shellMaxPerStep {
				sh.r.Error(fmt.Sprintf("usage: .next [1-%d]", shellMaxPerStep))
				return false
			}
			n = v
		}
		for range n {
			sh.step(ctx)
		}
	case ".catalog":
		sh.catalog()
	case ".seed":
		sh.r.Printf("%d\n", sh.seed)
	case ".stats":
		c := sh.session.Counters()
		sh.r.Printf("steps=%d statements=%d failures=%d\n", sh.session.Steps(), c.Statements, c.Failures)
	default:
		sh.r.Error(fmt.Sprintf("unknown command: %s (type .help for commands)", parts[0]))
	}
	return false
}

func (sh *shell) step(ctx context.Context) {
	res := sh.session.Step(ctx)
	st := sh.r.Styles()
	switch {
	case res.Kind == engine.KindStatement:
		status := "success"
		if !res.Success {
			status = "failed"
		}
		sh.r.StatusLine(st.SQL.Render(res.SQL)+";", status, fmt.Sprintf("#%d", res.Step))
	case res.Divergence != nil:
		d := res.Divergence
		sh.r.StatusLine(st.Oracle.Render(res.Kind)+" diverged", "failed", fmt.Sprintf("#%d", res.Step))
		sh.r.Println("  " + d.FirstSQL)
		sh.r.Println("  " + d.SecondSQL)
		if d.Detail != "" {
			sh.r.Println(d.Detail)
		}
	default:
		status := "success"
		if !res.Success {
			status = "warning"
		}
		sh.r.StatusLine(st.Oracle.Render(res.Kind)+" agreed", status, fmt.Sprintf("#%d", res.Step))
	}
}

func (sh *shell) catalog() {
	tables := sh.session.Catalog().AttachedTables(nil)
	if len(tables) == 0 {
		sh.r.Muted("no tables")
		return
	}
	t := newTable(sh.r.Writer())
	t.AppendHeader(table.Row{"Table", "Engine", "Columns", "Peer", "Status"})
	for _, tbl := range tables {
		t.AppendRow(table.Row{tbl.Ref().String(), tbl.Engine.String(), tbl.Columns.Len(), tbl.Peer.String(), tbl.Status.String()})
	}
	renderTable(sh.r, t)
}

func (sh *shell) query(ctx context.Context, query string) error {
	if sh.target == nil {
		return fmt.Errorf("no target in offline mode")
	}
	rows, err := sh.target.Query(ctx, query)
	if err != nil {
		return err
	}
	res, err := core.ReadResult(rows)
	if err != nil {
		return err
	}

	t := newTable(sh.r.Writer())
	header := make(table.Row, len(res.Columns))
	for i, c := range res.Columns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, row := range res.Rows {
		r := make(table.Row, len(row))
		for i, v := range row {
			r[i] = v
		}
		t.AppendRow(r)
	}
	renderTable(sh.r, t)
	return nil
}

func shellCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".next"),
		readline.PcItem(".catalog"),
		readline.PcItem(".seed"),
		readline.PcItem(".stats"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}

const shellHelp = `
Commands:
  .next [n]       Take n steps (an empty line takes one)
  .catalog        List the tables the session tracks
  .stats          Show step and statement counters
  .seed           Print the session seed
  .quit / .exit   Exit the shell

SQL ending with a semicolon runs directly on the target.
`
