package commands

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/cli/output"
	"github.com/leapstack-labs/leapfuzz/internal/engine"
	"github.com/spf13/cobra"
)

// GenerateOptions holds options for the generate command.
type GenerateOptions struct {
	Count int
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	opts := &GenerateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print generated statements without a server",
		Long: `Generate statements from the seed and print them. Every statement is
treated as successful, so the tracked schema grows as if a server had
accepted all of them. The same seed always prints the same statements.`,
		Example: `  leapfuzz generate --seed 42 -n 50
  leapfuzz generate --seed 42 -n 5 -o json`,
		Aliases: []string{"gen"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 20, "Number of statements to print")
	return cmd
}

type generatedStatement struct {
	Step int64  `json:"step"`
	SQL  string `json:"sql"`
}

func runGenerate(cmd *cobra.Command, opts *GenerateOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	seed := cc.Seed()
	sc, err := cc.Cfg.SessionConfig(seed)
	if err != nil {
		return err
	}
	sc.Weights = engine.Weights{}

	stmts := generate(cmd.Context(), sc, opts.Count)

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(struct {
			Seed       uint64               `json:"seed"`
			Statements []generatedStatement `json:"statements"`
		}{seed, stmts})
	}
	r.Muted(fmt.Sprintf("-- seed %d", seed))
	for _, st := range stmts {
		r.Println(r.Styles().SQL.Render(st.SQL) + ";")
	}
	return nil
}

// generate runs n statement steps of an offline session.
func generate(ctx context.Context, sc engine.SessionConfig, n int) []generatedStatement {
	session := engine.NewSession(sc, catalog.New(), engine.Offline{})
	out := make([]generatedStatement, 0, n)
	for len(out) < n {
		res := session.Step(ctx)
		if res.Kind != engine.KindStatement {
			continue
		}
		out = append(out, generatedStatement{Step: res.Step, SQL: res.SQL})
	}
	return out
}
