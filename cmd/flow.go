package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/cottand/narrow/analysis"
	"github.com/spf13/cobra"
)

// NewFlowCmd returns the command printing the flow types at every block of
// the functions of a program
func NewFlowCmd() *cobra.Command {
	var (
		flags     *analysisFlags
		fnName    string
		showGraph bool
	)
	c := &cobra.Command{
		Use:   "flow program.yaml",
		Short: "Show the narrowed type of every reference, block by block",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.config(cmd, args[0])
			if err != nil {
				return err
			}
			res, err := analyzeFile(cmd, args[0], cfg)
			if err != nil {
				return err
			}
			results := res.report.Results
			if fnName != "" {
				r, ok := res.report.Result(fnName)
				if !ok {
					return fmt.Errorf("no function named %q", fnName)
				}
				results = []*analysis.Result{r}
			}
			for _, r := range results {
				if err := writeFlow(cmd.OutOrStdout(), r, showGraph); err != nil {
					return fmt.Errorf("could not write flow types: %w", err)
				}
			}
			return nil
		},
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
	}
	flags = addAnalysisFlags(c)
	c.Flags().StringVarP(&fnName, "func", "f", "", "only show this function")
	c.Flags().BoolVarP(&showGraph, "graph", "g", false, "also print the flow graph")
	return c
}

func writeFlow(w io.Writer, r *analysis.Result, showGraph bool) error {
	sb := strings.Builder{}
	sb.WriteString(r.Function.Name)
	if !r.Converged {
		fmt.Fprintf(&sb, " (did not converge after %d passes)", r.Iterations)
	}
	sb.WriteString("\n")
	for _, b := range r.Graph.Blocks {
		in, ok := r.FlowTypes[b.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "  b%d %s: %s\n", b.ID, b.Label, in)
		if out, ok := r.ExitTypes[b.ID]; ok && !out.Equal(in) {
			fmt.Fprintf(&sb, "  %s  exit: %s\n", strings.Repeat(" ", len(fmt.Sprint(b.ID))), out)
		}
	}
	if showGraph {
		for _, line := range strings.Split(strings.TrimSuffix(r.Graph.String(), "\n"), "\n") {
			sb.WriteString("  | " + line + "\n")
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
