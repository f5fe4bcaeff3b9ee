package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/cottand/narrow/frontend/diag"
	"github.com/cottand/narrow/internal/config"
	"github.com/spf13/cobra"
)

// NewCheckCmd returns the command printing the diagnostics of a program.
// It fails with ErrDiagnostics when any of them is an error.
func NewCheckCmd() *cobra.Command {
	var flags *analysisFlags
	c := &cobra.Command{
		Use:   "check program.yaml",
		Short: "Report non-exhaustive matches and other narrowing diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0], flags)
		},
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
	}
	flags = addAnalysisFlags(c)
	c.Flags().StringP("output", "o", config.OutputText, "output format: text or json")
	return c
}

// ErrDiagnostics is returned by check when the program has error diagnostics
var ErrDiagnostics = errors.New("errors found during analysis")

func runCheck(cmd *cobra.Command, target string, flags *analysisFlags) error {
	cfg, err := flags.config(cmd, target)
	if err != nil {
		return err
	}
	res, err := analyzeFile(cmd, target, cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cfg.Output == config.OutputJSON {
		err = writeJSON(out, res.diagnostics)
	} else {
		err = writeText(out, res.diagnostics)
	}
	if err != nil {
		return fmt.Errorf("could not write diagnostics: %w", err)
	}
	if res.diagnostics.HasError() {
		return ErrDiagnostics
	}
	return nil
}

func writeText(w io.Writer, errs *diag.Errors) error {
	var nErrors, nWarnings int
	for _, d := range errs.Errors() {
		if d.Code().Severity() == diag.SeverityWarning {
			nWarnings++
		} else {
			nErrors++
		}
		if _, err := fmt.Fprintln(w, diag.Format(d)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s, %s\n", plural(nErrors, "error"), plural(nWarnings, "warning"))
	return err
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

type jsonDiagnostic struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Function string `json:"function,omitempty"`
	Block    int    `json:"block"`
	Index    int    `json:"index"`
	Message  string `json:"message"`
}

func writeJSON(w io.Writer, errs *diag.Errors) error {
	ds := make([]jsonDiagnostic, 0, errs.Len())
	for _, d := range errs.Errors() {
		at := d.At()
		ds = append(ds, jsonDiagnostic{
			Code:     d.Code().String(),
			Severity: d.Code().Severity().String(),
			Function: at.Function,
			Block:    at.Block,
			Index:    at.Index,
			Message:  d.Error(),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"diagnostics": ds})
}
