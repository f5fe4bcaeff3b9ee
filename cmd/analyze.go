package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/cottand/narrow/analysis"
	"github.com/cottand/narrow/frontend/diag"
	"github.com/cottand/narrow/frontend/irload"
	"github.com/cottand/narrow/frontend/types"
	"github.com/cottand/narrow/internal/config"
	"github.com/cottand/narrow/internal/log"
	"github.com/spf13/cobra"
)

// analysisFlags are the flags shared by every command analysing a program.
// They take precedence over the configuration file.
type analysisFlags struct {
	configPath    string
	maxIterations int
	parallelism   int
	logLevel      string
}

func addAnalysisFlags(c *cobra.Command) *analysisFlags {
	f := &analysisFlags{}
	c.Flags().StringVarP(&f.configPath, "config", "c", "", "configuration file, by default "+config.FileName+" next to the program or in the working directory")
	c.Flags().IntVar(&f.maxIterations, "max-iterations", 0, "bound on the narrowing fixpoint of each function")
	c.Flags().IntVarP(&f.parallelism, "parallelism", "p", 0, "number of functions analysed at once")
	c.Flags().StringVarP(&f.logLevel, "log-level", "l", "", "log level: debug, info, warn or error")
	return f
}

// config loads the configuration for the program at target and applies the
// flags that were set on c
func (f *analysisFlags) config(c *cobra.Command, target string) (config.Config, error) {
	var cfg config.Config
	var err error
	if f.configPath != "" {
		cfg, err = config.Load(f.configPath)
	} else {
		cfg, err = config.Find(filepath.Dir(target), ".")
	}
	if err != nil {
		return cfg, err
	}

	if c.Flags().Changed("max-iterations") {
		cfg.MaxIterations = f.maxIterations
	}
	if c.Flags().Changed("parallelism") {
		cfg.Parallelism = f.parallelism
	}
	if c.Flags().Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if c.Flags().Changed("output") {
		cfg.Output, _ = c.Flags().GetString("output")
	}
	return cfg, cfg.Validate()
}

// analysed is a loaded program together with its analysis
type analysed struct {
	report *analysis.Report
	// diagnostics holds the diagnostics reported while loading the
	// program followed by those of every function
	diagnostics *diag.Errors
}

func analyzeFile(c *cobra.Command, target string, cfg config.Config) (*analysed, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)
	if len(cfg.LogSections) > 0 {
		log.EnableSections(cfg.LogSections...)
	}

	ctx := types.NewEmptyTypeCtx()
	program, err := irload.LoadFile(target, ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load program: %w", err)
	}

	report, err := analysis.AnalyzeProgram(c.Context(), ctx, program, analysis.Options{
		MaxIterations: cfg.MaxIterations,
		Parallelism:   cfg.Parallelism,
	})
	if err != nil {
		return nil, err
	}
	return &analysed{
		report:      report,
		diagnostics: (&diag.Errors{}).Merge(ctx.Errors).Merge(report.Diagnostics()),
	}, nil
}
