package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"qachart/adapters/export"
	"qachart/adapters/tabular"
	"qachart/domain/chart"
	"qachart/domain/core"
	"qachart/domain/report"
	"qachart/internal/analysis"
	"qachart/internal/archive"
	"qachart/internal/config"
	"qachart/internal/miner"
	"qachart/internal/schema"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "qachart",
		Short: "Control-chart analytics for mined IMRT QA report data",
	}

	rootCmd.AddCommand(
		newChartCmd(),
		newSummaryCmd(),
		newTemplatesCmd(),
		newMineCmd(),
		newHistoryCmd(),
		newOptionsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// chartFlags are the user-configurable parameters fed into the core on
// every recompute.
type chartFlags struct {
	template string
	variable string
	policy   string
	std      float64
	ucl      float64
	lcl      float64
	chartVar string
	rangeStr string
	export   string
	options  string
}

func (f *chartFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.template, "template", "", "Parser template name (default: inferred from file name)")
	cmd.Flags().StringVar(&f.variable, "variable", "", "Charting (y-axis) column (default: template's first candidate)")
	cmd.Flags().StringVar(&f.policy, "policy", "", "Duplicate-value policy: first, last, min, max, mean")
	cmd.Flags().Float64Var(&f.std, "std", 0, "Control-limit sigma multiplier (default from options)")
	cmd.Flags().Float64Var(&f.ucl, "ucl", math.NaN(), "Override UCL clamp")
	cmd.Flags().Float64Var(&f.lcl, "lcl", math.NaN(), "Override LCL clamp")
	cmd.Flags().StringVar(&f.options, "options", "", "Options JSON file")
}

func newChartCmd() *cobra.Command {
	flags := &chartFlags{}

	cmd := &cobra.Command{
		Use:   "chart [csv-file]",
		Short: "Compute a univariate control chart for one criteria signature",
		Long: `Load a miner CSV, reshape it to wide form, and print the control chart
for one criteria signature (by name, positional index, or "All").

Example: qachart chart SNCPatient2020_results_2021-02-01.csv --var All --std 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChart(cmd.Context(), args[0], flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&flags.chartVar, "var", analysis.AllVariable, `Criteria signature, index, or "All"`)
	cmd.Flags().StringVar(&flags.rangeStr, "range", "", "1-indexed inclusive window, e.g. 5:30")
	cmd.Flags().StringVar(&flags.export, "export", "", "Write the chart series to this CSV file")

	return cmd
}

func newSummaryCmd() *cobra.Command {
	flags := &chartFlags{}

	cmd := &cobra.Command{
		Use:   "summary [csv-file]",
		Short: "Print the per-variable index description table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd.Context(), args[0], flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&flags.export, "export", "", "Write the summary to this file (.csv or .xlsx)")

	return cmd
}

func newTemplatesCmd() *cobra.Command {
	var optionsFile string

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage parser templates",
	}
	cmd.PersistentFlags().StringVar(&optionsFile, "options", "", "Options JSON file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available templates (persisted and built-in)",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.Load(optionsFile)
			if err != nil {
				return err
			}
			registry := schema.NewRegistry(opts.TemplatesDir)
			names, err := registry.List()
			if err != nil {
				return err
			}
			for _, name := range names {
				tpl, err := registry.Load(name)
				if err != nil {
					return err
				}
				fmt.Println(tpl.String())
			}
			return nil
		},
	}

	materializeCmd := &cobra.Command{
		Use:   "materialize",
		Short: "Write missing built-in templates to the template directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.Load(optionsFile)
			if err != nil {
				return err
			}
			return schema.NewRegistry(opts.TemplatesDir).Materialize()
		},
	}

	cmd.AddCommand(listCmd, materializeCmd)
	return cmd
}

func newMineCmd() *cobra.Command {
	var optionsFile, outputDir string

	cmd := &cobra.Command{
		Use:   "mine [scan-dir]",
		Short: "Run the external PDF miner over a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.Load(optionsFile)
			if err != nil {
				return err
			}
			runner := &miner.Runner{Executable: opts.MinerExecutable, Jobs: opts.MinerJobs}
			outputs, err := runner.Run(cmd.Context(), args[0], outputDir, func(done, total int) {
				fmt.Fprintf(os.Stderr, "\rmining %d/%d", done, total)
			})
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}
			for _, out := range outputs {
				fmt.Println(out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&optionsFile, "options", "", "Options JSON file")
	cmd.Flags().StringVar(&outputDir, "output", ".", "Directory for miner CSV output")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var optionsFile string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded import sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.Load(optionsFile)
			if err != nil {
				return err
			}
			store, err := archive.Open(opts.ArchivePath)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "IMPORTED\tTEMPLATE\tVARIABLE\tOBS\tVARS\tSOURCE")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					s.ImportedAt.Format("2006-01-02 15:04"), s.Template,
					s.ChartingVariable, s.Observations, s.Variables, s.SourcePath)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&optionsFile, "options", "", "Options JSON file")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum sessions to list")
	return cmd
}

func newOptionsCmd() *cobra.Command {
	var optionsFile string

	cmd := &cobra.Command{
		Use:   "options",
		Short: "Show effective options",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.Load(optionsFile)
			if err != nil {
				return err
			}
			fields := opts.Fields()
			names := make([]string, 0, len(fields))
			for name := range fields {
				names = append(names, name)
			}
			sort.Strings(names)
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, name := range names {
				fmt.Fprintf(w, "%s\t%s\n", name, fields[name])
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&optionsFile, "options", "", "Options JSON file")
	return cmd
}

// buildEngine performs the shared load-template-reshape sequence.
func buildEngine(path string, flags *chartFlags) (*analysis.Engine, *config.Options, error) {
	opts, err := config.Load(flags.options)
	if err != nil {
		return nil, nil, err
	}

	registry := schema.NewRegistry(opts.TemplatesDir)
	var tpl *report.ParserTemplate
	if flags.template != "" {
		tpl, err = registry.Load(flags.template)
	} else {
		tpl, err = registry.ForFile(path)
	}
	if err != nil {
		return nil, nil, err
	}

	table, err := tabular.Load(path)
	if err != nil {
		return nil, nil, err
	}

	variable := flags.variable
	if variable == "" {
		options := tpl.ChartingOptions()
		if len(options) == 0 {
			return nil, nil, fmt.Errorf("template %s has no charting candidates", tpl.Name)
		}
		variable = options[0]
	}

	policy := opts.DuplicatePolicy
	if flags.policy != "" {
		policy, err = report.ParsePolicy(flags.policy)
		if err != nil {
			return nil, nil, err
		}
	}

	engine, err := analysis.New(table, tpl, variable, analysis.Config{
		Policy:             policy,
		DuplicateDetection: opts.DuplicateDetection,
	})
	if err != nil {
		return nil, nil, err
	}
	return engine, opts, nil
}

func runChart(ctx context.Context, path string, flags *chartFlags) error {
	engine, opts, err := buildEngine(path, flags)
	if err != nil {
		return err
	}

	params := analysis.Params{Std: flags.std}
	if params.Std == 0 {
		params.Std = opts.StdDeviations
	}
	if !math.IsNaN(flags.ucl) {
		params.UCLLimit = &flags.ucl
	}
	if !math.IsNaN(flags.lcl) {
		params.LCLLimit = &flags.lcl
	}
	if flags.rangeStr != "" {
		w, err := parseRange(flags.rangeStr)
		if err != nil {
			return err
		}
		params.Range = w
	}

	c, err := engine.ControlChart(flags.chartVar, params)
	if err != nil {
		return err
	}

	lcl, ucl := c.ControlLimits()
	fmt.Printf("variable:       %s\n", flags.chartVar)
	fmt.Printf("observations:   %d\n", engine.Observations())
	fmt.Printf("center line:    %.4f\n", c.CenterLine())
	fmt.Printf("sigma:          %.4f\n", c.Sigma())
	fmt.Printf("control limits: [%.4f, %.4f]\n", lcl, ucl)
	fmt.Printf("out of control: %v\n", c.OutOfControl())

	if flags.export != "" {
		if err := export.WriteChartCSV(flags.export, c); err != nil {
			return err
		}
	}

	return recordSession(ctx, opts, path, engine)
}

func runSummary(ctx context.Context, path string, flags *chartFlags) error {
	engine, opts, err := buildEngine(path, flags)
	if err != nil {
		return err
	}

	desc := engine.IndexDescription()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(desc.Columns, "\t"))
	for _, row := range desc.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if flags.export != "" {
		if strings.HasSuffix(strings.ToLower(flags.export), ".xlsx") {
			err = export.WriteSummaryXLSX(flags.export, desc)
		} else {
			err = export.WriteSummaryCSV(flags.export, desc)
		}
		if err != nil {
			return err
		}
	}

	return recordSession(ctx, opts, path, engine)
}

func recordSession(ctx context.Context, opts *config.Options, path string, engine *analysis.Engine) error {
	store, err := archive.Open(opts.ArchivePath)
	if err != nil {
		// History is best-effort: an unwritable archive must not fail the
		// analysis the user asked for.
		fmt.Fprintf(os.Stderr, "warning: archive unavailable: %v\n", err)
		return nil
	}
	defer store.Close()

	return store.Record(ctx, &archive.Session{
		ID:               core.NewSessionID(),
		SourcePath:       path,
		Template:         engine.TemplateName(),
		ChartingVariable: engine.ChartingVariable(),
		Observations:     engine.Observations(),
		Variables:        engine.Variables(),
		Fingerprint:      engine.Matrix.Fingerprint().String(),
	})
}

func parseRange(s string) (*chart.Window, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("range must be start:stop, got %q", s)
	}
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid range start %q: %w", parts[0], err)
	}
	stop, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid range stop %q: %w", parts[1], err)
	}
	return &chart.Window{Start: start, Stop: stop}, nil
}
