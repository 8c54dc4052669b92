package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/segloom-cli/internal/pipeline"
	"github.com/KaramelBytes/segloom-cli/internal/utils"
)

var (
	missOutput string
	missJSON   string
	missInputs inputFlags
	missTuning tuningFlags
)

var missingCmd = &cobra.Command{
	Use:   "missing <dataset>",
	Short: "Show missing-value distributions and a row threshold suggestion",
	Long: `missing recodes unknown-value sentinels and prints the share of missing values
per column and a histogram of missing values per row. Use it to choose
column_missing_threshold and row_missing_threshold before running the pipeline.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		cx, err := missInputs.loadCodex()
		if err != nil {
			return err
		}
		opt, err := missTuning.options(cmd, c)
		if err != nil {
			return err
		}
		loader, err := missInputs.loader(c)
		if err != nil {
			return err
		}
		t, err := loader.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		p := pipeline.New(cx, opt, logger, nil)
		defer writeMetrics(p, c)
		d, err := p.Diagnose(t)
		if err != nil {
			return err
		}
		if len(d.Extras) > 0 {
			progress("✓ Ignored target-only columns: %s\n", strings.Join(d.Extras, ", "))
		}
		for _, w := range d.Warnings {
			progress("⚠ %s\n", w)
		}
		progress("✓ %s: %d of %d columns kept, %d rows kept, %d set aside\n",
			d.Name, len(d.Plan.Columns), len(d.Columns), d.Kept, d.SetAside)
		if d.Rows.Suggestion.Threshold != opt.Thresholds.MaxRowMissing {
			progress("⚠ Configured row threshold %d differs from the suggested %d\n", opt.Thresholds.MaxRowMissing, d.Rows.Suggestion.Threshold)
		}
		if missJSON != "" {
			if err := utils.WriteJSON(missJSON, d); err != nil {
				return fmt.Errorf("write diagnostics json: %w", err)
			}
			progress("✓ Wrote diagnostics JSON to %s\n", missJSON)
		}
		return writeOutput(missOutput, d.Text(), "diagnostics")
	},
}

func init() {
	rootCmd.AddCommand(missingCmd)
	missingCmd.Flags().StringVarP(&missOutput, "output", "o", "", "write the text charts here instead of stdout")
	missingCmd.Flags().StringVar(&missJSON, "json", "", "also write the distributions as JSON")
	missInputs.register(missingCmd)
	missTuning.register(missingCmd)
}
